package polish

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/inkwell-notes/inkwell/internal/api"
	"github.com/inkwell-notes/inkwell/internal/auth"
)

type Handler struct {
	svc        *Service
	validate   *validator.Validate
	production bool
}

func NewHandler(svc *Service, production bool) *Handler {
	return &Handler{
		svc:        svc,
		validate:   validator.New(),
		production: production,
	}
}

type polishRequest struct {
	Content     string `json:"content" validate:"required"`
	Style       string `json:"style" validate:"required,oneof=concise academic colloquial formal custom"`
	Instruction string `json:"instruction" validate:"max=2000"`
}

func (h *Handler) Polish(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req polishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.svc.Polish(r.Context(), userID, Request{
		Content:     req.Content,
		Style:       Style(req.Style),
		Instruction: req.Instruction,
	})
	if err != nil {
		h.handlePolishError(w, err, userID)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

// handlePolishError maps pipeline failures to HTTP statuses. Upstream and
// schema details are logged server-side in full; the client gets the detail
// only outside production, where it helps local debugging.
func (h *Handler) handlePolishError(w http.ResponseWriter, err error, userID uuid.UUID) {
	switch {
	case errors.Is(err, ErrPaymentRequired):
		api.HandleError(w, api.ErrPaymentRequired)

	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrInvalidStyle):
		api.HandleError(w, api.NewBadRequestError(err.Error()))

	default:
		var upstream *UpstreamError
		var schema *SchemaError
		switch {
		case errors.As(err, &upstream):
			slog.Error("generation endpoint failure",
				"user_id", userID, "status", upstream.Status, "body", upstream.Body)
			api.HandleError(w, h.badGateway(fmt.Sprintf("generation failed with status %d", upstream.Status)))
		case errors.As(err, &schema):
			slog.Error("unrecognized generation response", "user_id", userID, "error", schema.Error())
			api.HandleError(w, h.badGateway(schema.Error()))
		default:
			slog.Error("polish request failed", "user_id", userID, "error", err)
			api.HandleError(w, api.ErrInternalServer)
		}
	}
}

func (h *Handler) badGateway(detail string) *api.AppError {
	if h.production {
		return api.NewBadGatewayError("generation service unavailable")
	}
	return api.NewBadGatewayError(detail)
}

func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	status, err := h.svc.Quota(r.Context(), userID)
	if err != nil {
		slog.Error("loading quota", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

type topUpRequest struct {
	Credits int `json:"credits" validate:"required,gt=0,lte=1000"`
}

func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	status, err := h.svc.TopUp(r.Context(), userID, req.Credits)
	if err != nil {
		slog.Error("topping up balance", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

func callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

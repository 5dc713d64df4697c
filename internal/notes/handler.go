package notes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/inkwell-notes/inkwell/internal/api"
	"github.com/inkwell-notes/inkwell/internal/auth"
)

type contextKey string

const noteCtxKey contextKey = "note"

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// OwnershipMiddleware loads the note from the {noteID} URL parameter and
// rejects callers who do not own it. The loaded note is stored in the request
// context for downstream handlers.
func (h *Handler) OwnershipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetUserClaims(r.Context())
		if claims == nil {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}

		noteID, err := uuid.Parse(chi.URLParam(r, "noteID"))
		if err != nil {
			api.HandleError(w, api.ErrNotFound)
			return
		}

		note, err := h.svc.Get(r.Context(), noteID)
		if err != nil {
			slog.Error("loading note", "error", err, "note_id", noteID)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		if note == nil {
			api.HandleError(w, api.ErrNotFound)
			return
		}
		if note.OwnerUserID.String() != claims.UserID && claims.Role != "admin" {
			api.HandleError(w, api.ErrOwnershipViolation)
			return
		}

		ctx := context.WithValue(r.Context(), noteCtxKey, note)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func noteFromContext(ctx context.Context) *Note {
	note, _ := ctx.Value(noteCtxKey).(*Note)
	return note
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	note, err := h.svc.Create(r.Context(), ownerID, claims.DisplayName, &req)
	if err != nil {
		slog.Error("creating note", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, note)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	ownerID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	page, pageSize := paginationParams(r)
	notes, total, err := h.svc.List(r.Context(), ownerID, page, pageSize)
	if err != nil {
		slog.Error("listing notes", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, notes, total, page, pageSize)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	note := noteFromContext(r.Context())
	if note == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}
	api.JSON(w, http.StatusOK, note)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	note := noteFromContext(r.Context())
	if note == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	updated, err := h.svc.Update(r.Context(), note, &req)
	if err != nil {
		slog.Error("updating note", "error", err, "note_id", note.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	note := noteFromContext(r.Context())
	if note == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	if err := h.svc.Delete(r.Context(), note.ID); err != nil {
		slog.Error("deleting note", "error", err, "note_id", note.ID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "note deleted")
}

// GetShared serves a public note by slug; no authentication required.
func (h *Handler) GetShared(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	note, err := h.svc.GetShared(r.Context(), slug)
	if err != nil {
		slog.Error("loading shared note", "error", err, "slug", slug)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if note == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, note)
}

func paginationParams(r *http.Request) (int, int) {
	page, pageSize := 1, 20
	if p := r.URL.Query().Get("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}

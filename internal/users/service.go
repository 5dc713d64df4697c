package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, email, displayName, passwordHash string) (*User, error) {
	if displayName == "" {
		displayName = displayNameFromEmail(email)
	}
	now := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		Role:         RoleUser,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateGuest creates a pseudonymous identity with no credentials. Guests get
// their own ledger and quota like any other identity.
func (s *Service) CreateGuest(ctx context.Context) (*User, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return nil, fmt.Errorf("generating guest suffix: %w", err)
	}
	now := time.Now()
	user := &User{
		ID:          uuid.New(),
		DisplayName: "Visitor-" + hex.EncodeToString(suffix),
		Role:        RoleGuest,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsByEmail(ctx, email)
}

func displayNameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

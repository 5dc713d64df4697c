package notes

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, authorName string, req *CreateNoteRequest) (*Note, error) {
	now := time.Now()
	note := &Note{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		AuthorName:  authorName,
		Title:       req.Title,
		Content:     req.Content,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	return s.repo.GetByID(ctx, id)
}

// GetShared returns a note by its public share slug, or nil when the slug is
// unknown or the note is no longer public.
func (s *Service) GetShared(ctx context.Context, slug string) (*Note, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, page, pageSize int) ([]Note, int64, error) {
	return s.repo.ListByOwner(ctx, ownerID, page, pageSize)
}

func (s *Service) Update(ctx context.Context, note *Note, req *UpdateNoteRequest) (*Note, error) {
	if req.Title != nil {
		note.Title = *req.Title
	}
	if req.Content != nil {
		note.Content = *req.Content
	}
	if req.IsPublic != nil {
		note.IsPublic = *req.IsPublic
		if note.IsPublic && note.Slug == "" {
			slug, err := newSlug()
			if err != nil {
				return nil, err
			}
			note.Slug = slug
		}
	}
	if err := s.repo.Update(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func newSlug() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating slug: %w", err)
	}
	return hex.EncodeToString(b), nil
}

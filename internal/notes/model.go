package notes

import (
	"time"

	"github.com/google/uuid"
)

type Note struct {
	ID          uuid.UUID `json:"id"`
	OwnerUserID uuid.UUID `json:"owner_user_id"`
	AuthorName  string    `json:"author_name"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsPublic    bool      `json:"is_public"`
	Slug        string    `json:"slug,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateNoteRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=255"`
	Content string `json:"content" validate:"required"`
}

type UpdateNoteRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content  *string `json:"content"`
	IsPublic *bool   `json:"is_public"`
}

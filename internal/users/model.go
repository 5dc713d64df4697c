package users

import (
	"time"

	"github.com/google/uuid"
)

// Roles are an explicit column on the users table. Authorization decisions
// must key off Role, never off display names.
const (
	RoleUser  = "user"
	RoleGuest = "guest"
	RoleAdmin = "admin"
)

// User matches the users table schema.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

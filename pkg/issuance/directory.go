package issuance

import (
	"context"

	"github.com/google/uuid"
)

// User is the minimal owner snapshot the issuance job needs.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// UserDirectory resolves license owners. Implementations return
// ErrUserNotFound for unknown IDs.
type UserDirectory interface {
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

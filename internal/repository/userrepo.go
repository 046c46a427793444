// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/model"
)

// UserRepository provides CRUD access for user accounts.
type UserRepository interface {
	// Create inserts a new user. Returns ErrDuplicateEmail or
	// ErrDuplicateUsername on the respective uniqueness violations.
	Create(ctx context.Context, u *model.User) error

	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]model.User, error)

	// SetActive flips the is_active flag.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// SetAdmin flips the is_admin flag.
	SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error

	// Delete hard-deletes a user. Owned nodes (whole subtrees), their shares
	// and versions, and shares granted to the user are removed in the same
	// transaction. Returns the blob locators orphaned by the delete.
	Delete(ctx context.Context, id uuid.UUID) ([]string, error)
}

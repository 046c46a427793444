package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/model"
)

// NodeRepository maintains the per-owner forest of file and folder nodes.
// Structural invariants (parent is a folder owned by the node's owner, no
// cycles, sibling-name uniqueness) are enforced here, inside transactions.
type NodeRepository interface {
	// Create inserts a node after validating its parent and sibling names.
	// When initial is non-nil (a file created with content), the version row
	// is inserted in the same transaction.
	Create(ctx context.Context, n *model.Node, initial *model.Version) error

	// Get loads a node by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Node, error)

	// Move reparents a node. Fails with ErrInvalidParent, ErrCycleDetected or
	// ErrNameConflict; a null parent moves the node to its owner's root.
	Move(ctx context.Context, id uuid.UUID, newParent uuid.NullUUID) error

	// Rename changes the display name, enforcing sibling uniqueness.
	Rename(ctx context.Context, id uuid.UUID, name string) error

	// DeleteSubtree removes the node and every descendant, their shares and
	// versions, in one transaction. Returns the orphaned blob locators.
	DeleteSubtree(ctx context.Context, id uuid.UUID) ([]string, error)

	// Children lists the direct children of a folder, folders first then by name.
	Children(ctx context.Context, parentID uuid.UUID) ([]model.Node, error)

	// Roots lists an owner's parentless nodes, folders first then by name.
	Roots(ctx context.Context, ownerID uuid.UUID) ([]model.Node, error)

	// ListSharedWith lists nodes with an active share granted to the user.
	ListSharedWith(ctx context.Context, userID uuid.UUID) ([]model.Node, error)
}

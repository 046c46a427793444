package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/model"
)

// VersionRepository is the append-only content history per file node.
type VersionRepository interface {
	// Append records the next version of a file under a row lock on the node,
	// so concurrent appends to the same node serialize and numbers stay
	// gap-free. The node's latest locator and size are updated in the same
	// transaction. Fails with ErrNotFound, ErrNotAFile, or ErrVersionConflict
	// when the insert still collides after bounded retries.
	Append(ctx context.Context, nodeID uuid.UUID, author uuid.UUID, locator string, size int64) (*model.Version, error)

	// ListForNode lists versions ascending by number.
	ListForNode(ctx context.Context, nodeID uuid.UUID) ([]model.Version, error)

	// Get loads one version by node and number, or ErrNotFound.
	Get(ctx context.Context, nodeID uuid.UUID, number int64) (*model.Version, error)

	// Delete removes a non-current version and returns its blob locator.
	// Fails with ErrCurrentVersion for the newest version.
	Delete(ctx context.Context, nodeID uuid.UUID, number int64) (string, error)
}

package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/model"
)

// ShareRepository stores access grants. The files.is_shared flag is a
// denormalized cache and is updated in the same transaction as the share
// rows it summarizes.
type ShareRepository interface {
	// Upsert inserts a grant or, when one already exists for the
	// (node, grantee) pair, replaces its permission level. The share's ID and
	// CreatedAt are filled from the resulting row.
	Upsert(ctx context.Context, s *model.Share) error

	// Get loads the grant for (node, grantee), or ErrNotFound.
	Get(ctx context.Context, nodeID, granteeID uuid.UUID) (*model.Share, error)

	// Delete revokes the grant for (node, grantee), recomputing is_shared.
	// Returns ErrNotFound when no such grant exists.
	Delete(ctx context.Context, nodeID, granteeID uuid.UUID) error

	// ListForNode lists grants on a node, oldest first.
	ListForNode(ctx context.Context, nodeID uuid.UUID) ([]model.Share, error)

	// ListForGrantee lists grants made to a user, newest first.
	ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]model.Share, error)
}

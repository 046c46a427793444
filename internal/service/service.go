// Package service contains application services for identity, the node tree,
// sharing, and version history.
package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/skobelin/sharedrive/internal/blob"
	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
	"github.com/skobelin/sharedrive/internal/repository"
)

// resolvePermission applies the resolution order: the owner always holds
// write; otherwise the direct grant on the node wins; otherwise none.
// Permission does not propagate through the folder hierarchy.
func resolvePermission(ctx context.Context, shares repository.ShareRepository, node *model.Node, userID uuid.UUID) (model.Permission, error) {
	if node.OwnerID == userID {
		return model.PermWrite, nil
	}
	s, err := shares.Get(ctx, node.ID, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.PermNone, nil
		}
		return model.PermNone, err
	}
	return s.Permission, nil
}

// canRead reports read visibility: any resolved permission, or a grant on any
// ancestor folder. Sharing a folder makes its whole subtree browsable and
// openable, so a listing never shows an entry the actor cannot open. Mutation
// stays with resolvePermission and never inherits.
func canRead(ctx context.Context, nodes repository.NodeRepository, shares repository.ShareRepository, node *model.Node, userID uuid.UUID) (bool, error) {
	perm, err := resolvePermission(ctx, shares, node, userID)
	if err != nil {
		return false, err
	}
	if perm != model.PermNone {
		return true, nil
	}
	for parent := node.ParentID; parent.Valid; {
		if _, err = shares.Get(ctx, parent.UUID, userID); err == nil {
			return true, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return false, err
		}
		p, err := nodes.Get(ctx, parent.UUID)
		if err != nil {
			return false, err
		}
		parent = p.ParentID
	}
	return false, nil
}

// cleanupBlobs deletes orphaned locators best-effort after a committed
// delete; storage failures are logged, never surfaced.
func cleanupBlobs(ctx context.Context, store blob.Store, log *zap.Logger, locators []string) {
	for _, loc := range locators {
		if err := store.Delete(ctx, loc); err != nil {
			log.Warn("orphaned blob not deleted", zap.String("locator", loc), zap.Error(err))
		}
	}
}

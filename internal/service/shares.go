package service

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"

	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
	"github.com/skobelin/sharedrive/internal/repository"
)

// ShareService grants, revokes and resolves access permissions. Shares are
// per-node: no folder-to-descendant inheritance.
type ShareService interface {
	// Grant upserts a share; a repeated grant for the same (node, grantee)
	// replaces the permission level instead of duplicating the row.
	Grant(ctx context.Context, nodeID, ownerID, granteeID uuid.UUID, perm model.Permission) (*model.Share, error)
	// Revoke removes a grant; ErrNotFound when none exists.
	Revoke(ctx context.Context, nodeID, ownerID, granteeID uuid.UUID) error
	// PermissionFor resolves the actor's effective permission on a node.
	PermissionFor(ctx context.Context, nodeID, userID uuid.UUID) (model.Permission, error)
	// SharedWith lists the grants on a node for its owner.
	SharedWith(ctx context.Context, nodeID, ownerID uuid.UUID) ([]model.Share, error)
	// SharedWithMe lists grants made to the user, newest first.
	SharedWithMe(ctx context.Context, userID uuid.UUID) ([]model.Share, error)
}

type ShareServiceImpl struct {
	shares repository.ShareRepository
	nodes  repository.NodeRepository
	users  repository.UserRepository
}

// NewShareService constructs ShareService with required dependencies.
func NewShareService(shares repository.ShareRepository, nodes repository.NodeRepository, users repository.UserRepository) *ShareServiceImpl {
	return &ShareServiceImpl{shares: shares, nodes: nodes, users: users}
}

// Grant creates or updates a share. Only the node's owner may grant, and
// never to themselves.
func (s *ShareServiceImpl) Grant(ctx context.Context, nodeID, ownerID, granteeID uuid.UUID, perm model.Permission) (*model.Share, error) {
	if !perm.Valid() {
		return nil, errors.New("validation: unknown permission")
	}
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if n.OwnerID != ownerID {
		return nil, errs.ErrPermissionDenied
	}
	if granteeID == ownerID {
		return nil, errs.ErrSelfShare
	}
	if _, err := s.users.GetByID(ctx, granteeID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	share := &model.Share{
		ID:         id,
		NodeID:     nodeID,
		GranteeID:  granteeID,
		Permission: perm,
	}
	if err := s.shares.Upsert(ctx, share); err != nil {
		return nil, err
	}
	return share, nil
}

// Revoke removes the grant and recomputes the node's is_shared flag.
func (s *ShareServiceImpl) Revoke(ctx context.Context, nodeID, ownerID, granteeID uuid.UUID) error {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	if n.OwnerID != ownerID {
		return errs.ErrPermissionDenied
	}
	return s.shares.Delete(ctx, nodeID, granteeID)
}

// PermissionFor resolves the actor's effective permission on a node.
func (s *ShareServiceImpl) PermissionFor(ctx context.Context, nodeID, userID uuid.UUID) (model.Permission, error) {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return model.PermNone, err
	}
	return resolvePermission(ctx, s.shares, n, userID)
}

// SharedWith lists grants on a node; owner only.
func (s *ShareServiceImpl) SharedWith(ctx context.Context, nodeID, ownerID uuid.UUID) ([]model.Share, error) {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if n.OwnerID != ownerID {
		return nil, errs.ErrPermissionDenied
	}
	return s.shares.ListForNode(ctx, nodeID)
}

// SharedWithMe lists incoming grants, newest first.
func (s *ShareServiceImpl) SharedWithMe(ctx context.Context, userID uuid.UUID) ([]model.Share, error) {
	if userID == uuid.Nil {
		return nil, errors.New("validation: empty user id")
	}
	return s.shares.ListForGrantee(ctx, userID)
}

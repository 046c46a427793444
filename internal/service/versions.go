package service

import (
	"context"
	"io"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/skobelin/sharedrive/internal/blob"
	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
	"github.com/skobelin/sharedrive/internal/repository"
)

// VersionService exposes the append-only content history of file nodes.
// Appending happens through TreeService.UpdateContent; this service reads,
// restores and prunes history.
type VersionService interface {
	// List returns a file's versions ascending by number.
	List(ctx context.Context, nodeID, actorID uuid.UUID) ([]model.Version, error)
	// Get loads one version by number.
	Get(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) (*model.Version, error)
	// Content streams the bytes of one version.
	Content(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) (io.ReadCloser, *model.Version, error)
	// Restore appends a copy of an old version as the newest one; history is
	// never rewritten.
	Restore(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) (*model.Version, error)
	// Delete prunes a non-current version; owner only.
	Delete(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) error
}

type VersionServiceImpl struct {
	versions repository.VersionRepository
	nodes    repository.NodeRepository
	shares   repository.ShareRepository
	blobs    blob.Store
	log      *zap.Logger
}

// NewVersionService constructs VersionService with required dependencies.
func NewVersionService(versions repository.VersionRepository, nodes repository.NodeRepository, shares repository.ShareRepository, blobs blob.Store, log *zap.Logger) *VersionServiceImpl {
	return &VersionServiceImpl{versions: versions, nodes: nodes, shares: shares, blobs: blobs, log: log}
}

// List returns a file's versions ascending by number.
func (s *VersionServiceImpl) List(ctx context.Context, nodeID, actorID uuid.UUID) ([]model.Version, error) {
	if _, err := s.readableFile(ctx, nodeID, actorID); err != nil {
		return nil, err
	}
	return s.versions.ListForNode(ctx, nodeID)
}

// Get loads one version by number.
func (s *VersionServiceImpl) Get(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) (*model.Version, error) {
	if _, err := s.readableFile(ctx, nodeID, actorID); err != nil {
		return nil, err
	}
	return s.versions.Get(ctx, nodeID, number)
}

// Content streams the bytes of one version.
func (s *VersionServiceImpl) Content(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) (io.ReadCloser, *model.Version, error) {
	v, err := s.Get(ctx, nodeID, number, actorID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, v.Locator)
	if err != nil {
		return nil, nil, err
	}
	return rc, v, nil
}

// Restore copies version number's bytes to a fresh locator and appends them
// as the newest version; requires write access.
func (s *VersionServiceImpl) Restore(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) (*model.Version, error) {
	n, err := s.readableFile(ctx, nodeID, actorID)
	if err != nil {
		return nil, err
	}
	perm, err := resolvePermission(ctx, s.shares, n, actorID)
	if err != nil {
		return nil, err
	}
	if !perm.CanWrite() {
		return nil, errs.ErrPermissionDenied
	}

	old, err := s.versions.Get(ctx, nodeID, number)
	if err != nil {
		return nil, err
	}
	rc, err := s.blobs.Get(ctx, old.Locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	key, err := blob.NewKey(n.OwnerID, n.Name)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Put(ctx, key, rc); err != nil {
		return nil, err
	}
	v, err := s.versions.Append(ctx, nodeID, actorID, key, old.Size)
	if err != nil {
		cleanupBlobs(ctx, s.blobs, s.log, []string{key})
		return nil, err
	}
	return v, nil
}

// Delete prunes an old version and its backing blob; owner only, and the
// current version is protected.
func (s *VersionServiceImpl) Delete(ctx context.Context, nodeID uuid.UUID, number int64, actorID uuid.UUID) error {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	if n.OwnerID != actorID {
		return errs.ErrPermissionDenied
	}
	locator, err := s.versions.Delete(ctx, nodeID, number)
	if err != nil {
		return err
	}
	cleanupBlobs(ctx, s.blobs, s.log, []string{locator})
	return nil
}

// readableFile loads the node and checks it is a file the actor can read.
func (s *VersionServiceImpl) readableFile(ctx context.Context, nodeID, actorID uuid.UUID) (*model.Node, error) {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if n.IsFolder() {
		return nil, errs.ErrNotAFile
	}
	ok, err := canRead(ctx, s.nodes, s.shares, n, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrPermissionDenied
	}
	return n, nil
}

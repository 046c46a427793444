package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/skobelin/sharedrive/internal/blob"
	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
	"github.com/skobelin/sharedrive/internal/repository"
)

// TreeService maintains the per-owner forest of nodes and gates every
// operation on ownership or an active share.
type TreeService interface {
	// Create adds a folder, or a file with optional initial content
	// (recording version 1 when content is present).
	Create(ctx context.Context, ownerID uuid.UUID, name string, typ model.NodeType, parentID uuid.NullUUID, content []byte, mimeType string) (*model.Node, error)
	// Get loads a node the actor can read.
	Get(ctx context.Context, nodeID, actorID uuid.UUID) (*model.Node, error)
	// List returns nodes visible to the actor: with a nil parent, the actor's
	// roots merged with nodes shared with them; otherwise the folder's
	// children. Folders sort before files, then by name.
	List(ctx context.Context, parentID uuid.NullUUID, actorID uuid.UUID) ([]model.Node, error)
	// Move reparents a node; requires ownership or a write grant.
	Move(ctx context.Context, nodeID uuid.UUID, newParent uuid.NullUUID, actorID uuid.UUID) error
	// Rename changes the display name; requires ownership or a write grant.
	Rename(ctx context.Context, nodeID uuid.UUID, name string, actorID uuid.UUID) error
	// Delete removes the node and its whole subtree; owner only.
	Delete(ctx context.Context, nodeID, actorID uuid.UUID) error
	// UpdateContent stores new bytes and appends the next version.
	UpdateContent(ctx context.Context, nodeID, actorID uuid.UUID, content []byte) (*model.Version, error)
	// Content streams the latest bytes of a file the actor can read.
	Content(ctx context.Context, nodeID, actorID uuid.UUID) (io.ReadCloser, *model.Node, error)
}

type TreeServiceImpl struct {
	nodes    repository.NodeRepository
	shares   repository.ShareRepository
	versions repository.VersionRepository
	blobs    blob.Store
	log      *zap.Logger
}

// NewTreeService constructs TreeService with required dependencies.
func NewTreeService(nodes repository.NodeRepository, shares repository.ShareRepository, versions repository.VersionRepository, blobs blob.Store, log *zap.Logger) *TreeServiceImpl {
	return &TreeServiceImpl{nodes: nodes, shares: shares, versions: versions, blobs: blobs, log: log}
}

// Create validates input, stores initial content for files, and inserts the
// node (with its version 1 row) in one repository transaction.
func (s *TreeServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, name string, typ model.NodeType, parentID uuid.NullUUID, content []byte, mimeType string) (*model.Node, error) {
	if ownerID == uuid.Nil {
		return nil, errors.New("validation: empty owner id")
	}
	if name == "" {
		return nil, errors.New("validation: empty name")
	}
	if !typ.Valid() {
		return nil, errors.New("validation: unknown node type")
	}
	if typ == model.TypeFolder && content != nil {
		return nil, errors.New("validation: folder cannot carry content")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	n := &model.Node{
		ID:       id,
		Name:     name,
		Type:     typ,
		OwnerID:  ownerID,
		ParentID: parentID,
		MIMEType: mimeType,
	}

	var initial *model.Version
	if typ == model.TypeFile && content != nil {
		key, err := blob.NewKey(ownerID, name)
		if err != nil {
			return nil, err
		}
		if err := s.blobs.Put(ctx, key, bytes.NewReader(content)); err != nil {
			return nil, err
		}
		n.Locator, n.Size = key, int64(len(content))

		vid, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		initial = &model.Version{
			ID:       vid,
			Locator:  key,
			Size:     n.Size,
			AuthorID: uuid.NullUUID{UUID: ownerID, Valid: true},
		}
	}

	if err := s.nodes.Create(ctx, n, initial); err != nil {
		if initial != nil {
			cleanupBlobs(ctx, s.blobs, s.log, []string{initial.Locator})
		}
		return nil, err
	}
	return n, nil
}

// Get loads a node the actor can read.
func (s *TreeServiceImpl) Get(ctx context.Context, nodeID, actorID uuid.UUID) (*model.Node, error) {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, err
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

// List returns the nodes visible to the actor under parentID.
func (s *TreeServiceImpl) List(ctx context.Context, parentID uuid.NullUUID, actorID uuid.UUID) ([]model.Node, error) {
	if actorID == uuid.Nil {
		return nil, errors.New("validation: empty actor id")
	}
	if !parentID.Valid {
		own, err := s.nodes.Roots(ctx, actorID)
		if err != nil {
			return nil, err
		}
		shared, err := s.nodes.ListSharedWith(ctx, actorID)
		if err != nil {
			return nil, err
		}
		out := append(own, shared...)
		sortNodes(out)
		return out, nil
	}

	parent, err := s.nodes.Get(ctx, parentID.UUID)
	if err != nil {
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, errs.ErrInvalidParent
	}
	ok, err := canRead(ctx, s.nodes, s.shares, parent, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrPermissionDenied
	}
	return s.nodes.Children(ctx, parentID.UUID)
}

// sortNodes orders folders before files, then lexicographically by name.
func sortNodes(ns []model.Node) {
	sort.SliceStable(ns, func(i, j int) bool {
		fi, fj := ns[i].IsFolder(), ns[j].IsFolder()
		if fi != fj {
			return fi
		}
		return ns[i].Name < ns[j].Name
	})
}

// Move reparents a node for an actor holding write access.
func (s *TreeServiceImpl) Move(ctx context.Context, nodeID uuid.UUID, newParent uuid.NullUUID, actorID uuid.UUID) error {
	if err := s.requireWrite(ctx, nodeID, actorID); err != nil {
		return err
	}
	return s.nodes.Move(ctx, nodeID, newParent)
}

// Rename changes the display name for an actor holding write access.
func (s *TreeServiceImpl) Rename(ctx context.Context, nodeID uuid.UUID, name string, actorID uuid.UUID) error {
	if name == "" {
		return errors.New("validation: empty name")
	}
	if err := s.requireWrite(ctx, nodeID, actorID); err != nil {
		return err
	}
	return s.nodes.Rename(ctx, nodeID, name)
}

// Delete removes the subtree; sharing never grants delete, so the actor must
// be the owner. Orphaned blobs are cleaned up after the commit.
func (s *TreeServiceImpl) Delete(ctx context.Context, nodeID, actorID uuid.UUID) error {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	if n.OwnerID != actorID {
		return errs.ErrPermissionDenied
	}
	locators, err := s.nodes.DeleteSubtree(ctx, nodeID)
	if err != nil {
		return err
	}
	cleanupBlobs(ctx, s.blobs, s.log, locators)
	return nil
}

// UpdateContent stores the bytes under a fresh locator and appends the next
// version; the old locator stays behind the previous version row.
func (s *TreeServiceImpl) UpdateContent(ctx context.Context, nodeID, actorID uuid.UUID, content []byte) (*model.Version, error) {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if n.IsFolder() {
		return nil, errs.ErrNotAFile
	}
	perm, err := resolvePermission(ctx, s.shares, n, actorID)
	if err != nil {
		return nil, err
	}
	if !perm.CanWrite() {
		return nil, errs.ErrPermissionDenied
	}

	key, err := blob.NewKey(n.OwnerID, n.Name)
	if err != nil {
		return nil, err
	}
	if err := s.blobs.Put(ctx, key, bytes.NewReader(content)); err != nil {
		return nil, err
	}
	v, err := s.versions.Append(ctx, nodeID, actorID, key, int64(len(content)))
	if err != nil {
		cleanupBlobs(ctx, s.blobs, s.log, []string{key})
		return nil, err
	}
	return v, nil
}

// Content streams the latest bytes of a file the actor can read.
func (s *TreeServiceImpl) Content(ctx context.Context, nodeID, actorID uuid.UUID) (io.ReadCloser, *model.Node, error) {
	n, err := s.Get(ctx, nodeID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if n.IsFolder() {
		return nil, nil, errs.ErrNotAFile
	}
	if n.Locator == "" {
		return nil, nil, errs.ErrNotFound
	}
	rc, err := s.blobs.Get(ctx, n.Locator)
	if err != nil {
		return nil, nil, err
	}
	return rc, n, nil
}

func (s *TreeServiceImpl) requireWrite(ctx context.Context, nodeID, actorID uuid.UUID) error {
	n, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		return err
	}
	perm, err := resolvePermission(ctx, s.shares, n, actorID)
	if err != nil {
		return err
	}
	if !perm.CanWrite() {
		return errs.ErrPermissionDenied
	}
	return nil
}

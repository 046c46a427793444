package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/skobelin/sharedrive/internal/blob"
	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
)

type treeFixture struct {
	st    *memState
	store *blob.MemStore
	tree  *TreeServiceImpl
	share *ShareServiceImpl
	vers  *VersionServiceImpl
	users *fakeUserRepo
}

func newTreeFixture(us ...*model.User) *treeFixture {
	st := newMemState()
	nodes, shares, versions := &memNodes{st: st}, &memShares{st: st}, &memVersions{st: st}
	store := blob.NewMemStore()
	users := newFakeUserRepo(us...)
	log := zap.NewNop()
	return &treeFixture{
		st:    st,
		store: store,
		tree:  NewTreeService(nodes, shares, versions, store, log),
		share: NewShareService(shares, nodes, users),
		vers:  NewVersionService(versions, nodes, shares, store, log),
		users: users,
	}
}

func mustUser(email, name string) *model.User {
	return &model.User{ID: uuid.Must(uuid.NewV4()), Email: email, Username: name, IsActive: true}
}

func TestTreeService_Create_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	if _, err := fx.tree.Create(ctx, uuid.Nil, "a", model.TypeFolder, uuid.NullUUID{}, nil, ""); err == nil {
		t.Fatalf("want validation error on empty owner")
	}
	if _, err := fx.tree.Create(ctx, owner, "", model.TypeFolder, uuid.NullUUID{}, nil, ""); err == nil {
		t.Fatalf("want validation error on empty name")
	}
	if _, err := fx.tree.Create(ctx, owner, "a", model.NodeType("link"), uuid.NullUUID{}, nil, ""); err == nil {
		t.Fatalf("want validation error on unknown type")
	}
	if _, err := fx.tree.Create(ctx, owner, "a", model.TypeFolder, uuid.NullUUID{}, []byte("x"), ""); err == nil {
		t.Fatalf("want validation error on folder with content")
	}
}

func TestTreeService_Create_FileRecordsVersionOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	n, err := fx.tree.Create(ctx, owner, "notes.txt", model.TypeFile, uuid.NullUUID{}, []byte("hello"), "text/plain")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n.Size != 5 || n.Locator == "" {
		t.Fatalf("node content fields not set: %+v", n)
	}
	if fx.store.Len() != 1 {
		t.Fatalf("want 1 stored blob, got %d", fx.store.Len())
	}

	vs, err := fx.vers.List(ctx, n.ID, owner)
	if err != nil {
		t.Fatalf("List versions: %v", err)
	}
	if len(vs) != 1 || vs[0].Number != 1 || vs[0].Locator != n.Locator {
		t.Fatalf("unexpected initial version: %+v", vs)
	}
}

func TestTreeService_Create_NameConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	if _, err := fx.tree.Create(ctx, owner, "Docs", model.TypeFolder, uuid.NullUUID{}, nil, ""); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := fx.tree.Create(ctx, owner, "Docs", model.TypeFolder, uuid.NullUUID{}, nil, ""); !errors.Is(err, errs.ErrNameConflict) {
		t.Fatalf("want ErrNameConflict, got %v", err)
	}
}

func TestTreeService_Create_BlobCleanedUpOnRepoFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())
	badParent := uuid.NullUUID{UUID: uuid.Must(uuid.NewV4()), Valid: true}

	_, err := fx.tree.Create(ctx, owner, "a.txt", model.TypeFile, badParent, []byte("x"), "")
	if !errors.Is(err, errs.ErrInvalidParent) {
		t.Fatalf("want ErrInvalidParent, got %v", err)
	}
	if fx.store.Len() != 0 {
		t.Fatalf("orphaned blob left behind: %d", fx.store.Len())
	}
}

func TestTreeService_Move_RejectsCycles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	top, err := fx.tree.Create(ctx, owner, "top", model.TypeFolder, uuid.NullUUID{}, nil, "")
	if err != nil {
		t.Fatalf("Create top: %v", err)
	}
	sub, err := fx.tree.Create(ctx, owner, "sub", model.TypeFolder, uuid.NullUUID{UUID: top.ID, Valid: true}, nil, "")
	if err != nil {
		t.Fatalf("Create sub: %v", err)
	}

	err = fx.tree.Move(ctx, top.ID, uuid.NullUUID{UUID: top.ID, Valid: true}, owner)
	if !errors.Is(err, errs.ErrCycleDetected) {
		t.Fatalf("move under self: want ErrCycleDetected, got %v", err)
	}
	err = fx.tree.Move(ctx, top.ID, uuid.NullUUID{UUID: sub.ID, Valid: true}, owner)
	if !errors.Is(err, errs.ErrCycleDetected) {
		t.Fatalf("move under descendant: want ErrCycleDetected, got %v", err)
	}
}

func TestTreeService_Move_ToRoot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	top, _ := fx.tree.Create(ctx, owner, "top", model.TypeFolder, uuid.NullUUID{}, nil, "")
	sub, _ := fx.tree.Create(ctx, owner, "sub", model.TypeFolder, uuid.NullUUID{UUID: top.ID, Valid: true}, nil, "")

	if err := fx.tree.Move(ctx, sub.ID, uuid.NullUUID{}, owner); err != nil {
		t.Fatalf("Move to root: %v", err)
	}
	roots, err := fx.tree.List(ctx, uuid.NullUUID{}, owner)
	if err != nil {
		t.Fatalf("List roots: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("want 2 roots, got %d", len(roots))
	}
}

func TestTreeService_List_SharedFolderScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	alice := mustUser("alice@example.com", "alice")
	bob := mustUser("bob@example.com", "bob")
	fx := newTreeFixture(alice, bob)

	folder, err := fx.tree.Create(ctx, alice.ID, "shared", model.TypeFolder, uuid.NullUUID{}, nil, "")
	if err != nil {
		t.Fatalf("Create folder: %v", err)
	}
	file, err := fx.tree.Create(ctx, alice.ID, "report.txt", model.TypeFile,
		uuid.NullUUID{UUID: folder.ID, Valid: true}, []byte("q3 numbers"), "text/plain")
	if err != nil {
		t.Fatalf("Create file: %v", err)
	}

	if _, err := fx.share.Grant(ctx, folder.ID, alice.ID, bob.ID, model.PermRead); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	// The grant shows up in the grantee's top-level listing.
	visible, err := fx.tree.List(ctx, uuid.NullUUID{}, bob.ID)
	if err != nil {
		t.Fatalf("List for grantee: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != folder.ID {
		t.Fatalf("grantee top-level listing: %+v", visible)
	}

	// The grantee can list the folder and read the file inside it.
	children, err := fx.tree.List(ctx, uuid.NullUUID{UUID: folder.ID, Valid: true}, bob.ID)
	if err != nil {
		t.Fatalf("List children for grantee: %v", err)
	}
	if len(children) != 1 || children[0].ID != file.ID {
		t.Fatalf("grantee children listing: %+v", children)
	}
	rc, _, err := fx.tree.Content(ctx, file.ID, bob.ID)
	if err != nil {
		t.Fatalf("Content for grantee: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "q3 numbers" {
		t.Fatalf("unexpected content: %q", data)
	}

	// Read grant never allows mutation.
	if _, err := fx.tree.UpdateContent(ctx, file.ID, bob.ID, []byte("rewrite")); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("update by read grantee: want ErrPermissionDenied, got %v", err)
	}

	// A stranger sees nothing.
	carol := uuid.Must(uuid.NewV4())
	if _, err := fx.tree.Get(ctx, file.ID, carol); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("stranger get: want ErrPermissionDenied, got %v", err)
	}
}

func TestTreeService_List_NestedSharedFolder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	alice := mustUser("alice@example.com", "alice")
	bob := mustUser("bob@example.com", "bob")
	fx := newTreeFixture(alice, bob)

	docs, err := fx.tree.Create(ctx, alice.ID, "docs", model.TypeFolder, uuid.NullUUID{}, nil, "")
	if err != nil {
		t.Fatalf("Create docs: %v", err)
	}
	sub, err := fx.tree.Create(ctx, alice.ID, "sub", model.TypeFolder,
		uuid.NullUUID{UUID: docs.ID, Valid: true}, nil, "")
	if err != nil {
		t.Fatalf("Create sub: %v", err)
	}
	file, err := fx.tree.Create(ctx, alice.ID, "f.txt", model.TypeFile,
		uuid.NullUUID{UUID: sub.ID, Valid: true}, []byte("deep"), "text/plain")
	if err != nil {
		t.Fatalf("Create file: %v", err)
	}

	if _, err := fx.share.Grant(ctx, docs.ID, alice.ID, bob.ID, model.PermRead); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	// A grant on a folder makes its whole subtree browsable: everything a
	// listing shows, the grantee can also open.
	children, err := fx.tree.List(ctx, uuid.NullUUID{UUID: sub.ID, Valid: true}, bob.ID)
	if err != nil {
		t.Fatalf("List nested folder for grantee: %v", err)
	}
	if len(children) != 1 || children[0].ID != file.ID {
		t.Fatalf("nested listing: %+v", children)
	}
	rc, _, err := fx.tree.Content(ctx, file.ID, bob.ID)
	if err != nil {
		t.Fatalf("Content of nested file for grantee: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "deep" {
		t.Fatalf("unexpected content: %q", data)
	}

	// Read visibility never implies write anywhere in the subtree.
	if _, err := fx.tree.UpdateContent(ctx, file.ID, bob.ID, []byte("x")); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("nested update by read grantee: want ErrPermissionDenied, got %v", err)
	}

	// No grant anywhere on the chain means no visibility.
	carol := uuid.Must(uuid.NewV4())
	if _, err := fx.tree.List(ctx, uuid.NullUUID{UUID: sub.ID, Valid: true}, carol); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("stranger listing: want ErrPermissionDenied, got %v", err)
	}
}

func TestTreeService_List_FoldersBeforeFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	fx.tree.Create(ctx, owner, "zeta.txt", model.TypeFile, uuid.NullUUID{}, []byte("z"), "")
	fx.tree.Create(ctx, owner, "beta", model.TypeFolder, uuid.NullUUID{}, nil, "")
	fx.tree.Create(ctx, owner, "alpha.txt", model.TypeFile, uuid.NullUUID{}, []byte("a"), "")

	roots, err := fx.tree.List(ctx, uuid.NullUUID{}, owner)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(roots) != 3 || roots[0].Name != "beta" || roots[1].Name != "alpha.txt" || roots[2].Name != "zeta.txt" {
		t.Fatalf("unexpected order: %+v", roots)
	}
}

func TestTreeService_Delete_OwnerOnlyAndCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	alice := mustUser("alice@example.com", "alice")
	bob := mustUser("bob@example.com", "bob")
	fx := newTreeFixture(alice, bob)

	folder, _ := fx.tree.Create(ctx, alice.ID, "project", model.TypeFolder, uuid.NullUUID{}, nil, "")
	file, _ := fx.tree.Create(ctx, alice.ID, "draft.txt", model.TypeFile,
		uuid.NullUUID{UUID: folder.ID, Valid: true}, []byte("v1"), "text/plain")
	if _, err := fx.tree.UpdateContent(ctx, file.ID, alice.ID, []byte("v2")); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if _, err := fx.share.Grant(ctx, file.ID, alice.ID, bob.ID, model.PermWrite); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	// A write grant on the file does not allow deleting the folder or the file.
	if err := fx.tree.Delete(ctx, file.ID, bob.ID); !errors.Is(err, errs.ErrPermissionDenied) {
		t.Fatalf("grantee delete: want ErrPermissionDenied, got %v", err)
	}

	if err := fx.tree.Delete(ctx, folder.ID, alice.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	if _, err := fx.tree.Get(ctx, file.ID, alice.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("file after delete: want ErrNotFound, got %v", err)
	}
	if _, err := fx.vers.Get(ctx, file.ID, 1, alice.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("version after delete: want ErrNotFound, got %v", err)
	}
	if _, err := fx.share.PermissionFor(ctx, file.ID, bob.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("permission after delete: want ErrNotFound, got %v", err)
	}
	if fx.store.Len() != 0 {
		t.Fatalf("orphaned blobs after cascade: %d", fx.store.Len())
	}
}

func TestTreeService_UpdateContent_SequentialVersions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	n, _ := fx.tree.Create(ctx, owner, "a.txt", model.TypeFile, uuid.NullUUID{}, []byte("one"), "text/plain")

	v2, err := fx.tree.UpdateContent(ctx, n.ID, owner, []byte("two"))
	if err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if v2.Number != 2 {
		t.Fatalf("want version 2, got %d", v2.Number)
	}

	vs, err := fx.vers.List(ctx, n.ID, owner)
	if err != nil {
		t.Fatalf("List versions: %v", err)
	}
	if len(vs) != 2 || vs[0].Number != 1 || vs[1].Number != 2 {
		t.Fatalf("history not sequential: %+v", vs)
	}

	// The node serves the latest bytes.
	rc, node, err := fx.tree.Content(ctx, n.ID, owner)
	if err != nil {
		t.Fatalf("Content: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "two" || node.Size != 3 {
		t.Fatalf("latest content mismatch: %q size=%d", data, node.Size)
	}
}

func TestTreeService_UpdateContent_FolderRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fx := newTreeFixture()
	owner := uuid.Must(uuid.NewV4())

	folder, _ := fx.tree.Create(ctx, owner, "dir", model.TypeFolder, uuid.NullUUID{}, nil, "")
	if _, err := fx.tree.UpdateContent(ctx, folder.ID, owner, []byte("x")); !errors.Is(err, errs.ErrNotAFile) {
		t.Fatalf("want ErrNotAFile, got %v", err)
	}
}

func TestTreeService_Rename_WriteGranteeAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	alice := mustUser("alice@example.com", "alice")
	bob := mustUser("bob@example.com", "bob")
	fx := newTreeFixture(alice, bob)

	n, _ := fx.tree.Create(ctx, alice.ID, "a.txt", model.TypeFile, uuid.NullUUID{}, []byte("x"), "")
	if _, err := fx.share.Grant(ctx, n.ID, alice.ID, bob.ID, model.PermWrite); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	if err := fx.tree.Rename(ctx, n.ID, "b.txt", bob.ID); err != nil {
		t.Fatalf("Rename by write grantee: %v", err)
	}
	got, _ := fx.tree.Get(ctx, n.ID, alice.ID)
	if got.Name != "b.txt" {
		t.Fatalf("rename not applied: %+v", got)
	}
}

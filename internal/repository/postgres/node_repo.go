package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
)

// NodeRepo implements NodeRepository using PostgreSQL. Structural invariants
// (parent is a folder of the same owner, acyclic parent chain, unique sibling
// names) are checked inside transactions; partial unique indexes and foreign
// keys backstop the checks.
type NodeRepo struct{ db *DB }

// NewNodeRepo constructs a node repository.
func NewNodeRepo(db *DB) *NodeRepo { return &NodeRepo{db: db} }

const nodeCols = `id, filename, COALESCE(file_path,''), COALESCE(file_size,0),
COALESCE(file_type,''), type, owner_id, parent_id, is_shared, upload_date`

const siblingExists = `
SELECT EXISTS (
  SELECT 1 FROM files
  WHERE owner_id=$1 AND parent_id IS NOT DISTINCT FROM $2 AND filename=$3 AND id<>$4
)`

// ancestorOf reports whether $2 appears on the parent chain starting at $1
// ($1 itself included).
const ancestorOf = `
WITH RECURSIVE ancestors AS (
  SELECT id, parent_id FROM files WHERE id=$1
  UNION ALL
  SELECT f.id, f.parent_id FROM files f JOIN ancestors a ON f.id = a.parent_id
)
SELECT EXISTS (SELECT 1 FROM ancestors WHERE id=$2)`

func scanNode(row pgx.Row) (*model.Node, error) {
	var n model.Node
	err := row.Scan(&n.ID, &n.Name, &n.Locator, &n.Size, &n.MIMEType,
		&n.Type, &n.OwnerID, &n.ParentID, &n.IsShared, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

// textOrNil maps the empty string to SQL NULL for nullable text columns.
func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// checkParent validates that parent references a folder owned by ownerID.
func checkParent(ctx context.Context, tx pgx.Tx, parent, ownerID uuid.UUID) error {
	const q = `SELECT owner_id, type FROM files WHERE id=$1`
	var po uuid.UUID
	var pt model.NodeType
	if err := tx.QueryRow(ctx, q, parent).Scan(&po, &pt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrInvalidParent
		}
		return err
	}
	if pt != model.TypeFolder || po != ownerID {
		return errs.ErrInvalidParent
	}
	return nil
}

// checkSiblingName rejects a duplicate name among the siblings under parent,
// ignoring the node itself (self is uuid.Nil on create).
func checkSiblingName(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, parent uuid.NullUUID, name string, self uuid.UUID) error {
	var taken bool
	if err := tx.QueryRow(ctx, siblingExists, ownerID, parent, name, self).Scan(&taken); err != nil {
		return err
	}
	if taken {
		return errs.ErrNameConflict
	}
	return nil
}

// Create inserts a node, and the initial version row for a file created with
// content, in one transaction.
func (r *NodeRepo) Create(ctx context.Context, n *model.Node, initial *model.Version) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	if n.ParentID.Valid {
		if err = checkParent(ctx, tx, n.ParentID.UUID, n.OwnerID); err != nil {
			return err
		}
	}
	if err = checkSiblingName(ctx, tx, n.OwnerID, n.ParentID, n.Name, uuid.Nil); err != nil {
		return err
	}

	const ins = `
INSERT INTO files (id, filename, file_path, file_size, file_type, type, owner_id, parent_id, is_shared)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false)`
	var size any
	if n.Type == model.TypeFile {
		size = n.Size
	}
	if _, err = tx.Exec(ctx, ins, n.ID, n.Name, textOrNil(n.Locator), size,
		textOrNil(n.MIMEType), n.Type, n.OwnerID, n.ParentID); err != nil {
		if uniqueViolation(err) != "" {
			return errs.ErrNameConflict
		}
		return err
	}

	if initial != nil {
		const insVer = `
INSERT INTO file_versions (id, file_id, version_number, file_path, file_size, created_by_id)
VALUES ($1,$2,1,$3,$4,$5)`
		if _, err = tx.Exec(ctx, insVer, initial.ID, n.ID, initial.Locator, initial.Size, initial.AuthorID); err != nil {
			return err
		}
		initial.NodeID = n.ID
		initial.Number = 1
	}
	return nil
}

// Get loads a node by ID.
func (r *NodeRepo) Get(ctx context.Context, id uuid.UUID) (*model.Node, error) {
	const q = `SELECT ` + nodeCols + ` FROM files WHERE id=$1`
	return scanNode(r.db.Pool.QueryRow(ctx, q, id))
}

// Move reparents a node after cycle, parent and sibling-name checks.
func (r *NodeRepo) Move(ctx context.Context, id uuid.UUID, newParent uuid.NullUUID) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT owner_id, filename FROM files WHERE id=$1 FOR UPDATE`
	var ownerID uuid.UUID
	var name string
	if err = tx.QueryRow(ctx, sel, id).Scan(&ownerID, &name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}

	if newParent.Valid {
		if newParent.UUID == id {
			return errs.ErrCycleDetected
		}
		if err = checkParent(ctx, tx, newParent.UUID, ownerID); err != nil {
			return err
		}
		var cyclic bool
		if err = tx.QueryRow(ctx, ancestorOf, newParent.UUID, id).Scan(&cyclic); err != nil {
			return err
		}
		if cyclic {
			return errs.ErrCycleDetected
		}
	}
	if err = checkSiblingName(ctx, tx, ownerID, newParent, name, id); err != nil {
		return err
	}

	const upd = `UPDATE files SET parent_id=$2 WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, id, newParent); err != nil {
		if uniqueViolation(err) != "" {
			return errs.ErrNameConflict
		}
		return err
	}
	return nil
}

// Rename changes the display name, enforcing sibling uniqueness.
func (r *NodeRepo) Rename(ctx context.Context, id uuid.UUID, name string) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT owner_id, parent_id FROM files WHERE id=$1 FOR UPDATE`
	var ownerID uuid.UUID
	var parent uuid.NullUUID
	if err = tx.QueryRow(ctx, sel, id).Scan(&ownerID, &parent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if err = checkSiblingName(ctx, tx, ownerID, parent, name, id); err != nil {
		return err
	}

	const upd = `UPDATE files SET filename=$2 WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, id, name); err != nil {
		if uniqueViolation(err) != "" {
			return errs.ErrNameConflict
		}
		return err
	}
	return nil
}

// DeleteSubtree removes the node and every descendant in one transaction.
// The parent_id foreign key cascades the subtree, and the share and version
// foreign keys cascade their rows; blob locators are collected first so the
// caller can clean up storage after commit.
func (r *NodeRepo) DeleteSubtree(ctx context.Context, id uuid.UUID) (locators []string, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const subtree = `
WITH RECURSIVE subtree AS (
  SELECT id, file_path FROM files WHERE id=$1
  UNION ALL
  SELECT f.id, f.file_path FROM files f JOIN subtree s ON f.parent_id = s.id
)`
	const selFiles = subtree + `
SELECT file_path FROM subtree WHERE file_path IS NOT NULL`
	const selVers = subtree + `
SELECT v.file_path FROM file_versions v JOIN subtree s ON v.file_id = s.id`
	const del = `DELETE FROM files WHERE id=$1`

	for _, q := range []string{selFiles, selVers} {
		var rows pgx.Rows
		rows, err = tx.Query(ctx, q, id)
		if err != nil {
			return nil, err
		}
		locators, err = collectLocators(rows, locators)
		if err != nil {
			return nil, err
		}
	}

	tag, execErr := tx.Exec(ctx, del, id)
	if execErr != nil {
		err = execErr
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		err = errs.ErrNotFound
		return nil, err
	}
	return locators, nil
}

// listOrder keeps listings deterministic: folders before files, then by name.
const listOrder = ` ORDER BY (type <> 'folder'), filename, id`

// Children lists the direct children of a folder.
func (r *NodeRepo) Children(ctx context.Context, parentID uuid.UUID) ([]model.Node, error) {
	const q = `SELECT ` + nodeCols + ` FROM files WHERE parent_id=$1` + listOrder
	return r.queryNodes(ctx, q, parentID)
}

// Roots lists an owner's parentless nodes.
func (r *NodeRepo) Roots(ctx context.Context, ownerID uuid.UUID) ([]model.Node, error) {
	const q = `SELECT ` + nodeCols + ` FROM files WHERE owner_id=$1 AND parent_id IS NULL` + listOrder
	return r.queryNodes(ctx, q, ownerID)
}

// ListSharedWith lists nodes with an active share granted to the user.
func (r *NodeRepo) ListSharedWith(ctx context.Context, userID uuid.UUID) ([]model.Node, error) {
	const q = `
SELECT f.id, f.filename, COALESCE(f.file_path,''), COALESCE(f.file_size,0),
COALESCE(f.file_type,''), f.type, f.owner_id, f.parent_id, f.is_shared, f.upload_date
FROM files f
JOIN file_shares sh ON sh.file_id = f.id
WHERE sh.shared_with_id=$1
ORDER BY (f.type <> 'folder'), f.filename, f.id`
	return r.queryNodes(ctx, q, userID)
}

func (r *NodeRepo) queryNodes(ctx context.Context, q string, args ...any) ([]model.Node, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Node
	for rows.Next() {
		var n model.Node
		if err = rows.Scan(&n.ID, &n.Name, &n.Locator, &n.Size, &n.MIMEType,
			&n.Type, &n.OwnerID, &n.ParentID, &n.IsShared, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
)

// VersionRepo implements VersionRepository using PostgreSQL. Appends to the
// same node serialize on a FOR UPDATE lock of the node row; the unique
// (file_id, version_number) index backstops the lock, and a bounded in-tx
// retry absorbs collisions before surfacing ErrVersionConflict.
type VersionRepo struct{ db *DB }

// NewVersionRepo constructs a version repository.
func NewVersionRepo(db *DB) *VersionRepo { return &VersionRepo{db: db} }

// maxAppendRetries bounds re-reads of the current max version number when an
// insert hits the uniqueness backstop.
const maxAppendRetries = 3

// Append records the next version of a file and updates the node's latest
// locator and size in the same transaction.
func (r *VersionRepo) Append(ctx context.Context, nodeID, author uuid.UUID, locator string, size int64) (v *model.Version, err error) {
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

	const lock = `SELECT type FROM files WHERE id=$1 FOR UPDATE`
	var typ model.NodeType
	if err = tx.QueryRow(ctx, lock, nodeID).Scan(&typ); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if typ != model.TypeFile {
		return nil, errs.ErrNotAFile
	}

	const nextNum = `SELECT COALESCE(MAX(version_number),0)+1 FROM file_versions WHERE file_id=$1`
	const ins = `
INSERT INTO file_versions (id, file_id, version_number, file_path, file_size, created_by_id)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING created_at`

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	v = &model.Version{
		ID:       id,
		NodeID:   nodeID,
		Locator:  locator,
		Size:     size,
		AuthorID: uuid.NullUUID{UUID: author, Valid: true},
	}
	// Each attempt runs inside a savepoint: a unique violation aborts only the
	// savepoint, so the enclosing transaction stays usable for the re-read.
	for attempt := 0; ; attempt++ {
		if err = tx.QueryRow(ctx, nextNum, nodeID).Scan(&v.Number); err != nil {
			return nil, err
		}
		var sp pgx.Tx
		if sp, err = tx.Begin(ctx); err != nil {
			return nil, err
		}
		err = sp.QueryRow(ctx, ins, v.ID, nodeID, v.Number, locator, size, v.AuthorID).Scan(&v.CreatedAt)
		if err == nil {
			if err = sp.Commit(ctx); err != nil {
				return nil, err
			}
			break
		}
		_ = sp.Rollback(ctx)
		if uniqueViolation(err) == "" {
			return nil, err
		}
		if attempt+1 >= maxAppendRetries {
			err = fmt.Errorf("append version %d: %w", v.Number, errs.ErrVersionConflict)
			return nil, err
		}
	}

	const upd = `UPDATE files SET file_path=$2, file_size=$3 WHERE id=$1`
	if _, err = tx.Exec(ctx, upd, nodeID, locator, size); err != nil {
		return nil, err
	}
	return v, nil
}

// ListForNode lists versions ascending by number.
func (r *VersionRepo) ListForNode(ctx context.Context, nodeID uuid.UUID) ([]model.Version, error) {
	const q = `
SELECT id, file_id, version_number, file_path, file_size, created_by_id, created_at
FROM file_versions WHERE file_id=$1 ORDER BY version_number ASC`
	rows, err := r.db.Pool.Query(ctx, q, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Version
	for rows.Next() {
		var v model.Version
		if err = rows.Scan(&v.ID, &v.NodeID, &v.Number, &v.Locator, &v.Size, &v.AuthorID, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Get loads one version by node and number.
func (r *VersionRepo) Get(ctx context.Context, nodeID uuid.UUID, number int64) (*model.Version, error) {
	const q = `
SELECT id, file_id, version_number, file_path, file_size, created_by_id, created_at
FROM file_versions WHERE file_id=$1 AND version_number=$2`
	row := r.db.Pool.QueryRow(ctx, q, nodeID, number)
	var v model.Version
	if err := row.Scan(&v.ID, &v.NodeID, &v.Number, &v.Locator, &v.Size, &v.AuthorID, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Delete removes a non-current version and returns its blob locator. The
// newest version backs the node's live content and cannot be deleted.
func (r *VersionRepo) Delete(ctx context.Context, nodeID uuid.UUID, number int64) (locator string, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
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

	const lock = `SELECT id FROM files WHERE id=$1 FOR UPDATE`
	var id uuid.UUID
	if err = tx.QueryRow(ctx, lock, nodeID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}

	const maxNum = `SELECT COALESCE(MAX(version_number),0) FROM file_versions WHERE file_id=$1`
	var current int64
	if err = tx.QueryRow(ctx, maxNum, nodeID).Scan(&current); err != nil {
		return "", err
	}
	if number == current {
		err = errs.ErrCurrentVersion
		return "", err
	}

	const del = `DELETE FROM file_versions WHERE file_id=$1 AND version_number=$2 RETURNING file_path`
	if err = tx.QueryRow(ctx, del, nodeID, number).Scan(&locator); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return locator, nil
}

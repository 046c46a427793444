package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
)

// ShareRepo implements ShareRepository using PostgreSQL. The files.is_shared
// flag is rewritten in the same transaction as every share mutation.
type ShareRepo struct{ db *DB }

// NewShareRepo constructs a share repository.
func NewShareRepo(db *DB) *ShareRepo { return &ShareRepo{db: db} }

// Upsert inserts a grant or replaces the permission of the existing grant for
// the same (node, grantee) pair, and marks the node shared.
func (r *ShareRepo) Upsert(ctx context.Context, s *model.Share) (err error) {
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

	const ins = `
INSERT INTO file_shares (id, file_id, shared_with_id, permission)
VALUES ($1,$2,$3,$4)
ON CONFLICT (file_id, shared_with_id)
DO UPDATE SET permission = EXCLUDED.permission
RETURNING id, created_at`
	if err = tx.QueryRow(ctx, ins, s.ID, s.NodeID, s.GranteeID, s.Permission).
		Scan(&s.ID, &s.CreatedAt); err != nil {
		return err
	}

	const mark = `UPDATE files SET is_shared=true WHERE id=$1`
	if _, err = tx.Exec(ctx, mark, s.NodeID); err != nil {
		return err
	}
	return nil
}

// Get loads the grant for (node, grantee).
func (r *ShareRepo) Get(ctx context.Context, nodeID, granteeID uuid.UUID) (*model.Share, error) {
	const q = `
SELECT id, file_id, shared_with_id, permission, created_at
FROM file_shares WHERE file_id=$1 AND shared_with_id=$2`
	row := r.db.Pool.QueryRow(ctx, q, nodeID, granteeID)
	var s model.Share
	if err := row.Scan(&s.ID, &s.NodeID, &s.GranteeID, &s.Permission, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Delete revokes the grant and recomputes is_shared from the remaining grants.
func (r *ShareRepo) Delete(ctx context.Context, nodeID, granteeID uuid.UUID) (err error) {
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

	const del = `DELETE FROM file_shares WHERE file_id=$1 AND shared_with_id=$2`
	tag, execErr := tx.Exec(ctx, del, nodeID, granteeID)
	if execErr != nil {
		err = execErr
		return err
	}
	if tag.RowsAffected() == 0 {
		err = errs.ErrNotFound
		return err
	}

	const recompute = `
UPDATE files SET is_shared = EXISTS (SELECT 1 FROM file_shares WHERE file_id=$1)
WHERE id=$1`
	if _, err = tx.Exec(ctx, recompute, nodeID); err != nil {
		return err
	}
	return nil
}

// ListForNode lists grants on a node, oldest first.
func (r *ShareRepo) ListForNode(ctx context.Context, nodeID uuid.UUID) ([]model.Share, error) {
	const q = `
SELECT id, file_id, shared_with_id, permission, created_at
FROM file_shares WHERE file_id=$1 ORDER BY created_at, id`
	return r.queryShares(ctx, q, nodeID)
}

// ListForGrantee lists grants made to a user, newest first.
func (r *ShareRepo) ListForGrantee(ctx context.Context, granteeID uuid.UUID) ([]model.Share, error) {
	const q = `
SELECT id, file_id, shared_with_id, permission, created_at
FROM file_shares WHERE shared_with_id=$1 ORDER BY created_at DESC, id`
	return r.queryShares(ctx, q, granteeID)
}

func (r *ShareRepo) queryShares(ctx context.Context, q string, args ...any) ([]model.Share, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Share
	for rows.Next() {
		var s model.Share
		if err = rows.Scan(&s.ID, &s.NodeID, &s.GranteeID, &s.Permission, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

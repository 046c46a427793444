package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, email, username, hashed_password, is_active, is_admin, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsAdmin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user row, mapping uniqueness violations by constraint.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, username, hashed_password, is_active, is_admin)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, u.ID, u.Email, u.Username, u.PasswordHash, u.IsActive, u.IsAdmin)
	switch uniqueViolation(err) {
	case "users_email_key":
		return errs.ErrDuplicateEmail
	case "users_username_key":
		return errs.ErrDuplicateUsername
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, email))
}

// List returns all users ordered by creation time.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users ORDER BY created_at, id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err = rows.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsAdmin, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetActive flips the is_active flag.
func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	const q = `UPDATE users SET is_active=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetAdmin flips the is_admin flag.
func (r *UserRepo) SetAdmin(ctx context.Context, id uuid.UUID, admin bool) error {
	const q = `UPDATE users SET is_admin=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, admin)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete hard-deletes a user. Foreign keys cascade the owned subtrees, their
// shares and versions, and shares granted to the user; the orphaned blob
// locators are collected first so the caller can clean up storage.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) (locators []string, err error) {
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

	const selFiles = `SELECT file_path FROM files WHERE owner_id=$1 AND file_path IS NOT NULL`
	const selVers = `
SELECT v.file_path FROM file_versions v
JOIN files f ON f.id = v.file_id
WHERE f.owner_id=$1`
	const del = `DELETE FROM users WHERE id=$1`

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

	var tag, execErr = tx.Exec(ctx, del, id)
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

// collectLocators drains a single-column rows iterator into dst.
func collectLocators(rows pgx.Rows, dst []string) ([]string, error) {
	defer rows.Close()
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		if loc != "" {
			dst = append(dst, loc)
		}
	}
	return dst, rows.Err()
}

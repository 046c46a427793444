package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/skobelin/sharedrive/internal/blob"
	"github.com/skobelin/sharedrive/internal/crypto"
	"github.com/skobelin/sharedrive/internal/errs"
	"github.com/skobelin/sharedrive/internal/limiter"
	"github.com/skobelin/sharedrive/internal/model"
	"github.com/skobelin/sharedrive/internal/repository"
)

// IdentityService manages accounts and issues access tokens.
type IdentityService interface {
	// Register creates a new active, non-admin user.
	Register(ctx context.Context, email, username, password string) (*model.User, error)
	// Authenticate verifies credentials with rate limiting and issues a token.
	Authenticate(ctx context.Context, email, password, ip string) (model.Token, *model.User, error)
	// Get loads a user by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	// List returns all users; admin only.
	List(ctx context.Context, actorID uuid.UUID) ([]model.User, error)
	// Deactivate disables new sessions for the user without deleting data.
	Deactivate(ctx context.Context, actorID, userID uuid.UUID) error
	// SetAdmin grants or revokes the admin flag; admin only.
	SetAdmin(ctx context.Context, actorID, userID uuid.UUID, admin bool) error
	// Delete hard-deletes the user and cascades owned subtrees, their shares
	// and versions, and shares granted to the user.
	Delete(ctx context.Context, actorID, userID uuid.UUID) error
}

type IdentityServiceImpl struct {
	users     repository.UserRepository
	blobs     blob.Store
	lim       limiter.Limiter
	signKey   []byte
	accessTTL time.Duration
	log       *zap.Logger
}

// NewIdentityService constructs IdentityService with required dependencies.
func NewIdentityService(users repository.UserRepository, blobs blob.Store, lim limiter.Limiter, signKey []byte, accessTTL time.Duration, log *zap.Logger) *IdentityServiceImpl {
	return &IdentityServiceImpl{users: users, blobs: blobs, lim: lim, signKey: signKey, accessTTL: accessTTL, log: log}
}

// Register creates a new user with a hashed credential.
func (s *IdentityServiceImpl) Register(ctx context.Context, email, username, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	username = strings.TrimSpace(username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("validation: bad email")
	}
	if username == "" || password == "" {
		return nil, errors.New("validation: empty username/password")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies credentials with rate limiting by (email, ip).
func (s *IdentityServiceImpl) Authenticate(ctx context.Context, email, password, ip string) (model.Token, *model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Token{}, nil, err
	}
	if !allowed {
		return model.Token{}, nil, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || !crypto.VerifyPassword(password, u.PasswordHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Token{}, nil, errs.ErrRateLimited
		}
		// hide user existence on wrong password or lookup failure
		return model.Token{}, nil, errs.ErrUnauthorized
	}
	if !u.IsActive {
		return model.Token{}, nil, errs.ErrUserInactive
	}

	_ = s.lim.Success(ctx, email, ipHash)

	tok, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Token{}, nil, err
	}
	return tok, u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *IdentityServiceImpl) issueAccessToken(userID uuid.UUID) (model.Token, error) {
	now := time.Now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return model.Token{AccessToken: signed, ExpiresAt: exp}, err
}

// Get loads a user by ID.
func (s *IdentityServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if id == uuid.Nil {
		return nil, errors.New("validation: empty id")
	}
	return s.users.GetByID(ctx, id)
}

// List returns all users for an admin actor.
func (s *IdentityServiceImpl) List(ctx context.Context, actorID uuid.UUID) ([]model.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin {
		return nil, errs.ErrPermissionDenied
	}
	return s.users.List(ctx)
}

// Deactivate sets is_active=false; the auth layer rejects future sessions.
// Allowed for the user themselves or an admin.
func (s *IdentityServiceImpl) Deactivate(ctx context.Context, actorID, userID uuid.UUID) error {
	if err := s.authorizeAccountChange(ctx, actorID, userID); err != nil {
		return err
	}
	return s.users.SetActive(ctx, userID, false)
}

// SetAdmin flips the admin flag; only an existing admin may change it.
func (s *IdentityServiceImpl) SetAdmin(ctx context.Context, actorID, userID uuid.UUID, admin bool) error {
	if actorID == uuid.Nil || userID == uuid.Nil {
		return errors.New("validation: empty actor/user id")
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin {
		return errs.ErrPermissionDenied
	}
	return s.users.SetAdmin(ctx, userID, admin)
}

// Delete removes the user and all dependent rows, then cleans up the
// orphaned blob locators best-effort.
func (s *IdentityServiceImpl) Delete(ctx context.Context, actorID, userID uuid.UUID) error {
	if err := s.authorizeAccountChange(ctx, actorID, userID); err != nil {
		return err
	}
	locators, err := s.users.Delete(ctx, userID)
	if err != nil {
		return err
	}
	cleanupBlobs(ctx, s.blobs, s.log, locators)
	return nil
}

func (s *IdentityServiceImpl) authorizeAccountChange(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == uuid.Nil || userID == uuid.Nil {
		return errors.New("validation: empty actor/user id")
	}
	if actorID == userID {
		return nil
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin {
		return errs.ErrPermissionDenied
	}
	return nil
}

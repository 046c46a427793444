// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = errors.New("username already taken")

	// ErrInvalidParent indicates the parent node is missing, not a folder,
	// or not owned by the node's owner.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrCycleDetected indicates a move that would make a node its own ancestor.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrNameConflict indicates a sibling with the same name already exists.
	ErrNameConflict = errors.New("name conflict")

	// ErrPermissionDenied indicates the actor lacks the required permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSelfShare indicates an attempt to share a node with its own owner.
	ErrSelfShare = errors.New("cannot share with self")

	// ErrNotAFile indicates a content operation on a folder.
	ErrNotAFile = errors.New("not a file")

	// ErrVersionConflict indicates concurrent version appends still collided
	// after bounded retries.
	ErrVersionConflict = errors.New("version conflict")

	// ErrCurrentVersion indicates an attempt to delete the newest version of a file.
	ErrCurrentVersion = errors.New("cannot delete current version")

	// ErrStorageUnavailable indicates the blob storage backend failed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUserInactive indicates the account has been deactivated.
	ErrUserInactive = errors.New("user inactive")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// NodeType discriminates files from folders in the node tree.
type NodeType string

// Node type tags stored in files.type.
const (
	TypeFile   NodeType = "file"
	TypeFolder NodeType = "folder"
)

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool { return t == TypeFile || t == TypeFolder }

// Permission is an access level granted by a share, or resolved for an actor.
type Permission string

// Permission levels. PermNone is resolution output only and is never stored.
const (
	PermNone  Permission = "none"
	PermRead  Permission = "read"
	PermWrite Permission = "write"
)

// Valid reports whether p is a grantable permission level.
func (p Permission) Valid() bool { return p == PermRead || p == PermWrite }

// CanWrite reports whether p allows content mutation and moves.
func (p Permission) CanWrite() bool { return p == PermWrite }

// User represents an account. Immutable once created except for the status flags.
type User struct {
	ID           uuid.UUID
	Email        string // unique
	Username     string // unique
	PasswordHash string // produced by the external credential collaborator
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
}

// Node is a file or folder in a per-owner forest. A nil parent means the node
// is a root of its owner's forest.
type Node struct {
	ID        uuid.UUID
	Name      string        // display name, unique among siblings
	Locator   string        // blob storage key of the latest content; empty for folders
	Size      int64         // bytes of the latest content; 0 for folders
	MIMEType  string        // content type reported at upload; empty for folders
	Type      NodeType
	OwnerID   uuid.UUID     // FK -> users.id
	ParentID  uuid.NullUUID // FK -> files.id, must reference a folder
	IsShared  bool          // denormalized "has at least one active share"
	CreatedAt time.Time
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Type == TypeFolder }

// Share grants a non-owner user access to a node at a permission level.
// At most one active grant exists per (node, grantee) pair.
type Share struct {
	ID         uuid.UUID
	NodeID     uuid.UUID
	GranteeID  uuid.UUID
	Permission Permission
	CreatedAt  time.Time
}

// Version is an immutable content snapshot of a file node. Numbers are 1-based
// and strictly increasing per node.
type Version struct {
	ID        uuid.UUID
	NodeID    uuid.UUID
	Number    int64
	Locator   string
	Size      int64
	AuthorID  uuid.NullUUID // null once the authoring user is deleted
	CreatedAt time.Time
}

// Token is an issued access token with its expiry (for diagnostics).
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

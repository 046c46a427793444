// Package blob abstracts the object-storage collaborator holding file bytes.
// The core hands out opaque locator keys and never interprets content; bytes
// behind a locator referenced by a version are treated as immutable.
package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/gofrs/uuid/v5"
)

// Store is the byte-storage collaborator. Implementation failures wrap
// errs.ErrStorageUnavailable so callers can distinguish them from
// precondition violations.
type Store interface {
	// Put stores the reader's bytes under key, overwriting any previous object.
	Put(ctx context.Context, key string, r io.Reader) error
	// Get returns a reader over the bytes stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewKey builds a fresh locator for a user's file content. Every content
// write gets its own key so older versions keep pointing at intact bytes.
func NewKey(ownerID uuid.UUID, filename string) (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", ownerID, u, filename), nil
}

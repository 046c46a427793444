package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/skobelin/sharedrive/internal/errs"
)

// MemStore is a map-backed Store for tests and local development.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Put stores the reader's bytes under key.
func (s *MemStore) Put(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", errs.ErrStorageUnavailable, key, err)
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

// Get returns a reader over the bytes stored under key.
func (s *MemStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: get %s: no such object", errs.ErrStorageUnavailable, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object under key.
func (s *MemStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored objects (test helper).
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

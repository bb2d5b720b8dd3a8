// Package memory stores artifacts in-memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/canadian-music-ledger/internal/storage"
)

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes int
	// FailWith, when set, makes every PutObjects call fail without storing anything.
	FailWith error
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObjects stores copies of every object under one lock.
func (s *BlobStore) PutObjects(_ context.Context, objects []storage.Object) ([]string, error) {
	if err := storage.ValidatePaths(objects); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	uris := make([]string, 0, len(objects))
	for _, obj := range objects {
		s.data[obj.Path] = append([]byte(nil), obj.Data...)
		uris = append(uris, fmt.Sprintf("memory://%s", obj.Path))
	}
	s.writes++
	return uris, nil
}

// Get returns a copy of the stored object.
func (s *BlobStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Writes reports how many successful PutObjects calls were made.
func (s *BlobStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

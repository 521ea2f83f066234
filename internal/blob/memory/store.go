// Package memory stores snapshot blobs in-memory for development and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/secondbrain-app/article-hub/internal/blob"
)

// Store keeps blobs in a map and returns pseudo URIs.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ blob.Store = (*Store)(nil)

// New creates an empty in-memory blob store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Put stores a copy of the content under name.
func (s *Store) Put(_ context.Context, name, _ string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read blob data: %w", err)
	}
	s.mu.Lock()
	s.data[name] = append([]byte(nil), raw...)
	s.mu.Unlock()
	return fmt.Sprintf("memory://%s", name), nil
}

// Get returns a reader over the stored content.
func (s *Store) Get(_ context.Context, name string) (io.ReadCloser, error) {
	s.mu.RLock()
	raw, ok := s.data[name]
	s.mu.RUnlock()
	if !ok {
		return nil, blob.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// Len reports the number of stored blobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

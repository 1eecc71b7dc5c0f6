// Package memory keeps archived pages in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/JakeFAU/store-locator-crawler/internal/storage"
)

// BlobStore stores gzip-compressed pages in-memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory archive.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject compresses and stores the content, returning a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	compressed, err := storage.Gzip(data)
	if err != nil {
		return "", fmt.Errorf("failed to compress data: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = compressed
	return fmt.Sprintf("memory://%s", path), nil
}

// Object returns the decompressed content stored at path.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	compressed, ok := s.data[path]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	plain, err := storage.Gunzip(compressed)
	if err != nil {
		return nil, false
	}
	return plain, true
}

// Paths lists stored paths in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for p := range s.data {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

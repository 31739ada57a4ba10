package storage

import (
	"context"
	"fmt"
	"sync"
)

// FakeStore is an in-memory BlobStore for tests.
type FakeStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailGet and FailPut simulate a transient store outage.
	FailGet bool
	FailPut bool
}

func NewFakeStore() *FakeStore {
	return &FakeStore{blobs: make(map[string][]byte)}
}

func (s *FakeStore) Get(_ context.Context, uri string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet {
		return nil, fmt.Errorf("get %s: store unavailable", uri)
	}
	data, ok := s.blobs[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return data, nil
}

func (s *FakeStore) Put(_ context.Context, uri string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut {
		return fmt.Errorf("put %s: store unavailable", uri)
	}
	s.blobs[uri] = append([]byte(nil), data...)
	return nil
}

// Seed stores a blob without going through Put.
func (s *FakeStore) Seed(uri string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[uri] = data
}

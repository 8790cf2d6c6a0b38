package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JonathanLopez0327/chat-demo/pkg/domain"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
)

var _ ports.CheckpointStore = (*Store)(nil)

// Store implements ports.CheckpointStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Checkpoint
	// deleted keeps the last version of removed threads.
	deleted map[string]int64
	mu      sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data:    make(map[string]*domain.Checkpoint),
		deleted: make(map[string]int64),
	}
}

// Save stores a deep copy of cp if its version matches the stored one.
// A deleted thread only accepts version zero and continues its old numbering.
func (s *Store) Save(ctx context.Context, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current, base int64
	if existing, ok := s.data[cp.ThreadID]; ok {
		current, base = existing.Version, existing.Version
	} else {
		base = s.deleted[cp.ThreadID]
	}
	if current != cp.Version {
		return domain.ErrStaleCheckpoint
	}

	stored := cp.Clone()
	stored.Version = base + 1
	s.data[cp.ThreadID] = stored
	delete(s.deleted, cp.ThreadID)
	cp.Version = stored.Version
	return nil
}

// Load retrieves a copy of the checkpoint.
func (s *Store) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.data[threadID]
	if !ok {
		return nil, domain.ErrCheckpointNotFound
	}
	return cp.Clone(), nil
}

// Delete removes the checkpoint and remembers its version.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cp, ok := s.data[threadID]; ok {
		s.deleted[threadID] = cp.Version
		delete(s.data, threadID)
	}
	return nil
}

// List returns all stored thread ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

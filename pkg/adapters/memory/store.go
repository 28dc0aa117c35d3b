package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/caseconf/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Snapshot
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Snapshot),
	}
}

// Save keeps the snapshot. Snapshots are immutable, so no copy is needed.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	if snap.ID() == "" {
		return fmt.Errorf("snapshot id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.ID()] = snap
	return nil
}

// Load retrieves a snapshot.
func (s *Store) Load(ctx context.Context, id string) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[id]
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
	}
	return snap, nil
}

// Delete removes a snapshot.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored snapshot IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

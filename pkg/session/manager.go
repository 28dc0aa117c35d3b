package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/caseconf/internal/logging"
	"github.com/aretw0/caseconf/pkg/blueprint"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/ports"
	"github.com/google/uuid"
)

// entry guards one session. Mutations take the write lock, queries the read lock.
type entry struct {
	mu      sync.RWMutex
	session *Session
	closed  bool
}

// Manager owns the live sessions of one blueprint and serializes access to each of them.
// Sessions never share mutable state, so calls on different sessions run in parallel.
type Manager struct {
	bp *blueprint.Compiled

	mu       sync.Mutex        // guards the map
	sessions map[string]*entry // live sessions by ID

	store   ports.SnapshotStore     // Optional snapshot persistence
	locker  ports.DistributedLocker // Optional export lock across replicas
	lockTTL time.Duration
	logger  *slog.Logger
	opts    []Option
	newID   func() string
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithStore persists exported snapshots.
func WithStore(store ports.SnapshotStore) ManagerOption {
	return func(m *Manager) {
		m.store = store
	}
}

// WithLocker enables distributed locking around snapshot export.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithManagerLogger configures the logger of the Manager and of the sessions it opens.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSessionOptions applies opts to every session opened by the Manager.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.opts = append(m.opts, opts...)
	}
}

// WithIDGenerator overrides how IDs are assigned to sessions opened without one.
func WithIDGenerator(fn func() string) ManagerOption {
	return func(m *Manager) {
		m.newID = fn
	}
}

// NewManager creates a Manager for sessions of bp.
func NewManager(bp *blueprint.Compiled, opts ...ManagerOption) *Manager {
	m := &Manager{
		bp:       bp,
		sessions: make(map[string]*entry),
		lockTTL:  30 * time.Second,
		logger:   logging.NewNop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Blueprint returns the compiled blueprint shared by every session.
func (m *Manager) Blueprint() *blueprint.Compiled {
	return m.bp
}

// Store returns the snapshot store, nil if none is configured.
func (m *Manager) Store() ports.SnapshotStore {
	return m.store
}

// Open starts a new session. An empty id is replaced by a generated one.
func (m *Manager) Open(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = m.newID()
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", domain.ErrSessionExists, id)
	}
	// Reserve the ID while the session initializes.
	e := &entry{}
	e.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()
	defer e.mu.Unlock()

	opts := append([]Option{WithLogger(m.logger)}, m.opts...)
	s, err := New(id, m.bp, opts...)
	if err != nil {
		e.closed = true
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return "", fmt.Errorf("failed to open session: %w", err)
	}
	e.session = s
	m.logger.Info("session opened", "session", id)
	return id, nil
}

// Close discards a session. Exported snapshots are kept.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}

	// Wait for in-flight calls.
	e.mu.Lock()
	e.closed = true
	e.session = nil
	e.mu.Unlock()
	m.logger.Info("session closed", "session", id)
	return nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return e, nil
}

// Update runs fn with exclusive access to the session.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.session == nil {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return fn(e.session)
}

// View runs fn with shared access to the session. fn must not mutate it.
func (m *Manager) View(ctx context.Context, id string, fn func(*Session) error) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed || e.session == nil {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return fn(e.session)
}

// Export takes the snapshot of a finished session and persists it when a store is
// configured. With a distributed locker, concurrent exports of the same session across
// replicas are serialized.
func (m *Manager) Export(ctx context.Context, id string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.Update(ctx, id, func(s *Session) error {
		if m.locker != nil {
			unlock, err := m.locker.Lock(ctx, "export:"+id, m.lockTTL)
			if err != nil {
				return fmt.Errorf("failed to acquire distributed lock: %w", err)
			}
			defer func() {
				if err := unlock(ctx); err != nil {
					m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
						"session", id,
						"err", err,
					)
				}
			}()
		}

		var err error
		snap, err = s.ExportSnapshot()
		if err != nil {
			return err
		}
		if m.store != nil {
			if err := m.store.Save(ctx, snap); err != nil {
				return fmt.Errorf("failed to persist snapshot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	m.logger.Info("snapshot exported", "session", id, "snapshot", snap.ID(), "values", snap.Len())
	return snap, nil
}

// Snapshot loads a persisted snapshot.
func (m *Manager) Snapshot(ctx context.Context, id string) (domain.Snapshot, error) {
	if m.store == nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %s", domain.ErrSnapshotNotFound, id)
	}
	return m.store.Load(ctx, id)
}

// List returns the IDs of live sessions, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

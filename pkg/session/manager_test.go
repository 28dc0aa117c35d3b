package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/caseconf/pkg/adapters/memory"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/ports"
	"github.com/aretw0/caseconf/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finish(s *session.Session) error {
	steps := []func() error{
		func() error { _, err := s.SetValue("COMP_ATM", "cam"); return err },
		func() error { _, err := s.SetValue("COMP_OCN", "docn"); return err },
		func() error { _, err := s.Advance(); return err },
		func() error { _, err := s.Advance(); return err },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func TestManager_OpenUpdateView(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(caseBlueprint(t), session.WithIDGenerator(func() string { return "generated" }))

	id, err := m.Open(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "generated", id)

	_, err = m.Open(ctx, "generated")
	assert.ErrorIs(t, err, domain.ErrSessionExists)

	require.NoError(t, m.Update(ctx, id, func(s *session.Session) error {
		_, err := s.SetValue("COMP_ATM", "satm")
		return err
	}))
	require.NoError(t, m.View(ctx, id, func(s *session.Session) error {
		v, err := s.Value("COMP_ATM")
		assert.Equal(t, domain.Value("satm"), v)
		return err
	}))

	err = m.View(ctx, "nope", func(*session.Session) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.NoError(t, m.Close(ctx, id))
	assert.ErrorIs(t, m.Close(ctx, id), domain.ErrSessionNotFound)
	assert.Empty(t, m.List())
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(caseBlueprint(t))
	a, err := m.Open(ctx, "a")
	require.NoError(t, err)
	b, err := m.Open(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.List())

	require.NoError(t, m.Update(ctx, a, func(s *session.Session) error {
		_, err := s.SetValue("COMP_ATM", "satm")
		return err
	}))
	require.NoError(t, m.View(ctx, b, func(s *session.Session) error {
		d, err := s.Domain("COMP_OCN")
		assert.Equal(t, 3, d.Len())
		return err
	}))
}

func TestManager_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(caseBlueprint(t))
	id, err := m.Open(ctx, "race")
	require.NoError(t, err)

	var wg sync.WaitGroup
	values := []domain.Value{"cam", "satm"}
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := m.Update(ctx, id, func(s *session.Session) error {
				_, err := s.SetValue("COMP_ATM", values[i%2])
				return err
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_ = m.View(ctx, id, func(s *session.Session) error {
				v, _ := s.Value("COMP_OCN")
				d, _ := s.Domain("COMP_OCN")
				if v.IsSet() {
					assert.True(t, d.Contains(v))
				}
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, m.View(ctx, id, func(s *session.Session) error {
		assert.Equal(t, uint64(50), s.Seq())
		return nil
	}))
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return func(context.Context) error { return errors.New("already expired") }, nil
}

func TestManager_ExportPersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	locker := &recordingLocker{}
	m := session.NewManager(caseBlueprint(t),
		session.WithStore(store),
		session.WithLocker(locker, time.Second),
	)
	id, err := m.Open(ctx, "case-1")
	require.NoError(t, err)

	_, err = m.Export(ctx, id)
	require.ErrorIs(t, err, domain.ErrStageIncomplete)

	require.NoError(t, m.Update(ctx, id, finish))
	snap, err := m.Export(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"export:case-1", "export:case-1"}, locker.keys)

	loaded, err := m.Snapshot(ctx, snap.ID())
	require.NoError(t, err)
	assert.Equal(t, snap.Map(), loaded.Map())

	require.NoError(t, m.Close(ctx, id))
	_, err = m.Snapshot(ctx, snap.ID())
	assert.NoError(t, err, "snapshots outlive their session")

	_, err = m.Snapshot(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestManager_OpenManyAndClose(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(caseBlueprint(t))
	for i := range 200 {
		id := fmt.Sprintf("session-%d", i)
		_, err := m.Open(ctx, id)
		require.NoError(t, err)
		require.NoError(t, m.Close(ctx, id))
	}
	assert.Zero(t, m.Len(), "closed sessions must not be retained")
}

package middleware_test

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/aretw0/caseconf/pkg/adapters/memory"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/persistence/middleware"
	"github.com/aretw0/caseconf/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := rand.Read(k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.SnapshotStore, cfg middleware.EncryptionConfig) ports.SnapshotStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	store := encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunSnapshotStoreContract(t, store)
}

func TestEncryptionMiddleware_HidesValues(t *testing.T) {
	underlying := memory.NewStore()
	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ctx := context.Background()

	snap := domain.NewSnapshot("case-1", time.Now(), map[string]domain.Value{"PROJECT": "P93300606"})
	require.NoError(t, store.Save(ctx, snap))

	raw, err := underlying.Load(ctx, "case-1")
	require.NoError(t, err)
	_, leaked := raw.Get("PROJECT")
	assert.False(t, leaked)
	_, sealed := raw.Get(middleware.EnvelopeKey)
	assert.True(t, sealed)

	loaded, err := store.Load(ctx, "case-1")
	require.NoError(t, err)
	v, _ := loaded.Get("PROJECT")
	assert.Equal(t, domain.Value("P93300606"), v)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	old := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, old.Save(ctx, domain.NewSnapshot("rotated", time.Now(), map[string]domain.Value{"GRID": "f09_g17"})))

	rotated := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.Load(ctx, "rotated")
	require.NoError(t, err)
	v, _ := loaded.Get("GRID")
	assert.Equal(t, domain.Value("f09_g17"), v)

	strict := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey})
	_, err = strict.Load(ctx, "rotated")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainSnapshots(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, domain.NewSnapshot("plain", time.Now(), map[string]domain.Value{"A": "1"})))

	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	_, err := store.Load(ctx, "plain")
	assert.ErrorContains(t, err, "envelope")
}

func TestNewEncryptionMiddleware_KeySize(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
}

package middleware_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/caseconf/pkg/adapters/memory"
	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewRedactMiddleware("^PROJECT$", "(?i)account")
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	snap := domain.NewSnapshot("case-1", time.Now(), map[string]domain.Value{
		"PROJECT":        "P93300606",
		"CHARGE_ACCOUNT": "acct-1",
		"COMP_ATM":       "cam",
	})
	require.NoError(t, store.Save(ctx, snap))

	stored, err := underlying.Load(ctx, "case-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Value{
		"PROJECT":        middleware.Mask,
		"CHARGE_ACCOUNT": middleware.Mask,
		"COMP_ATM":       "cam",
	}, stored.Map())

	v, _ := snap.Get("PROJECT")
	assert.Equal(t, domain.Value("P93300606"), v, "the caller's snapshot is untouched")
}

func TestRedactMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactMiddleware("(")
	assert.Error(t, err)
}

func TestChain_EncryptsRedactedValues(t *testing.T) {
	underlying := memory.NewStore()
	redact, err := middleware.NewRedactMiddleware("PROJECT")
	require.NoError(t, err)
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, redact, encrypt)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, domain.NewSnapshot("c", time.Now(), map[string]domain.Value{"PROJECT": "x"})))

	raw, err := underlying.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []string{middleware.EnvelopeKey}, raw.Keys())

	loaded, err := store.Load(ctx, "c")
	require.NoError(t, err)
	v, _ := loaded.Get("PROJECT")
	assert.Equal(t, middleware.Mask, v)
}

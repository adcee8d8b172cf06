package imap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/kv/kvtest"
)

func TestStatusRegistryRoundTrip(t *testing.T) {
	store := kvtest.New()
	registry := NewStatusRegistry(store, 42, 7)
	ctx := context.Background()

	_, err := registry.Get(ctx)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, registry.Set(ctx, StatusActive))
	status, err := registry.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	require.NoError(t, registry.Set(ctx, StatusPaused))
	status, err = registry.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, status)

	require.NoError(t, registry.Remove(ctx))
	_, err = registry.Get(ctx)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStatusKey(t *testing.T) {
	assert.Equal(t, "imap_client_status_42_7", StatusKey(42, 7))
}

func TestStatusRegistrySlotsAreIndependent(t *testing.T) {
	store := kvtest.New()
	ctx := context.Background()

	first := NewStatusRegistry(store, 1, 1)
	second := NewStatusRegistry(store, 1, 2)

	require.NoError(t, first.Set(ctx, StatusActive))
	require.NoError(t, second.Set(ctx, StatusStopped))

	status, err := first.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	status, err = second.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, status)
}

package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/kv/kvtest"
)

func TestKeyInterpolation(t *testing.T) {
	assert.Equal(t, "bot_user_42", kv.Key(kv.KeyBotUser, 42))
	assert.Equal(t, "imap_client_status_42_7", kv.Key(kv.KeyClientStatus, int64(42), uint(7)))
	assert.Equal(t, "active_users", kv.Key(kv.KeyActiveUsers))
	assert.Equal(t, "telegram_id_9_failed_photos", kv.Key(kv.KeyFailedPhotos, 9))
}

func TestMemoizeCallsProducerOnce(t *testing.T) {
	store := kvtest.New()
	ctx := context.Background()

	calls := 0
	producer := func(ctx context.Context) (string, error) {
		calls++
		return "payload", nil
	}

	got, err := kv.Memoize(ctx, store, kv.KeyEmailService, []any{1}, time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, "payload", got)

	got, err = kv.Memoize(ctx, store, kv.KeyEmailService, []any{1}, time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
	assert.Equal(t, 1, calls)
}

func TestMemoizeDistinctArgsDistinctKeys(t *testing.T) {
	store := kvtest.New()
	ctx := context.Background()

	calls := 0
	producer := func(ctx context.Context) (string, error) {
		calls++
		return "v", nil
	}

	_, err := kv.Memoize(ctx, store, kv.KeyEmailService, []any{1}, time.Minute, producer)
	require.NoError(t, err)
	_, err = kv.Memoize(ctx, store, kv.KeyEmailService, []any{2}, time.Minute, producer)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInvalidateClearsCachedValue(t *testing.T) {
	store := kvtest.New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, kv.Key(kv.KeyBoxFilters, 3), "cached", 0))

	err := kv.Invalidate(ctx, store, []string{kv.KeyBoxFilters}, 3)
	require.NoError(t, err)

	_, err = store.Get(ctx, kv.Key(kv.KeyBoxFilters, 3))
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

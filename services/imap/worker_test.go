package imap

import (
	"context"
	"testing"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/kv/kvtest"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/services/decoder"
)

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error", DevMode: true, Encoder: "console"})
	log.InitLogger()
	return log
}

type nopDispatcher struct{}

func (nopDispatcher) DeliverEmail(context.Context, int64, decoder.Email) error { return nil }

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	return newWhitelistedWorker(t, nil)
}

func newWhitelistedWorker(t *testing.T, whitelist map[string]struct{}) *Worker {
	t.Helper()
	store := kvtest.New()
	conn := NewConnectionManager("imap.example.com:993", "user", "secret", testLogger())
	status := NewStatusRegistry(store, 1, 1)
	return NewWorker(conn, status, nopDispatcher{}, testLogger(), 1, 1, whitelist)
}

func TestCollectPushesReturnsOnExists(t *testing.T) {
	worker := newTestWorker(t)

	updates := make(chan client.Update, 4)
	updates <- &client.ExpungeUpdate{SeqNum: 3}
	updates <- &client.MailboxUpdate{Mailbox: &goimap.MailboxStatus{Messages: 12}}

	done := make(chan []uint32, 1)
	go func() {
		done <- worker.collectPushes(context.Background(), updates)
	}()

	select {
	case seqNums := <-done:
		assert.Equal(t, []uint32{12}, seqNums)
	case <-time.After(2 * time.Second):
		t.Fatal("collectPushes did not return after EXISTS push")
	}
}

func TestCollectPushesStopsOnContextCancel(t *testing.T) {
	worker := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan client.Update)

	done := make(chan []uint32, 1)
	go func() {
		done <- worker.collectPushes(ctx, updates)
	}()
	cancel()

	select {
	case seqNums := <-done:
		assert.Empty(t, seqNums)
	case <-time.After(2 * time.Second):
		t.Fatal("collectPushes did not return after context cancel")
	}
}

func TestWorkerSessionDefaults(t *testing.T) {
	worker := newTestWorker(t)
	assert.Equal(t, uint32(1), worker.maxUID)
	assert.NotEmpty(t, worker.sessionID)
	assert.Empty(t, worker.processed)
}

func TestLoopExitsOnStoppedSlot(t *testing.T) {
	worker := newTestWorker(t)
	ctx := context.Background()
	require.NoError(t, worker.status.Set(ctx, StatusStopped))

	done := make(chan error, 1)
	go func() { done <- worker.loop(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on stopped status")
	}
}

func TestLoopExitsWhenSlotRemoved(t *testing.T) {
	worker := newTestWorker(t)

	done := make(chan error, 1)
	go func() { done <- worker.loop(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on a missing status slot")
	}
}

func TestLoopExitsOnUnknownStatus(t *testing.T) {
	worker := newTestWorker(t)
	ctx := context.Background()
	require.NoError(t, worker.status.Set(ctx, Status("resting")))

	done := make(chan error, 1)
	go func() { done <- worker.loop(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on an unknown status")
	}
}

func TestLoopPausedDoesNotIdle(t *testing.T) {
	worker := newTestWorker(t)
	require.NoError(t, worker.status.Set(context.Background(), StatusPaused))

	// A paused worker sleeps between slot reads. An idle attempt on the
	// unopened session would error out of the loop instead.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- worker.loop(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("paused loop did not yield to context cancellation")
	}
	_, err := worker.conn.Client()
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}

func TestShutdownRemovesStatusSlot(t *testing.T) {
	worker := newTestWorker(t)
	ctx := context.Background()
	require.NoError(t, worker.status.Set(ctx, StatusActive))

	worker.shutdown()

	_, err := worker.status.Get(ctx)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSenderAllowed(t *testing.T) {
	whitelist := map[string]struct{}{"a@b.c": {}}

	tests := []struct {
		name      string
		whitelist map[string]struct{}
		from      string
		want      bool
	}{
		{"empty whitelist admits anyone", nil, "Someone <x@y.z>", true},
		{"member passes", whitelist, `"A" <a@b.c>`, true},
		{"member passes bare address", whitelist, "a@b.c", true},
		{"non-member rejected", whitelist, "C <c@d.e>", false},
		{"encoded display name still matches", whitelist, "=?utf-8?b?0JDQvdC90LA=?= <a@b.c>", true},
		{"unparsable sender rejected", whitelist, "not an address", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worker := newWhitelistedWorker(t, tt.whitelist)
			assert.Equal(t, tt.want, worker.senderAllowed(tt.from))
		})
	}
}

func TestMarkProcessedKeepsHighWaterNondecreasing(t *testing.T) {
	worker := newTestWorker(t)

	worker.markProcessed(17)
	assert.Equal(t, uint32(17), worker.maxUID)

	worker.markProcessed(5)
	assert.Equal(t, uint32(17), worker.maxUID)

	_, ok := worker.processed[17]
	assert.True(t, ok)
	_, ok = worker.processed[5]
	assert.True(t, ok)
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	worker := newTestWorker(t)

	calls := 0
	err := worker.withRetry(context.Background(), "step", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryStopsOnContextCancel(t *testing.T) {
	worker := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	err := worker.withRetry(ctx, "step", func(context.Context) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

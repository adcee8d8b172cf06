package retry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/kv/kvtest"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/services/telegram"
)

type fakeSender struct {
	messages    []telegram.MessagePayload
	photos      map[int64][][]byte
	failMessage bool
	failPhoto   bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{photos: make(map[int64][][]byte)}
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	return f.TrySendMessage(ctx, telegram.MessagePayload{ChatID: chatID, Text: text})
}

func (f *fakeSender) SendPhoto(ctx context.Context, chatID int64, image []byte) error {
	return f.TrySendPhoto(ctx, chatID, image)
}

func (f *fakeSender) TrySendMessage(_ context.Context, payload telegram.MessagePayload) error {
	if f.failMessage {
		return errors.New("send failed")
	}
	f.messages = append(f.messages, payload)
	return nil
}

func (f *fakeSender) TrySendPhoto(_ context.Context, chatID int64, image []byte) error {
	if f.failPhoto {
		return errors.New("send failed")
	}
	f.photos[chatID] = append(f.photos[chatID], image)
	return nil
}

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error", DevMode: true, Encoder: "console"})
	log.InitLogger()
	return log
}

func queueMessage(t *testing.T, store *kvtest.Store, chatID int64, text string) string {
	t.Helper()
	key := kv.Key(kv.KeyFailedEmails, chatID)
	raw, err := json.Marshal(telegram.MessagePayload{ChatID: chatID, Text: text})
	require.NoError(t, err)
	require.NoError(t, store.LPush(context.Background(), key, string(raw)))
	return key
}

func TestDrainFailedEmailsDelivers(t *testing.T) {
	store := kvtest.New()
	keyA := queueMessage(t, store, 1, "first")
	queueMessage(t, store, 1, "second")
	keyB := queueMessage(t, store, 2, "other chat")

	sender := newFakeSender()
	worker := NewWorker(store, sender, testLogger())

	require.NoError(t, worker.DrainFailedEmails(context.Background()))

	assert.Len(t, sender.messages, 3)
	assert.Empty(t, store.List(keyA))
	assert.Empty(t, store.List(keyB))
}

func TestDrainFailedEmailsKeepsUndelivered(t *testing.T) {
	store := kvtest.New()
	key := queueMessage(t, store, 5, "stuck")

	sender := newFakeSender()
	sender.failMessage = true
	worker := NewWorker(store, sender, testLogger())

	require.NoError(t, worker.DrainFailedEmails(context.Background()))
	assert.Len(t, store.List(key), 1)
}

func TestDrainFailedEmailsSkipsMalformed(t *testing.T) {
	store := kvtest.New()
	key := kv.Key(kv.KeyFailedEmails, int64(9))
	require.NoError(t, store.LPush(context.Background(), key, "not json"))

	sender := newFakeSender()
	worker := NewWorker(store, sender, testLogger())

	require.NoError(t, worker.DrainFailedEmails(context.Background()))
	assert.Empty(t, sender.messages)
	// malformed item stays so the queue state remains observable
	assert.Len(t, store.List(key), 1)
}

func TestDrainFailedPhotosDelivers(t *testing.T) {
	store := kvtest.New()
	image := []byte("png bytes")
	key := kv.Key(kv.KeyFailedPhotos, int64(4))
	raw, err := json.Marshal(telegram.PhotoPayload{
		Data:  telegram.PhotoData{ChatID: 4},
		Image: base64.StdEncoding.EncodeToString(image),
	})
	require.NoError(t, err)
	require.NoError(t, store.LPush(context.Background(), key, string(raw)))

	sender := newFakeSender()
	worker := NewWorker(store, sender, testLogger())

	require.NoError(t, worker.DrainFailedPhotos(context.Background()))

	require.Len(t, sender.photos[4], 1)
	assert.Equal(t, image, sender.photos[4][0])
	assert.Empty(t, store.List(key))
}

func TestDrainFailedPhotosKeepsUndelivered(t *testing.T) {
	store := kvtest.New()
	key := kv.Key(kv.KeyFailedPhotos, int64(6))
	raw, err := json.Marshal(telegram.PhotoPayload{
		Data:  telegram.PhotoData{ChatID: 6},
		Image: base64.StdEncoding.EncodeToString([]byte("img")),
	})
	require.NoError(t, err)
	require.NoError(t, store.LPush(context.Background(), key, string(raw)))

	sender := newFakeSender()
	sender.failPhoto = true
	worker := NewWorker(store, sender, testLogger())

	require.NoError(t, worker.DrainFailedPhotos(context.Background()))
	assert.Len(t, store.List(key), 1)
}

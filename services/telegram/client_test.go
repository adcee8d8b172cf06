package telegram

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/kv/kvtest"
	"github.com/mailgram/mailgram/internal/logger"
)

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{LogLevel: "error", DevMode: true, Encoder: "console"})
	log.InitLogger()
	return log
}

func TestSendMessageOK(t *testing.T) {
	var gotPath, gotChatID, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		gotChatID = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	store := kvtest.New()
	client := NewClient(server.URL, "test-token", store, testLogger())

	err := client.SendMessage(context.Background(), 42, "hello")
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "42", gotChatID)
	assert.Equal(t, "hello", gotText)
	assert.Empty(t, store.List(kv.Key(kv.KeyFailedEmails, int64(42))))
}

func TestSendMessageTruncates(t *testing.T) {
	var gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotText = r.PostFormValue("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", kvtest.New(), testLogger())

	long := strings.Repeat("a", 1500)
	require.NoError(t, client.SendMessage(context.Background(), 1, long))

	assert.Len(t, gotText, 1000+len("... (truncated)"))
	assert.True(t, strings.HasSuffix(gotText, "... (truncated)"))
}

func TestSendMessageFailureQueues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := kvtest.New()
	client := NewClient(server.URL, "token", store, testLogger())

	err := client.SendMessage(context.Background(), 7, "undeliverable")
	require.Error(t, err)

	key := kv.Key(kv.KeyFailedEmails, int64(7))
	items := store.List(key)
	require.Len(t, items, 1)

	var payload MessagePayload
	require.NoError(t, json.Unmarshal([]byte(items[0]), &payload))
	assert.Equal(t, int64(7), payload.ChatID)
	assert.Equal(t, "undeliverable", payload.Text)
	assert.Equal(t, 24*time.Hour, store.TTL(key))
}

func TestSendPhotoOK(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G'}
	var gotChatID string
	var gotPhoto []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChatID = r.PostFormValue("chat_id")
		file, _, err := r.FormFile("photo")
		require.NoError(t, err)
		defer file.Close()
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		gotPhoto = buf[:n]
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token", kvtest.New(), testLogger())

	require.NoError(t, client.SendPhoto(context.Background(), 9, image))
	assert.Equal(t, "9", gotChatID)
	assert.Equal(t, image, gotPhoto)
}

func TestSendPhotoFailureQueues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	store := kvtest.New()
	client := NewClient(server.URL, "token", store, testLogger())

	image := []byte("fake image bytes")
	err := client.SendPhoto(context.Background(), 11, image)
	require.Error(t, err)

	key := kv.Key(kv.KeyFailedPhotos, int64(11))
	items := store.List(key)
	require.Len(t, items, 1)

	var payload PhotoPayload
	require.NoError(t, json.Unmarshal([]byte(items[0]), &payload))
	assert.Equal(t, int64(11), payload.Data.ChatID)
	decoded, err := base64.StdEncoding.DecodeString(payload.Image)
	require.NoError(t, err)
	assert.Equal(t, image, decoded)
	assert.Equal(t, 24*time.Hour, store.TTL(key))
}

func TestTrySendDoesNotQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := kvtest.New()
	client := NewClient(server.URL, "token", store, testLogger())

	err := client.TrySendMessage(context.Background(), MessagePayload{ChatID: 3, Text: "x"})
	require.Error(t, err)
	assert.Empty(t, store.List(kv.Key(kv.KeyFailedEmails, int64(3))))

	err = client.TrySendPhoto(context.Background(), 3, []byte("img"))
	require.Error(t, err)
	assert.Empty(t, store.List(kv.Key(kv.KeyFailedPhotos, int64(3))))
}

func TestTruncateShortMessageUntouched(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	// A two-byte rune straddling the cap must be dropped whole, never
	// split into a leading byte of invalid UTF-8.
	text := strings.Repeat("a", maxMessageLength-1) + "éé"

	got := Truncate(text)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxMessageLength-1)+truncationSuffix, got)

	cyrillic := strings.Repeat("ж", maxMessageLength)
	got = Truncate(cyrillic)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, truncationSuffix))
}

package telegram

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
)

const (
	// Bot API rejects longer texts well before this, the cap keeps the
	// rendered message readable on a phone.
	maxMessageLength = 1000
	truncationSuffix = "... (truncated)"

	retryQueueTTL = 24 * time.Hour
)

// MessagePayload is the sendMessage form body. The same shape is stored
// on the retry queue so a drain can replay it verbatim.
type MessagePayload struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// PhotoPayload is the queued form of a failed sendPhoto call. The image
// travels base64-encoded inside the JSON item.
type PhotoPayload struct {
	Data  PhotoData `json:"data"`
	Image string    `json:"image"`
}

type PhotoData struct {
	ChatID int64 `json:"chat_id"`
}

// Client talks to the Telegram Bot API. Failed sends are parked on
// per-chat retry queues in the KV store instead of being dropped.
type Client interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, image []byte) error
	TrySendMessage(ctx context.Context, payload MessagePayload) error
	TrySendPhoto(ctx context.Context, chatID int64, image []byte) error
}

type client struct {
	apiHost    string
	botToken   string
	httpClient *http.Client
	kv         kv.Client
	log        logger.Logger
}

func NewClient(apiHost, botToken string, kvClient kv.Client, log logger.Logger) Client {
	return &client{
		apiHost:    strings.TrimRight(apiHost, "/"),
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		kv:         kvClient,
		log:        log,
	}
}

func (c *client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiHost, c.botToken, method)
}

// Truncate caps a message body the way the dispatch path does before
// handing it to the Bot API. The cut lands on a rune boundary so the
// API never sees broken UTF-8.
func Truncate(text string) string {
	if len(text) <= maxMessageLength {
		return text
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncationSuffix
}

func (c *client) SendMessage(ctx context.Context, chatID int64, text string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "telegramClient.SendMessage")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, chatID)

	payload := MessagePayload{ChatID: chatID, Text: Truncate(text)}
	err := c.TrySendMessage(ctx, payload)
	if err != nil {
		tracing.TraceErr(span, err)
		c.enqueueMessage(ctx, span, payload)
	}
	return err
}

func (c *client) TrySendMessage(ctx context.Context, payload MessagePayload) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(payload.ChatID, 10))
	form.Set("text", payload.Text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build sendMessage request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, "sendMessage")
}

func (c *client) SendPhoto(ctx context.Context, chatID int64, image []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "telegramClient.SendPhoto")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, chatID)

	err := c.TrySendPhoto(ctx, chatID, image)
	if err != nil {
		tracing.TraceErr(span, err)
		c.enqueuePhoto(ctx, span, chatID, image)
	}
	return err
}

func (c *client) TrySendPhoto(ctx context.Context, chatID int64, image []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return errors.Wrap(err, "write chat_id field")
	}
	part, err := writer.CreateFormFile("photo", "email.png")
	if err != nil {
		return errors.Wrap(err, "create photo part")
	}
	if _, err := part.Write(image); err != nil {
		return errors.Wrap(err, "write photo bytes")
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "finalize multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &body)
	if err != nil {
		return errors.Wrap(err, "build sendPhoto request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, "sendPhoto")
}

func (c *client) do(req *http.Request, method string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request failed", method)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s returned status %d: %s", method, resp.StatusCode, string(raw))
	}
	return nil
}

func (c *client) enqueueMessage(ctx context.Context, span opentracing.Span, payload MessagePayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return
	}
	key := kv.Key(kv.KeyFailedEmails, payload.ChatID)
	if err := c.kv.LPush(ctx, key, string(raw)); err != nil {
		tracing.TraceErr(span, err)
		c.log.Errorf("failed to queue message for chat %d: %v", payload.ChatID, err)
		return
	}
	if err := c.kv.Touch(ctx, key, retryQueueTTL); err != nil {
		tracing.TraceErr(span, err)
	}
	c.log.Infof("queued undelivered message for chat %d", payload.ChatID)
}

func (c *client) enqueuePhoto(ctx context.Context, span opentracing.Span, chatID int64, image []byte) {
	payload := PhotoPayload{
		Data:  PhotoData{ChatID: chatID},
		Image: base64.StdEncoding.EncodeToString(image),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		tracing.TraceErr(span, err)
		return
	}
	key := kv.Key(kv.KeyFailedPhotos, chatID)
	if err := c.kv.LPush(ctx, key, string(raw)); err != nil {
		tracing.TraceErr(span, err)
		c.log.Errorf("failed to queue photo for chat %d: %v", chatID, err)
		return
	}
	if err := c.kv.Touch(ctx, key, retryQueueTTL); err != nil {
		tracing.TraceErr(span, err)
	}
	c.log.Infof("queued undelivered photo for chat %d", chatID)
}

// Package retry replays Telegram deliveries that were parked on the
// KV retry queues after a failed send.
package retry

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services/telegram"
)

// Worker walks both retry queue families and re-posts every queued
// payload. A delivered item is popped from its queue; a failed one
// stays for the next run. At-least-once, duplicates possible.
type Worker struct {
	kv     kv.Client
	client telegram.Client
	log    logger.Logger
}

func NewWorker(kvClient kv.Client, client telegram.Client, log logger.Logger) *Worker {
	return &Worker{kv: kvClient, client: client, log: log}
}

// DrainFailedEmails replays queued sendMessage payloads.
func (w *Worker) DrainFailedEmails(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "retryWorker.DrainFailedEmails")
	defer span.Finish()
	tracing.TagComponentWorker(span)

	keys, err := w.kv.Scan(ctx, kv.PatternFailedEmails)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "scan failed email queues")
	}

	for _, key := range keys {
		items, err := w.kv.LRange(ctx, key)
		if err != nil {
			tracing.TraceErr(span, err)
			continue
		}
		for _, item := range items {
			var payload telegram.MessagePayload
			if err := json.Unmarshal([]byte(item), &payload); err != nil {
				tracing.TraceErr(span, err)
				w.log.Errorf("malformed queued message on %s: %v", key, err)
				continue
			}
			if err := w.client.TrySendMessage(ctx, payload); err != nil {
				w.log.Warnf("retry of queued message for chat %d failed: %v", payload.ChatID, err)
				continue
			}
			if _, err := w.kv.LPop(ctx, key); err != nil && !errors.Is(err, kv.ErrNotFound) {
				tracing.TraceErr(span, err)
			}
		}
	}
	return nil
}

// DrainFailedPhotos replays queued sendPhoto payloads.
func (w *Worker) DrainFailedPhotos(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "retryWorker.DrainFailedPhotos")
	defer span.Finish()
	tracing.TagComponentWorker(span)

	keys, err := w.kv.Scan(ctx, kv.PatternFailedPhotos)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "scan failed photo queues")
	}

	for _, key := range keys {
		items, err := w.kv.LRange(ctx, key)
		if err != nil {
			tracing.TraceErr(span, err)
			continue
		}
		for _, item := range items {
			var payload telegram.PhotoPayload
			if err := json.Unmarshal([]byte(item), &payload); err != nil {
				tracing.TraceErr(span, err)
				w.log.Errorf("malformed queued photo on %s: %v", key, err)
				continue
			}
			image, err := base64.StdEncoding.DecodeString(payload.Image)
			if err != nil {
				tracing.TraceErr(span, err)
				w.log.Errorf("malformed queued photo image on %s: %v", key, err)
				continue
			}
			if err := w.client.TrySendPhoto(ctx, payload.Data.ChatID, image); err != nil {
				w.log.Warnf("retry of queued photo for chat %d failed: %v", payload.Data.ChatID, err)
				continue
			}
			if _, err := w.kv.LPop(ctx, key); err != nil && !errors.Is(err, kv.ErrNotFound) {
				tracing.TraceErr(span, err)
			}
		}
	}
	return nil
}

package telegram

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"

	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services/decoder"
	"github.com/mailgram/mailgram/services/render"
)

// Dispatcher turns a decoded email into a Telegram delivery: the email
// is laid out as HTML, rasterized and sent as a photo. When rendering
// fails the text body is sent instead so the user still gets the mail.
type Dispatcher interface {
	DeliverEmail(ctx context.Context, chatID int64, email decoder.Email) error
}

type dispatcher struct {
	client     Client
	rasterizer render.Rasterizer
	log        logger.Logger
}

func NewDispatcher(client Client, rasterizer render.Rasterizer, log logger.Logger) Dispatcher {
	return &dispatcher{client: client, rasterizer: rasterizer, log: log}
}

func (d *dispatcher) DeliverEmail(ctx context.Context, chatID int64, email decoder.Email) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "dispatcher.DeliverEmail")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, chatID)

	html, err := decoder.RenderHTML(email)
	if err != nil {
		tracing.TraceErr(span, err)
		return d.deliverAsText(ctx, chatID, email)
	}

	image, err := d.rasterizer.Rasterize(ctx, html)
	if err != nil {
		tracing.TraceErr(span, err)
		d.log.Warnf("rasterization failed for chat %d, falling back to text: %v", chatID, err)
		return d.deliverAsText(ctx, chatID, email)
	}

	return d.client.SendPhoto(ctx, chatID, image)
}

func (d *dispatcher) deliverAsText(ctx context.Context, chatID int64, email decoder.Email) error {
	text := fmt.Sprintf("Subject: %s\nFrom: %s\nTo: %s\nDate: %s\nBody: %s",
		email.Subject, email.From, email.To, email.Date, email.TextBody)
	return d.client.SendMessage(ctx, chatID, text)
}

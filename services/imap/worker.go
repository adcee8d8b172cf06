package imap

import (
	"bufio"
	"context"
	"io"
	"net/textproto"
	"sync"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services/decoder"
	"github.com/mailgram/mailgram/services/telegram"
)

const (
	idleTimeout  = 60 * time.Second
	doneTimeout  = 20 * time.Second
	pauseSleep   = 5 * time.Second
	retryLimit   = 5
	retryBackoff = 30 * time.Second
)

var headerFields = []string{
	"Content-Type", "From", "To", "Cc", "Bcc", "Date",
	"Subject", "Message-ID", "In-Reply-To", "References",
}

// Worker supervises one mailbox: it keeps an IDLE session with the
// server, reads its status slot between cycles and pushes every new
// whitelisted message to the owner's Telegram chat.
type Worker struct {
	conn       *ConnectionManager
	status     *StatusRegistry
	dispatcher telegram.Dispatcher
	log        logger.Logger

	telegramID int64
	boxID      uint
	whitelist  map[string]struct{}

	sessionID string
	maxUID    uint32
	processed map[uint32]struct{}
}

func NewWorker(
	conn *ConnectionManager,
	status *StatusRegistry,
	dispatcher telegram.Dispatcher,
	log logger.Logger,
	telegramID int64,
	boxID uint,
	whitelist map[string]struct{},
) *Worker {
	return &Worker{
		conn:       conn,
		status:     status,
		dispatcher: dispatcher,
		log:        log,
		telegramID: telegramID,
		boxID:      boxID,
		whitelist:  whitelist,
		sessionID:  gonanoid.Must(8),
		maxUID:     1,
		processed:  make(map[uint32]struct{}),
	}
}

// Run drives the worker loop until the status slot reads stopped or
// the retry budget of a failing step is exhausted. The slot is removed
// and the session closed on the way out.
func (w *Worker) Run(ctx context.Context, initial Status) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Worker.Run")
	defer span.Finish()
	tracing.TagComponentWorker(span)
	tracing.TagTelegramID(span, w.telegramID)
	tracing.TagBoxID(span, w.boxID)
	span.SetTag("session", w.sessionID)

	if err := w.status.Set(ctx, initial); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	defer w.shutdown()

	if err := w.withRetry(ctx, "open", w.conn.Open); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := w.loop(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// shutdown releases the status slot and the session. Run defers it so
// a stopped, steered-away or failed worker never leaves a stale slot.
func (w *Worker) shutdown() {
	if err := w.status.Remove(context.Background()); err != nil {
		w.log.Errorf("worker %s: failed to remove status slot: %v", w.sessionID, err)
	}
	if err := w.conn.Close(); err != nil && !errors.Is(err, apperrors.ErrNotConnected) {
		w.log.Errorf("worker %s: close failed: %v", w.sessionID, err)
	}
}

// loop re-reads the status slot between cycles and acts on it.
func (w *Worker) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status, err := w.status.Get(ctx)
		if errors.Is(err, kv.ErrNotFound) {
			// A removed slot means nobody steers this worker anymore.
			w.log.Warnf("worker %s: status slot removed, stopping", w.sessionID)
			return nil
		}
		if err != nil {
			w.log.Warnf("worker %s: status slot unreadable, stopping: %v", w.sessionID, err)
			return nil
		}

		switch status {
		case StatusPaused:
			w.log.Infof("worker %s for box %d paused, awaiting active state", w.sessionID, w.boxID)
			select {
			case <-time.After(pauseSleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		case StatusActive:
			if err := w.withRetry(ctx, "idle cycle", w.idleCycle); err != nil {
				return err
			}
		case StatusStopped:
			w.log.Infof("worker %s for box %d stopped", w.sessionID, w.boxID)
			return nil
		default:
			w.log.Warnf("worker %s: unknown status %q, stopping", w.sessionID, status)
			return nil
		}
	}
}

// withRetry runs step up to retryLimit times with a fixed pause between
// attempts, then gives up with the last error.
func (w *Worker) withRetry(ctx context.Context, name string, step func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= retryLimit; attempt++ {
		lastErr = step(ctx)
		if lastErr == nil {
			return nil
		}
		w.log.Errorf("worker %s: %s failed, retry %d/%d: %v", w.sessionID, name, attempt, retryLimit, lastErr)
		if attempt < retryLimit {
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	w.log.Errorf("worker %s: max retries reached for %s, exiting", w.sessionID, name)
	return errors.Wrapf(lastErr, "max retries reached for %s", name)
}

// idleCycle runs one bounded IDLE: start the command, collect server
// pushes until something arrives or the timeout fires, complete with
// DONE and process whatever sequence numbers were pushed.
func (w *Worker) idleCycle(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Worker.idleCycle")
	defer span.Finish()
	tracing.TagComponentWorker(span)
	tracing.TagBoxID(span, w.boxID)

	if w.conn.IdlePending() {
		return nil
	}
	c, err := w.conn.Client()
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	updates := make(chan client.Update, 64)
	c.Updates = updates
	defer func() { c.Updates = nil }()

	var stopOnce sync.Once
	stop := make(chan struct{})
	safeStop := func() { stopOnce.Do(func() { close(stop) }) }
	defer safeStop()

	idleDone := make(chan error, 1)
	w.conn.setIdlePending(true)
	c.Timeout = 0
	go func() {
		defer w.conn.setIdlePending(false)
		idleDone <- c.Idle(stop, &client.IdleOptions{LogoutTimeout: idleTimeout})
	}()

	seqNums := w.collectPushes(ctx, updates)

	safeStop()
	select {
	case err := <-idleDone:
		if err != nil {
			tracing.TraceErr(span, err)
			return errors.Wrap(err, "idle")
		}
	case <-time.After(doneTimeout):
		err := errors.Wrap(apperrors.ErrServerTimeout, "idle completion")
		tracing.TraceErr(span, err)
		return err
	}

	for _, seq := range seqNums {
		uid, err := w.resolveUID(c, seq)
		if err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		if uid == 0 {
			continue
		}
		if err := w.processMessage(ctx, c, uid); err != nil {
			tracing.TraceErr(span, err)
			return err
		}
		w.log.Infof("worker %s processed email with UID %d", w.sessionID, uid)
	}
	return nil
}

// collectPushes drains the update channel until an EXISTS push arrives,
// the idle window elapses or the context ends. It returns the sequence
// numbers of newly reported messages.
func (w *Worker) collectPushes(ctx context.Context, updates <-chan client.Update) []uint32 {
	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()

	var seqNums []uint32
	for {
		select {
		case update := <-updates:
			switch u := update.(type) {
			case *client.MailboxUpdate:
				w.log.Infof("worker %s: new message push, mailbox count %d", w.sessionID, u.Mailbox.Messages)
				seqNums = append(seqNums, u.Mailbox.Messages)
				return seqNums
			case *client.ExpungeUpdate:
				w.log.Infof("worker %s: message %d removed", w.sessionID, u.SeqNum)
			case *client.MessageUpdate:
				if u.Message != nil {
					w.log.Infof("worker %s: message %d flags updated", w.sessionID, u.Message.SeqNum)
				}
			default:
				w.log.Infof("worker %s: unprocessed push %T", w.sessionID, update)
			}
		case <-timer.C:
			return seqNums
		case <-ctx.Done():
			return seqNums
		}
	}
}

// resolveUID maps a sequence number reported by the server to its UID.
func (w *Worker) resolveUID(c *client.Client, seq uint32) (uint32, error) {
	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(seq)

	messages := make(chan *goimap.Message, 1)
	c.Timeout = networkTimeout
	err := c.Fetch(seqSet, []goimap.FetchItem{goimap.FetchUid}, messages)
	c.Timeout = 0
	if err != nil {
		if isTimeout(err) {
			return 0, errors.Wrapf(apperrors.ErrServerTimeout, "uid fetch for seq %d: %v", seq, err)
		}
		return 0, errors.Wrapf(err, "uid fetch for seq %d", seq)
	}

	msg := <-messages
	if msg == nil {
		return 0, nil
	}
	return msg.Uid, nil
}

// processMessage fetches the headers of one message, applies the sender
// whitelist and hands the decoded email off for delivery.
func (w *Worker) processMessage(ctx context.Context, c *client.Client, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Worker.processMessage")
	defer span.Finish()
	tracing.TagComponentWorker(span)
	tracing.TagBoxID(span, w.boxID)
	span.SetTag("uid", uid)

	if _, done := w.processed[uid]; done {
		return nil
	}

	headers, err := w.fetchHeaders(c, uid)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if !w.senderAllowed(headers["From"]) {
		w.log.Infof("worker %s: sender of %q not whitelisted, skipping UID %d", w.sessionID, headers["From"], uid)
		w.markProcessed(uid)
		return nil
	}

	raw, err := w.fetchBody(c, uid)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	body, err := decoder.DecodeBody(raw)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	email := decoder.Email{
		Header: decoder.DecodeHeader(headers),
		Body:   body,
	}

	// Delivery happens off the IMAP loop so a slow render cannot stall
	// the idle cycle.
	go func() {
		defer tracing.RecoverAndLogToJaeger(w.log)
		deliverCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := w.dispatcher.DeliverEmail(deliverCtx, w.telegramID, email); err != nil {
			w.log.Errorf("worker %s: delivery of UID %d failed: %v", w.sessionID, uid, err)
		}
	}()

	// Marked only once the message reached a terminal outcome, so a
	// fetch error leaves the UID eligible for the next announcement.
	w.markProcessed(uid)
	return nil
}

// senderAllowed applies the whitelist to a raw From header. An empty
// whitelist admits every sender.
func (w *Worker) senderAllowed(from string) bool {
	if len(w.whitelist) == 0 {
		return true
	}
	sender := decoder.ExtractAddress(decoder.DecodeMimeString(from))
	_, ok := w.whitelist[sender]
	return ok
}

func (w *Worker) markProcessed(uid uint32) {
	w.processed[uid] = struct{}{}
	if uid > w.maxUID {
		w.maxUID = uid
	}
}

func (w *Worker) fetchHeaders(c *client.Client, uid uint32) (map[string]string, error) {
	section := &goimap.BodySectionName{
		BodyPartName: goimap.BodyPartName{
			Specifier: goimap.HeaderSpecifier,
			Fields:    headerFields,
		},
		Peek: true,
	}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)
	items := []goimap.FetchItem{goimap.FetchUid, goimap.FetchFlags, section.FetchItem()}

	messages := make(chan *goimap.Message, 1)
	c.Timeout = networkTimeout
	err := c.UidFetch(seqSet, items, messages)
	c.Timeout = 0
	if err != nil {
		if isTimeout(err) {
			return nil, errors.Wrapf(apperrors.ErrServerTimeout, "header fetch for UID %d: %v", uid, err)
		}
		return nil, errors.Wrapf(err, "header fetch for UID %d", uid)
	}

	msg := <-messages
	if msg == nil {
		return nil, errors.Errorf("no message returned for UID %d", uid)
	}
	literal := msg.GetBody(section)
	if literal == nil {
		return nil, errors.Errorf("no header section for UID %d", uid)
	}

	reader := textproto.NewReader(bufio.NewReader(literal))
	mimeHeader, err := reader.ReadMIMEHeader()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "parse headers for UID %d", uid)
	}

	headers := make(map[string]string, len(mimeHeader))
	for key := range mimeHeader {
		headers[key] = mimeHeader.Get(key)
	}
	return headers, nil
}

func (w *Worker) fetchBody(c *client.Client, uid uint32) ([]byte, error) {
	section := &goimap.BodySectionName{Peek: true}

	seqSet := new(goimap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *goimap.Message, 1)
	c.Timeout = networkTimeout
	err := c.UidFetch(seqSet, []goimap.FetchItem{section.FetchItem()}, messages)
	c.Timeout = 0
	if err != nil {
		if isTimeout(err) {
			return nil, errors.Wrapf(apperrors.ErrServerTimeout, "body fetch for UID %d: %v", uid, err)
		}
		return nil, errors.Wrapf(err, "body fetch for UID %d", uid)
	}

	msg := <-messages
	if msg == nil {
		return nil, errors.Errorf("no message returned for UID %d", uid)
	}
	literal := msg.GetBody(section)
	if literal == nil {
		return nil, errors.Errorf("no body section for UID %d", uid)
	}
	return io.ReadAll(literal)
}

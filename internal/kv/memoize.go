package kv

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Key templates used across the application. Placeholders are filled
// positionally by Key.
const (
	KeyBotUser        = "bot_user_{id}"
	KeyActiveUsers    = "active_users"
	KeyBotUserExists  = "bot_user_exists_{id}"
	KeyEmailService   = "email_service_{id}"
	KeyEmailServices  = "email_services"
	KeyEmailBox       = "email_box_{id}"
	KeyUserEmailBoxes = "bot_user_{id}_email_boxes"
	KeyBoxFilters     = "box_filters_{id}"
	KeyClientStatus   = "imap_client_status_{user}_{box}"

	KeyFailedEmails        = "telegram_id_{id}_failed_emails"
	KeyFailedPhotos        = "telegram_id_{id}_failed_photos"
	PatternFailedEmails    = "telegram_id_*_failed_emails"
	PatternFailedPhotos    = "telegram_id_*_failed_photos"
)

var placeholderRe = regexp.MustCompile(`\{[^{}]*\}`)

// Key interpolates a template, replacing each {placeholder} with the next
// argument in order.
func Key(template string, args ...any) string {
	i := 0
	return placeholderRe.ReplaceAllStringFunc(template, func(string) string {
		if i >= len(args) {
			return ""
		}
		v := fmt.Sprintf("%v", args[i])
		i++
		return v
	})
}

// Memoize returns the cached value for the interpolated key if present;
// otherwise it invokes producer and stores the result with the given TTL.
func Memoize(ctx context.Context, c Client, template string, args []any, ttl time.Duration, producer func(ctx context.Context) (string, error)) (string, error) {
	key := Key(template, args...)

	cached, err := c.Get(ctx, key)
	if err == nil {
		return cached, nil
	}

	value, err := producer(ctx)
	if err != nil {
		return "", err
	}

	// A failed cache write must not fail the read path.
	_ = c.Set(ctx, key, value, ttl)
	return value, nil
}

// Invalidate deletes every interpolated key before the caller performs a
// write, so stale reads cannot be resurrected from cache.
func Invalidate(ctx context.Context, c Client, templates []string, args ...any) error {
	for _, template := range templates {
		if err := c.Delete(ctx, Key(template, args...)); err != nil {
			return err
		}
	}
	return nil
}

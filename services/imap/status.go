package imap

import (
	"context"

	"github.com/mailgram/mailgram/internal/kv"
)

// Status steers a running worker through its KV slot. Anything may
// write the slot; the worker only ever reads it between idle cycles.
type Status string

const (
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// StatusRegistry owns the status slot of one (user, box) worker.
type StatusRegistry struct {
	kv         kv.Client
	telegramID int64
	boxID      uint
}

func NewStatusRegistry(kvClient kv.Client, telegramID int64, boxID uint) *StatusRegistry {
	return &StatusRegistry{kv: kvClient, telegramID: telegramID, boxID: boxID}
}

// StatusKey builds the slot key for a (user, box) pair.
func StatusKey(telegramID int64, boxID uint) string {
	return kv.Key(kv.KeyClientStatus, telegramID, boxID)
}

func (r *StatusRegistry) key() string {
	return StatusKey(r.telegramID, r.boxID)
}

func (r *StatusRegistry) Set(ctx context.Context, status Status) error {
	return r.kv.Set(ctx, r.key(), string(status), 0)
}

func (r *StatusRegistry) Get(ctx context.Context) (Status, error) {
	value, err := r.kv.Get(ctx, r.key())
	if err != nil {
		return "", err
	}
	return Status(value), nil
}

func (r *StatusRegistry) Remove(ctx context.Context) error {
	return r.kv.Delete(ctx, r.key())
}

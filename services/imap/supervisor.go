package imap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/mailgram/mailgram/internal/crypto"
	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/models"
	"github.com/mailgram/mailgram/internal/repository"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services/telegram"
)

// Workers are launched with a stagger so a restart does not hammer the
// IMAP servers all at once.
const launchStagger = 5 * time.Second

// Supervisor launches one worker goroutine per email box. Stopping a
// worker happens exclusively through its status slot; the supervisor
// never signals a worker in-process.
type Supervisor struct {
	repositories *repository.Repositories
	cipher       *crypto.Cipher
	kv           kv.Client
	dispatcher   telegram.Dispatcher
	log          logger.Logger

	wg sync.WaitGroup
}

func NewSupervisor(
	repositories *repository.Repositories,
	cipher *crypto.Cipher,
	kvClient kv.Client,
	dispatcher telegram.Dispatcher,
	log logger.Logger,
) *Supervisor {
	return &Supervisor{
		repositories: repositories,
		cipher:       cipher,
		kv:           kvClient,
		dispatcher:   dispatcher,
		log:          log,
	}
}

// RestartAll walks every active user's boxes and launches a worker for
// each, paused or active per the box's stored flag. Boxes that cannot
// be prepared are skipped and logged, never fatal for the rest.
func (s *Supervisor) RestartAll(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Supervisor.RestartAll")
	defer span.Finish()
	tracing.TagComponentService(span)

	users, err := s.repositories.BotUserRepository.GetActiveUsers(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	launched := 0
	for _, user := range users {
		boxes, err := s.repositories.EmailBoxRepository.GetUserBoxes(ctx, user.TelegramID)
		if err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("supervisor: cannot load boxes for user %d: %v", user.TelegramID, err)
			continue
		}
		for _, box := range boxes {
			initial := StatusActive
			if !box.IsActive {
				initial = StatusPaused
			}
			if err := s.StartForBox(ctx, box, initial); err != nil {
				tracing.TraceErr(span, err)
				s.log.Errorf("supervisor: cannot start worker for box %d: %v", box.ID, err)
				continue
			}
			launched++
			select {
			case <-time.After(launchStagger):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	s.log.Infof("supervisor launched %d workers", launched)
	return nil
}

// StartForBox prepares and launches the worker of a single box.
func (s *Supervisor) StartForBox(ctx context.Context, box *models.EmailBox, initial Status) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Supervisor.StartForBox")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, box.UserID)
	tracing.TagBoxID(span, box.ID)

	service, err := s.repositories.EmailServiceRepository.GetService(ctx, box.EmailServiceID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	password, err := s.cipher.Decrypt(box.EmailPassword)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	filters, err := s.repositories.BoxFilterRepository.GetFilters(ctx, box.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	whitelist := make(map[string]struct{}, len(filters))
	for _, filter := range filters {
		whitelist[filter.FilterValue] = struct{}{}
	}

	addr := fmt.Sprintf("%s:%d", service.Address, service.Port)
	conn := NewConnectionManager(addr, box.EmailUsername, password, s.log)
	status := NewStatusRegistry(s.kv, box.UserID, box.ID)
	worker := NewWorker(conn, status, s.dispatcher, s.log, box.UserID, box.ID, whitelist)

	s.launch(worker, initial)
	return nil
}

func (s *Supervisor) launch(worker *Worker, initial Status) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer tracing.RecoverAndLogToJaeger(s.log)
		if err := worker.Run(context.Background(), initial); err != nil {
			s.log.Errorf("worker for box %d exited with error: %v", worker.boxID, err)
		}
	}()
}

// Wait blocks until every launched worker has exited or the context
// ends, whichever comes first.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

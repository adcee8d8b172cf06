// Package box is the service layer over email boxes: creation with a
// credential probe, lifecycle transitions and ownership checks.
package box

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/mailgram/mailgram/internal/crypto"
	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/models"
	"github.com/mailgram/mailgram/internal/repository"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services/imap"
)

// NewFilter is one whitelist entry on a create request.
type NewFilter struct {
	FilterValue string
	FilterName  *string
}

// CreateBoxRequest carries everything needed to register a mailbox.
// EmailPassword arrives encrypted with the shared application key.
type CreateBoxRequest struct {
	EmailServiceID uint
	EmailUsername  string
	EmailPassword  string
	Filters        []NewFilter
}

type Service interface {
	CreateBox(ctx context.Context, telegramID int64, request CreateBoxRequest) (*models.EmailBox, error)
	GetBoxWithFilters(ctx context.Context, telegramID int64, boxID uint) (*models.EmailBox, []*models.BoxFilter, error)
	GetUserBoxes(ctx context.Context, telegramID int64) ([]*models.EmailBox, error)
	GetFilters(ctx context.Context, telegramID int64, boxID uint) ([]*models.BoxFilter, error)
	DeleteBox(ctx context.Context, telegramID int64, boxID uint) error
	PauseBoxListening(ctx context.Context, telegramID int64, boxID uint) error
	ResumeBoxListening(ctx context.Context, telegramID int64, boxID uint) error
}

type service struct {
	repositories *repository.Repositories
	cipher       *crypto.Cipher
	kv           kv.Client
	supervisor   *imap.Supervisor
	log          logger.Logger
}

func NewService(
	repositories *repository.Repositories,
	cipher *crypto.Cipher,
	kvClient kv.Client,
	supervisor *imap.Supervisor,
	log logger.Logger,
) Service {
	return &service{
		repositories: repositories,
		cipher:       cipher,
		kv:           kvClient,
		supervisor:   supervisor,
		log:          log,
	}
}

// CreateBox verifies the user, the provider and the credentials before
// anything is persisted, then stores the box with its filters and
// launches its worker.
func (s *service) CreateBox(ctx context.Context, telegramID int64, request CreateBoxRequest) (*models.EmailBox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BoxService.CreateBox")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)

	user, err := s.repositories.BotUserRepository.GetUser(ctx, telegramID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	emailService, err := s.repositories.EmailServiceRepository.GetService(ctx, request.EmailServiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrServiceNotFound
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	password, err := s.cipher.Decrypt(request.EmailPassword)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, apperrors.ErrCredentialsInvalid
	}

	addr := fmt.Sprintf("%s:%d", emailService.Address, emailService.Port)
	conn := imap.NewConnectionManager(addr, request.EmailUsername, password, s.log)
	ok, err := conn.Probe(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrCredentialsInvalid
	}

	box := &models.EmailBox{
		UserID:         user.TelegramID,
		EmailServiceID: emailService.ID,
		EmailUsername:  request.EmailUsername,
		EmailPassword:  request.EmailPassword,
		IsActive:       true,
	}
	err = s.repositories.EmailBoxRepository.CreateBox(ctx, box)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperrors.ErrBoxAlreadyExists
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	filters := make([]*models.BoxFilter, 0, len(request.Filters))
	for _, filter := range request.Filters {
		filters = append(filters, &models.BoxFilter{
			BoxID:       box.ID,
			FilterValue: filter.FilterValue,
			FilterName:  filter.FilterName,
		})
	}
	if err := s.repositories.BoxFilterRepository.CreateFilters(ctx, box.ID, filters); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if err := s.supervisor.StartForBox(ctx, box, imap.StatusActive); err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("box %d created but worker failed to start: %v", box.ID, err)
	}

	s.log.Infof("created email box %d for user %d", box.ID, telegramID)
	return box, nil
}

// ownedBox loads a box and verifies it belongs to the given user.
func (s *service) ownedBox(ctx context.Context, telegramID int64, boxID uint) (*models.EmailBox, error) {
	if _, err := s.repositories.BotUserRepository.GetUser(ctx, telegramID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	box, err := s.repositories.EmailBoxRepository.GetBox(ctx, boxID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrBoxNotFound
	}
	if err != nil {
		return nil, err
	}
	if box.UserID != telegramID {
		return nil, apperrors.ErrBoxNotOwnedByUser
	}
	return box, nil
}

func (s *service) GetBoxWithFilters(ctx context.Context, telegramID int64, boxID uint) (*models.EmailBox, []*models.BoxFilter, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BoxService.GetBoxWithFilters")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)
	tracing.TagBoxID(span, boxID)

	box, err := s.ownedBox(ctx, telegramID, boxID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}

	filters, err := s.repositories.BoxFilterRepository.GetFilters(ctx, boxID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, nil, err
	}
	return box, filters, nil
}

func (s *service) GetUserBoxes(ctx context.Context, telegramID int64) ([]*models.EmailBox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BoxService.GetUserBoxes")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)

	if _, err := s.repositories.BotUserRepository.GetUser(ctx, telegramID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	boxes, err := s.repositories.EmailBoxRepository.GetUserBoxes(ctx, telegramID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, apperrors.ErrBoxesNotFound
	}
	return boxes, nil
}

func (s *service) GetFilters(ctx context.Context, telegramID int64, boxID uint) ([]*models.BoxFilter, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BoxService.GetFilters")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)
	tracing.TagBoxID(span, boxID)

	if _, err := s.ownedBox(ctx, telegramID, boxID); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	filters, err := s.repositories.BoxFilterRepository.GetFilters(ctx, boxID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(filters) == 0 {
		return nil, apperrors.ErrFiltersNotFound
	}
	return filters, nil
}

// DeleteBox removes the box row and writes stopped into the status
// slot so the running worker winds itself down.
func (s *service) DeleteBox(ctx context.Context, telegramID int64, boxID uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BoxService.DeleteBox")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)
	tracing.TagBoxID(span, boxID)

	if _, err := s.ownedBox(ctx, telegramID, boxID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.repositories.EmailBoxRepository.DeleteBox(ctx, boxID, telegramID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	registry := imap.NewStatusRegistry(s.kv, telegramID, boxID)
	if err := registry.Set(ctx, imap.StatusStopped); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	s.log.Infof("deleted email box %d for user %d", boxID, telegramID)
	return nil
}

func (s *service) PauseBoxListening(ctx context.Context, telegramID int64, boxID uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BoxService.PauseBoxListening")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)
	tracing.TagBoxID(span, boxID)

	if _, err := s.ownedBox(ctx, telegramID, boxID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.repositories.EmailBoxRepository.SetActive(ctx, boxID, telegramID, false); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	registry := imap.NewStatusRegistry(s.kv, telegramID, boxID)
	if err := registry.Set(ctx, imap.StatusPaused); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *service) ResumeBoxListening(ctx context.Context, telegramID int64, boxID uint) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "BoxService.ResumeBoxListening")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)
	tracing.TagBoxID(span, boxID)

	if _, err := s.ownedBox(ctx, telegramID, boxID); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if err := s.repositories.EmailBoxRepository.SetActive(ctx, boxID, telegramID, true); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	registry := imap.NewStatusRegistry(s.kv, telegramID, boxID)
	if err := registry.Set(ctx, imap.StatusActive); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

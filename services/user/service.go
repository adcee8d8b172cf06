// Package user is the service layer over bot user accounts.
package user

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/models"
	"github.com/mailgram/mailgram/internal/repository"
	"github.com/mailgram/mailgram/internal/tracing"
)

type Service interface {
	CreateUser(ctx context.Context, telegramID int64) error
	UserExists(ctx context.Context, telegramID int64) (bool, error)
	GetUser(ctx context.Context, telegramID int64) (*models.BotUser, error)
}

type service struct {
	repositories *repository.Repositories
	log          logger.Logger
}

func NewService(repositories *repository.Repositories, log logger.Logger) Service {
	return &service{repositories: repositories, log: log}
}

func (s *service) CreateUser(ctx context.Context, telegramID int64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "UserService.CreateUser")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)

	err := s.repositories.BotUserRepository.CreateUser(ctx, telegramID)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrUserAlreadyExists
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	s.log.Infof("created bot user %d", telegramID)
	return nil
}

func (s *service) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "UserService.UserExists")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTelegramID(span, telegramID)

	exists, err := s.repositories.BotUserRepository.UserExists(ctx, telegramID)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return exists, nil
}

func (s *service) GetUser(ctx context.Context, telegramID int64) (*models.BotUser, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "UserService.GetUser")
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
	return user, nil
}

// Package emailservice is the service layer over the supported email
// provider catalog.
package emailservice

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/models"
	"github.com/mailgram/mailgram/internal/repository"
	"github.com/mailgram/mailgram/internal/tracing"
)

type Service interface {
	GetService(ctx context.Context, id uint) (*models.EmailService, error)
	GetServices(ctx context.Context) ([]*models.EmailService, error)
}

type service struct {
	repositories *repository.Repositories
}

func NewService(repositories *repository.Repositories) Service {
	return &service{repositories: repositories}
}

func (s *service) GetService(ctx context.Context, id uint) (*models.EmailService, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailServiceService.GetService")
	defer span.Finish()
	tracing.TagComponentService(span)

	domainService, err := s.repositories.EmailServiceRepository.GetService(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrServiceNotFound
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return domainService, nil
}

func (s *service) GetServices(ctx context.Context) ([]*models.EmailService, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "EmailServiceService.GetServices")
	defer span.Finish()
	tracing.TagComponentService(span)

	domainServices, err := s.repositories.EmailServiceRepository.GetServices(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(domainServices) == 0 {
		return nil, apperrors.ErrServicesNotAvailable
	}
	return domainServices, nil
}

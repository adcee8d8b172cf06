package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/models"
	"github.com/mailgram/mailgram/internal/tracing"
)

type EmailServiceRepository interface {
	GetService(ctx context.Context, id uint) (*models.EmailService, error)
	GetServices(ctx context.Context) ([]*models.EmailService, error)
}

type emailServiceRepository struct {
	db       *gorm.DB
	kv       kv.Client
	cacheTTL time.Duration
}

func NewEmailServiceRepository(db *gorm.DB, kvClient kv.Client, cacheTTL time.Duration) EmailServiceRepository {
	return &emailServiceRepository{db: db, kv: kvClient, cacheTTL: cacheTTL}
}

func (r *emailServiceRepository) GetService(ctx context.Context, id uint) (*models.EmailService, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailServiceRepository.GetService")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyEmailService, []any{id}, r.cacheTTL, func(ctx context.Context) (string, error) {
		var service models.EmailService
		if err := r.db.WithContext(ctx).First(&service, "id = ?", id).Error; err != nil {
			return "", err
		}
		raw, err := json.Marshal(service)
		return string(raw), err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var service models.EmailService
	if err := json.Unmarshal([]byte(payload), &service); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &service, nil
}

func (r *emailServiceRepository) GetServices(ctx context.Context) ([]*models.EmailService, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailServiceRepository.GetServices")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyEmailServices, nil, r.cacheTTL, func(ctx context.Context) (string, error) {
		var services []*models.EmailService
		if err := r.db.WithContext(ctx).Order("id").Find(&services).Error; err != nil {
			return "", err
		}
		raw, err := json.Marshal(services)
		return string(raw), err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var services []*models.EmailService
	if err := json.Unmarshal([]byte(payload), &services); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return services, nil
}

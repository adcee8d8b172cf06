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

type BoxFilterRepository interface {
	CreateFilters(ctx context.Context, boxID uint, filters []*models.BoxFilter) error
	GetFilters(ctx context.Context, boxID uint) ([]*models.BoxFilter, error)
}

type boxFilterRepository struct {
	db       *gorm.DB
	kv       kv.Client
	cacheTTL time.Duration
}

func NewBoxFilterRepository(db *gorm.DB, kvClient kv.Client, cacheTTL time.Duration) BoxFilterRepository {
	return &boxFilterRepository{db: db, kv: kvClient, cacheTTL: cacheTTL}
}

func (r *boxFilterRepository) CreateFilters(ctx context.Context, boxID uint, filters []*models.BoxFilter) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "boxFilterRepository.CreateFilters")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagBoxID(span, boxID)

	if err := kv.Invalidate(ctx, r.kv, []string{kv.KeyBoxFilters}, boxID); err != nil {
		tracing.TraceErr(span, err)
	}

	if len(filters) == 0 {
		return nil
	}
	for _, filter := range filters {
		filter.BoxID = boxID
	}

	err := r.db.WithContext(ctx).Create(&filters).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *boxFilterRepository) GetFilters(ctx context.Context, boxID uint) ([]*models.BoxFilter, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "boxFilterRepository.GetFilters")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagBoxID(span, boxID)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyBoxFilters, []any{boxID}, r.cacheTTL, func(ctx context.Context) (string, error) {
		var filters []*models.BoxFilter
		if err := r.db.WithContext(ctx).Where("box_id = ?", boxID).Order("id").Find(&filters).Error; err != nil {
			return "", err
		}
		raw, err := json.Marshal(filters)
		return string(raw), err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var filters []*models.BoxFilter
	if err := json.Unmarshal([]byte(payload), &filters); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return filters, nil
}

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

type EmailBoxRepository interface {
	CreateBox(ctx context.Context, box *models.EmailBox) error
	GetBox(ctx context.Context, id uint) (*models.EmailBox, error)
	GetUserBoxes(ctx context.Context, telegramID int64) ([]*models.EmailBox, error)
	SetActive(ctx context.Context, id uint, telegramID int64, active bool) error
	DeleteBox(ctx context.Context, id uint, telegramID int64) error
}

type emailBoxRepository struct {
	db       *gorm.DB
	kv       kv.Client
	cacheTTL time.Duration
}

func NewEmailBoxRepository(db *gorm.DB, kvClient kv.Client, cacheTTL time.Duration) EmailBoxRepository {
	return &emailBoxRepository{db: db, kv: kvClient, cacheTTL: cacheTTL}
}

func (r *emailBoxRepository) invalidate(ctx context.Context, span opentracing.Span, id uint, telegramID int64) {
	if err := kv.Invalidate(ctx, r.kv, []string{kv.KeyEmailBox}, id); err != nil {
		tracing.TraceErr(span, err)
	}
	if err := kv.Invalidate(ctx, r.kv, []string{kv.KeyUserEmailBoxes}, telegramID); err != nil {
		tracing.TraceErr(span, err)
	}
}

func (r *emailBoxRepository) CreateBox(ctx context.Context, box *models.EmailBox) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailBoxRepository.CreateBox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagTelegramID(span, box.UserID)

	r.invalidate(ctx, span, box.ID, box.UserID)

	err := r.db.WithContext(ctx).Create(box).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *emailBoxRepository) GetBox(ctx context.Context, id uint) (*models.EmailBox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailBoxRepository.GetBox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagBoxID(span, id)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyEmailBox, []any{id}, r.cacheTTL, func(ctx context.Context) (string, error) {
		var box models.EmailBox
		if err := r.db.WithContext(ctx).First(&box, "id = ?", id).Error; err != nil {
			return "", err
		}
		raw, err := json.Marshal(box)
		return string(raw), err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var box models.EmailBox
	if err := json.Unmarshal([]byte(payload), &box); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &box, nil
}

func (r *emailBoxRepository) GetUserBoxes(ctx context.Context, telegramID int64) ([]*models.EmailBox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailBoxRepository.GetUserBoxes")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagTelegramID(span, telegramID)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyUserEmailBoxes, []any{telegramID}, r.cacheTTL, func(ctx context.Context) (string, error) {
		var boxes []*models.EmailBox
		if err := r.db.WithContext(ctx).Where("user_id = ?", telegramID).Order("id").Find(&boxes).Error; err != nil {
			return "", err
		}
		raw, err := json.Marshal(boxes)
		return string(raw), err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var boxes []*models.EmailBox
	if err := json.Unmarshal([]byte(payload), &boxes); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return boxes, nil
}

func (r *emailBoxRepository) SetActive(ctx context.Context, id uint, telegramID int64, active bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailBoxRepository.SetActive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagBoxID(span, id)

	r.invalidate(ctx, span, id, telegramID)

	err := r.db.WithContext(ctx).
		Model(&models.EmailBox{}).
		Where("id = ? AND user_id = ?", id, telegramID).
		Update("is_active", active).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *emailBoxRepository) DeleteBox(ctx context.Context, id uint, telegramID int64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailBoxRepository.DeleteBox")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagBoxID(span, id)

	r.invalidate(ctx, span, id, telegramID)
	if err := kv.Invalidate(ctx, r.kv, []string{kv.KeyBoxFilters}, id); err != nil {
		tracing.TraceErr(span, err)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("box_id = ?", id).Delete(&models.BoxFilter{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, telegramID).Delete(&models.EmailBox{}).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

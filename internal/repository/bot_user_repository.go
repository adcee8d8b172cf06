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

type BotUserRepository interface {
	CreateUser(ctx context.Context, telegramID int64) error
	GetUser(ctx context.Context, telegramID int64) (*models.BotUser, error)
	UserExists(ctx context.Context, telegramID int64) (bool, error)
	GetActiveUsers(ctx context.Context) ([]*models.BotUser, error)
}

type botUserRepository struct {
	db       *gorm.DB
	kv       kv.Client
	cacheTTL time.Duration
}

func NewBotUserRepository(db *gorm.DB, kvClient kv.Client, cacheTTL time.Duration) BotUserRepository {
	return &botUserRepository{db: db, kv: kvClient, cacheTTL: cacheTTL}
}

func (r *botUserRepository) CreateUser(ctx context.Context, telegramID int64) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "botUserRepository.CreateUser")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagTelegramID(span, telegramID)

	if err := kv.Invalidate(ctx, r.kv, []string{kv.KeyBotUser, kv.KeyBotUserExists}, telegramID); err != nil {
		tracing.TraceErr(span, err)
	}
	if err := r.kv.Delete(ctx, kv.KeyActiveUsers); err != nil {
		tracing.TraceErr(span, err)
	}

	user := models.BotUser{TelegramID: telegramID, IsActive: true}
	err := r.db.WithContext(ctx).Create(&user).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *botUserRepository) GetUser(ctx context.Context, telegramID int64) (*models.BotUser, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "botUserRepository.GetUser")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagTelegramID(span, telegramID)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyBotUser, []any{telegramID}, r.cacheTTL, func(ctx context.Context) (string, error) {
		var user models.BotUser
		if err := r.db.WithContext(ctx).First(&user, "telegram_id = ?", telegramID).Error; err != nil {
			return "", err
		}
		raw, err := json.Marshal(user)
		return string(raw), err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var user models.BotUser
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &user, nil
}

func (r *botUserRepository) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "botUserRepository.UserExists")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagTelegramID(span, telegramID)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyBotUserExists, []any{telegramID}, r.cacheTTL, func(ctx context.Context) (string, error) {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.BotUser{}).Where("telegram_id = ?", telegramID).Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			return "1", nil
		}
		return "0", nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return payload == "1", nil
}

func (r *botUserRepository) GetActiveUsers(ctx context.Context) ([]*models.BotUser, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "botUserRepository.GetActiveUsers")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	payload, err := kv.Memoize(ctx, r.kv, kv.KeyActiveUsers, nil, r.cacheTTL, func(ctx context.Context) (string, error) {
		var users []*models.BotUser
		if err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&users).Error; err != nil {
			return "", err
		}
		raw, err := json.Marshal(users)
		return string(raw), err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	var users []*models.BotUser
	if err := json.Unmarshal([]byte(payload), &users); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return users, nil
}

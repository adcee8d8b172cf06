package models

import (
	"time"
)

// BotUser is a chat user identified by their opaque Telegram id.
type BotUser struct {
	TelegramID int64     `gorm:"column:telegram_id;primaryKey;autoIncrement:false" json:"telegramId"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (BotUser) TableName() string {
	return "bot_user"
}

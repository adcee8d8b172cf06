package models

import (
	"time"
)

// EmailBox is a tracked mailbox. EmailPassword holds ciphertext only;
// plaintext exists solely inside the worker that listens on the box.
type EmailBox struct {
	ID             uint   `gorm:"column:id;primaryKey" json:"id"`
	UserID         int64  `gorm:"column:user_id;not null;uniqueIndex:idx_box_owner_login_service;constraint:OnDelete:CASCADE" json:"userId"`
	EmailServiceID uint   `gorm:"column:email_service_id;not null;uniqueIndex:idx_box_owner_login_service" json:"emailServiceId"`
	EmailUsername  string `gorm:"column:email_username;type:varchar(255);not null;uniqueIndex:idx_box_owner_login_service" json:"emailUsername"`
	EmailPassword  string `gorm:"column:email_password;type:varchar(512);not null" json:"-"`
	IsActive       bool   `gorm:"column:is_active;not null;default:true" json:"isActive"`

	User         BotUser      `gorm:"foreignKey:UserID;references:TelegramID;constraint:OnDelete:CASCADE" json:"-"`
	EmailService EmailService `gorm:"foreignKey:EmailServiceID;constraint:OnDelete:RESTRICT" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (EmailBox) TableName() string {
	return "email_box"
}

package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/models"
)

type Repositories struct {
	BotUserRepository      BotUserRepository
	EmailServiceRepository EmailServiceRepository
	EmailBoxRepository     EmailBoxRepository
	BoxFilterRepository    BoxFilterRepository
}

func InitRepositories(db *gorm.DB, kvClient kv.Client, cacheTTL time.Duration) *Repositories {
	return &Repositories{
		BotUserRepository:      NewBotUserRepository(db, kvClient, cacheTTL),
		EmailServiceRepository: NewEmailServiceRepository(db, kvClient, cacheTTL),
		EmailBoxRepository:     NewEmailBoxRepository(db, kvClient, cacheTTL),
		BoxFilterRepository:    NewBoxFilterRepository(db, kvClient, cacheTTL),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.BotUser{},
		&models.EmailService{},
		&models.EmailBox{},
		&models.BoxFilter{},
	)
}

package services

import (
	"github.com/mailgram/mailgram/config"
	"github.com/mailgram/mailgram/internal/crypto"
	"github.com/mailgram/mailgram/internal/kv"
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/repository"
	"github.com/mailgram/mailgram/services/box"
	"github.com/mailgram/mailgram/services/emailservice"
	"github.com/mailgram/mailgram/services/imap"
	"github.com/mailgram/mailgram/services/render"
	"github.com/mailgram/mailgram/services/retry"
	"github.com/mailgram/mailgram/services/telegram"
	"github.com/mailgram/mailgram/services/user"
)

type Services struct {
	UserService         user.Service
	EmailServiceService emailservice.Service
	BoxService          box.Service

	TelegramClient telegram.Client
	Dispatcher     telegram.Dispatcher
	Rasterizer     render.Rasterizer
	RetryWorker    *retry.Worker
	Supervisor     *imap.Supervisor
}

func InitServices(
	cfg *config.Config,
	repositories *repository.Repositories,
	kvClient kv.Client,
	cipher *crypto.Cipher,
	log logger.Logger,
) *Services {
	telegramClient := telegram.NewClient(cfg.TelegramConfig.APIHost, cfg.TelegramConfig.BotToken, kvClient, log)
	rasterizer := render.NewChromeRasterizer(log)
	dispatcher := telegram.NewDispatcher(telegramClient, rasterizer, log)
	supervisor := imap.NewSupervisor(repositories, cipher, kvClient, dispatcher, log)

	return &Services{
		UserService:         user.NewService(repositories, log),
		EmailServiceService: emailservice.NewService(repositories),
		BoxService:          box.NewService(repositories, cipher, kvClient, supervisor, log),
		TelegramClient:      telegramClient,
		Dispatcher:          dispatcher,
		Rasterizer:          rasterizer,
		RetryWorker:         retry.NewWorker(kvClient, telegramClient, log),
		Supervisor:          supervisor,
	}
}

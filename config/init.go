package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:      &AppConfig{},
		DatabaseConfig: &DatabaseConfig{},
		RedisConfig:    &RedisConfig{},
		TelegramConfig: &TelegramConfig{},
		CryptoConfig:   &CryptoConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading mailgram config: %v", err)
	}

	return config, nil
}

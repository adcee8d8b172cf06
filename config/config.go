package config

import (
	"github.com/mailgram/mailgram/internal/logger"
	"github.com/mailgram/mailgram/internal/tracing"
)

type AppConfig struct {
	APIPort      string   `env:"PORT" envDefault:"8000"`
	APIKey       string   `env:"API_KEY,required"`
	AllowedHosts []string `env:"ALLOWED_HOSTS" envSeparator:"," envDefault:"localhost"`
}

type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            string `env:"POSTGRES_PORT,required"`
	User            string `env:"POSTGRES_USER,required"`
	DBName          string `env:"POSTGRES_DB_NAME,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN" envDefault:"100"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}

type RedisConfig struct {
	URL             string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CacheTTLSeconds int    `env:"REDIS_CACHE_TTL_SECONDS" envDefault:"300"`
}

type TelegramConfig struct {
	APIHost  string `env:"TELEGRAM_API_HOST" envDefault:"https://api.telegram.org"`
	BotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
}

type CryptoConfig struct {
	// Base64-encoded 32-byte AES key used for mailbox passwords at rest.
	Key string `env:"CRYPTO_KEY,required"`
}

type Config struct {
	AppConfig      *AppConfig
	DatabaseConfig *DatabaseConfig
	RedisConfig    *RedisConfig
	TelegramConfig *TelegramConfig
	CryptoConfig   *CryptoConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
}

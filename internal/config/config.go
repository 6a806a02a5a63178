// Package config loads process configuration the way the teacher's
// application layer does: an optional .env file feeds process environment
// variables, which are then decoded into a typed struct.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// DatabaseConfig configures the Postgres ledger store.
type DatabaseConfig struct {
	Driver          string `env:"DB_DRIVER,default=postgres"`
	DSN             string `env:"DB_DSN"`
	MaxOpenConns    int    `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"DB_CONN_MAX_LIFETIME_S,default=300"`
}

// RedisConfig configures the operator bot's persisted key-value state.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,default=127.0.0.1:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Host               string `env:"HTTP_HOST,default=0.0.0.0"`
	Port               int    `env:"HTTP_PORT,default=8090"`
	RateLimitPerSecond int    `env:"HTTP_RATE_LIMIT_PER_SECOND,default=20"`
	RateLimitBurst     int    `env:"HTTP_RATE_LIMIT_BURST,default=40"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
	Output string `env:"LOG_OUTPUT,default=stdout"`
}

// WebhookConfig configures the operator bot's outbound notifications.
type WebhookConfig struct {
	URL   string `env:"WEBHOOK_URL"`
	Token string `env:"WEBHOOK_BOT_TOKEN"`
}

// Config is the root process configuration.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Webhook  WebhookConfig

	Authority string `env:"PROTOCOL_AUTHORITY,default=authority-1"`
}

// Load reads an optional .env file (missing is not an error) then decodes
// environment variables into Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

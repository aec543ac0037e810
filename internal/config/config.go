// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server and historian read from the environment.
type Config struct {
	Addr        string `env:"QUIZLIVE_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	ActionQueue string `env:"HISTORIAN_QUEUE_NAME" envDefault:"quizlive_actions"`

	HistorianBatchSize int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlush     time.Duration `env:"HISTORIAN_FLUSH" envDefault:"500ms"`

	// TokenTTL of 0 issues tokens without an exp claim.
	TokenTTL       time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"0s"`
	PrivateKeyPath string        `env:"AUTH_PRIVATE_KEY_PATH"`
	PublicKeyPath  string        `env:"AUTH_PUBLIC_KEY_PATH"`

	GracePeriod   time.Duration `env:"QUIZLIVE_GRACE_PERIOD" envDefault:"3s"`
	SweepInterval time.Duration `env:"QUIZLIVE_SWEEP_INTERVAL" envDefault:"1m"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName   string `env:"OTEL_SERVICE_NAME" envDefault:"quizlive"`
	PublicBaseURL string `env:"QUIZLIVE_PUBLIC_URL" envDefault:"http://localhost:8080"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Level returns the configured logrus level, defaulting to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())
	return logger
}

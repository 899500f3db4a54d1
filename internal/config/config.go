// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Fanout buses selectable with FANOUT_BUS.
const (
	BusLocal = "local"
	BusRedis = "redis"
	BusNATS  = "nats"
)

// Config is the server configuration. Values come from the process
// environment, optionally seeded from a .env file.
type Config struct {
	MongoURI      string `env:"MONGODB_URI,required=true"`
	MongoDatabase string `env:"MONGODB_DATABASE,default=konsultasi"`

	HTTPAddr    string `env:"HTTP_ADDR,default=:8080"`
	GRPCPort    int    `env:"GRPC_PORT,default=50051"`
	CORSOrigins string `env:"CORS_ORIGINS,default=*"`
	LogLevel    string `env:"LOG_LEVEL,default=INFO"`

	// ClosedStatuses is a |-separated list of schedule statuses that end a
	// consultation.
	ClosedStatuses string `env:"CLOSED_SCHEDULE_STATUSES,default=selesai"`

	RateLimitEPM   int           `env:"RATE_LIMIT_EPM,default=120"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST,default=20"`
	PersistTimeout time.Duration `env:"PERSIST_TIMEOUT,default=10s"`

	FanoutBus     string `env:"FANOUT_BUS,default=local"`
	FanoutChannel string `env:"FANOUT_CHANNEL,default=konsultasi.chat"`
	RedisURL      string `env:"REDIS_URL"`
	NATSURL       string `env:"NATS_URL"`

	TLSCert    string `env:"TLS_CERT"`
	TLSKey     string `env:"TLS_KEY"`
	RequireTLS bool   `env:"REQUIRE_TLS,default=false"`
}

// Load reads .env when present and binds the environment into a Config.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations the struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGODB_URI is required"))
	}
	if !lo.Contains([]string{BusLocal, BusRedis, BusNATS}, c.FanoutBus) {
		errs = append(errs, fmt.Errorf("FANOUT_BUS must be one of local, redis, nats, got %q", c.FanoutBus))
	}
	if c.FanoutBus == BusRedis && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required when FANOUT_BUS=redis"))
	}
	if c.FanoutBus == BusNATS && c.NATSURL == "" {
		errs = append(errs, errors.New("NATS_URL is required when FANOUT_BUS=nats"))
	}
	if c.RequireTLS && (c.TLSCert == "" || c.TLSKey == "") {
		errs = append(errs, errors.New("TLS_CERT and TLS_KEY are required when REQUIRE_TLS=true"))
	}
	if c.RateLimitEPM <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_EPM and RATE_LIMIT_BURST must be positive"))
	}
	if c.PersistTimeout <= 0 {
		errs = append(errs, errors.New("PERSIST_TIMEOUT must be positive"))
	}
	if len(c.ClosedScheduleStatuses()) == 0 {
		errs = append(errs, errors.New("CLOSED_SCHEDULE_STATUSES must name at least one status"))
	}
	return errors.Join(errs...)
}

// ClosedScheduleStatuses returns the terminal schedule statuses.
func (c *Config) ClosedScheduleStatuses() []string {
	parts := lo.Map(strings.Split(c.ClosedStatuses, "|"), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(parts))
}

// AllowedOrigins returns the comma-separated CORS origins as configured.
func (c *Config) AllowedOrigins() string {
	return strings.Join(lo.Compact(lo.Map(strings.Split(c.CORSOrigins, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})), ",")
}

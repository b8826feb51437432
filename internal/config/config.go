// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or invalid, Load returns an error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"jobmate/proposal-service/internal/model"
)

// Notifier backends.
const (
	NotifierRedis = "redis"
	NotifierKafka = "kafka"
	NotifierLog   = "log"
)

// Config holds all runtime configuration for the proposal service.
type Config struct {
	Port        string `env:"PROPOSAL_PORT" envDefault:"8083" validate:"required,numeric"`
	GRPCPort    string `env:"PROPOSAL_GRPC_PORT" envDefault:"9083" validate:"required,numeric"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL,required,notEmpty"`

	CycleInterval      time.Duration `env:"CYCLE_INTERVAL" envDefault:"30m" validate:"gt=0"`
	AdapterTimeout     time.Duration `env:"ADAPTER_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	MaxMatchesPerCycle int           `env:"MAX_MATCHES_PER_CYCLE" envDefault:"10" validate:"min=1"`
	QuotaTimezone      string        `env:"QUOTA_TIMEZONE" envDefault:"UTC"`

	NotifierBackend string   `env:"NOTIFIER_BACKEND" envDefault:"redis" validate:"oneof=redis kafka log"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string   `env:"KAFKA_NOTIFICATIONS_TOPIC" envDefault:"proposal.notifications"`

	SimulatedPlatforms []string          `env:"SIMULATED_PLATFORMS" envDefault:"upwork,freelancer,fiverr" envSeparator:","`
	PlatformFeeds      map[string]string `env:"PLATFORM_FEEDS" envKeyValSeparator:"="`
	PlatformFeedKeys   map[string]string `env:"PLATFORM_FEED_KEYS" envKeyValSeparator:"="`

	MarketCacheTTL time.Duration `env:"MARKET_CACHE_TTL" envDefault:"1h" validate:"gte=0"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`

	// Location is QuotaTimezone resolved by Load.
	Location *time.Location `env:"-"`
}

// Load reads a .env file when present, then environment variables, and
// returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse builds a Config from opts (the process environment when
// opts.Environment is nil) without reading .env files.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.NotifierBackend = strings.ToLower(cfg.NotifierBackend)
	cfg.SimulatedPlatforms = compact(cfg.SimulatedPlatforms)
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)

	if err := model.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.QuotaTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: QUOTA_TIMEZONE %q: %w", cfg.QuotaTimezone, err)
	}
	cfg.Location = loc

	if cfg.NotifierBackend == NotifierKafka && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("config: KAFKA_BROKERS is required when NOTIFIER_BACKEND=kafka")
	}
	for name, raw := range cfg.PlatformFeeds {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("config: PLATFORM_FEEDS %s: invalid URL %q", name, raw)
		}
	}
	return &cfg, nil
}

// SlogLevel returns LogLevel as a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/proposal-service/internal/config"
)

func parse(vars map[string]string) (*config.Config, error) {
	base := map[string]string{
		"DATABASE_URL": "postgres://localhost/jobmate",
		"REDIS_URL":    "redis://localhost:6379",
	}
	for k, v := range vars {
		base[k] = v
	}
	return config.Parse(env.Options{Environment: base})
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, "9083", cfg.GRPCPort)
	assert.Equal(t, 30*time.Minute, cfg.CycleInterval)
	assert.Equal(t, 15*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 10, cfg.MaxMatchesPerCycle)
	assert.Equal(t, config.NotifierRedis, cfg.NotifierBackend)
	assert.Equal(t, []string{"upwork", "freelancer", "fiverr"}, cfg.SimulatedPlatforms)
	assert.Equal(t, time.Hour, cfg.MarketCacheTTL)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestParse_RequiresConnections(t *testing.T) {
	_, err := config.Parse(env.Options{Environment: map[string]string{"REDIS_URL": "redis://x"}})
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = parse(map[string]string{"REDIS_URL": ""})
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parse(map[string]string{
		"CYCLE_INTERVAL":      "5m",
		"QUOTA_TIMEZONE":      "Europe/Paris",
		"NOTIFIER_BACKEND":    "Kafka",
		"KAFKA_BROKERS":       "k1:9092, k2:9092",
		"SIMULATED_PLATFORMS": "upwork, ,fiverr",
		"PLATFORM_FEEDS":      "acme=https://feeds.acme.test/v1",
		"PLATFORM_FEED_KEYS":  "acme=secret",
		"LOG_LEVEL":           "DEBUG",
	})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.CycleInterval)
	assert.Equal(t, "Europe/Paris", cfg.Location.String())
	assert.Equal(t, config.NotifierKafka, cfg.NotifierBackend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"upwork", "fiverr"}, cfg.SimulatedPlatforms)
	assert.Equal(t, "https://feeds.acme.test/v1", cfg.PlatformFeeds["acme"])
	assert.Equal(t, "secret", cfg.PlatformFeedKeys["acme"])
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestParse_RejectsInvalidCombinations(t *testing.T) {
	cases := map[string]map[string]string{
		"kafka without brokers": {"NOTIFIER_BACKEND": "kafka"},
		"unknown timezone":      {"QUOTA_TIMEZONE": "Mars/Olympus"},
		"zero interval":         {"CYCLE_INTERVAL": "0s"},
		"negative interval":     {"CYCLE_INTERVAL": "-5m"},
		"unparsable interval":   {"CYCLE_INTERVAL": "often"},
		"unknown backend":       {"NOTIFIER_BACKEND": "smtp"},
		"bad feed url":          {"PLATFORM_FEEDS": "acme=not-a-url"},
		"non-numeric port":      {"PROPOSAL_PORT": "http"},
		"zero match cap":        {"MAX_MATCHES_PER_CYCLE": "0"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse(vars)
			assert.Error(t, err)
		})
	}
}

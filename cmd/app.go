package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"jobmate/proposal-service/internal/automation"
	"jobmate/proposal-service/internal/bidding"
	"jobmate/proposal-service/internal/config"
	"jobmate/proposal-service/internal/db"
	"jobmate/proposal-service/internal/notify"
	"jobmate/proposal-service/internal/platform"
	"jobmate/proposal-service/internal/store"
	"jobmate/proposal-service/internal/writer"
)

// app is the wired service shared by serve and run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	rdb    *redis.Client
	store  *store.Postgres
	orch   *automation.Orchestrator

	closers []func() error
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(h).With("service", "proposal-service")
	slog.SetDefault(logger)
	return logger
}

// connect opens PostgreSQL and Redis.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, *redis.Client, error) {
	logger.Info("connecting to PostgreSQL")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}

	logger.Info("connecting to Redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return pool, rdb, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	pool, rdb, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, pool: pool, rdb: rdb, store: store.New(pool)}
	a.closers = append(a.closers, rdb.Close, func() error { pool.Close(); return nil })

	notifier, err := a.notifier()
	if err != nil {
		a.close()
		return nil, err
	}

	var bids bidding.BidStatsSource = a.store
	if cfg.MarketCacheTTL > 0 {
		bids = bidding.NewCachedBidStats(rdb, a.store, cfg.MarketCacheTTL, logger)
	}

	a.orch = automation.New(
		a.store,
		a.registry(),
		writer.Template{},
		bidding.NewCalculator(bidding.NewHistoricalMarketData(bids)),
		notifier,
		logger,
		automation.Config{
			Interval:           cfg.CycleInterval,
			MaxMatchesPerCycle: cfg.MaxMatchesPerCycle,
			Location:           cfg.Location,
		},
	)
	return a, nil
}

// registry registers simulated marketplaces first so a configured feed with
// the same name replaces its simulation.
func (a *app) registry() *platform.Registry {
	reg := platform.NewRegistry(a.cfg.AdapterTimeout)
	for _, name := range a.cfg.SimulatedPlatforms {
		reg.Register(platform.NewSimulated(name))
	}
	for name, baseURL := range a.cfg.PlatformFeeds {
		reg.Register(platform.NewFeed(name, baseURL, a.cfg.PlatformFeedKeys[name]))
	}
	a.logger.Info("platform adapters registered", "platforms", reg.Names())
	return reg
}

func (a *app) notifier() (automation.Notifier, error) {
	switch a.cfg.NotifierBackend {
	case config.NotifierKafka:
		k, err := notify.NewKafka(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka notifier: %w", err)
		}
		a.closers = append(a.closers, k.Close)
		return k, nil
	case config.NotifierLog:
		return notify.NewLog(a.logger), nil
	default:
		return notify.NewRedis(a.rdb), nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "err", err)
		}
	}
}

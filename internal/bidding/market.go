package bidding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/proposal-service/internal/matching"
	"jobmate/proposal-service/internal/model"
)

// minHistorySamples is the number of stored bids needed before history is
// trusted over the budget-derived estimate.
const minHistorySamples = 3

// BidStatsSource aggregates stored bids on postings that share skills with
// the given set. CompetitorCount carries the number of samples.
type BidStatsSource interface {
	BidStats(ctx context.Context, skills []string, budgetType model.BudgetType) (MarketStats, error)
}

// HistoricalMarketData derives competitor statistics from stored proposals.
type HistoricalMarketData struct {
	bids BidStatsSource
}

// NewHistoricalMarketData returns a provider reading from bids.
func NewHistoricalMarketData(bids BidStatsSource) *HistoricalMarketData {
	return &HistoricalMarketData{bids: bids}
}

// CompetitorBids implements MarketDataProvider. With too little history the
// posting's own budget is used instead.
func (h *HistoricalMarketData) CompetitorBids(ctx context.Context, opp model.Opportunity) (MarketStats, error) {
	stats, err := h.bids.BidStats(ctx, opp.Skills, opp.BudgetType)
	if err != nil {
		return MarketStats{}, err
	}
	if stats.CompetitorCount < minHistorySamples {
		return EstimateFromBudget(opp), nil
	}
	if opp.ProposalCount > 0 {
		stats.CompetitorCount = opp.ProposalCount
	}
	return stats, nil
}

// EstimateFromBudget spreads ±30% around the posted budget.
func EstimateFromBudget(opp model.Opportunity) MarketStats {
	stats := MarketStats{CompetitorCount: opp.ProposalCount}
	amount, ok := matching.ParseBudget(opp.Budget)
	if !ok || amount <= 0 {
		return stats
	}
	stats.Average = amount
	stats.Min = amount * 0.7
	stats.Max = amount * 1.3
	return stats
}

// CachedBidStats memoises a BidStatsSource in Redis. Redis failures are logged
// and the underlying source is queried directly.
type CachedBidStats struct {
	rdb    *redis.Client
	inner  BidStatsSource
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedBidStats wraps inner with a Redis cache entry per skill set.
func NewCachedBidStats(rdb *redis.Client, inner BidStatsSource, ttl time.Duration, logger *slog.Logger) *CachedBidStats {
	return &CachedBidStats{rdb: rdb, inner: inner, ttl: ttl, logger: logger}
}

// BidStats implements BidStatsSource.
func (c *CachedBidStats) BidStats(ctx context.Context, skills []string, budgetType model.BudgetType) (MarketStats, error) {
	key := CacheKey(skills, budgetType)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var stats MarketStats
		if jsonErr := json.Unmarshal(raw, &stats); jsonErr == nil {
			return stats, nil
		}
		c.logger.Warn("discarding corrupt market cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("market cache read failed", "key", key, "error", err)
	}

	stats, err := c.inner.BidStats(ctx, skills, budgetType)
	if err != nil {
		return MarketStats{}, err
	}

	if data, err := json.Marshal(stats); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("market cache write failed", "key", key, "error", err)
		}
	}
	return stats, nil
}

// CacheKey is independent of skill order and case.
func CacheKey(skills []string, budgetType model.BudgetType) string {
	norm := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			norm = append(norm, s)
		}
	}
	slices.Sort(norm)
	norm = slices.Compact(norm)
	return fmt.Sprintf("market:bids:%s:%s", budgetType, strings.Join(norm, ","))
}

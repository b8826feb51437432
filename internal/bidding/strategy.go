// Package bidding recommends a bid amount and strategy for an opportunity.
//
// The calculator is read-only: it consults the profile, the user's proposal
// history and an injected MarketDataProvider, and never writes state.
package bidding

import (
	"context"
	"fmt"
	"math"

	"jobmate/proposal-service/internal/matching"
	"jobmate/proposal-service/internal/model"
)

// MarketStats describes the competitor-bid distribution for an opportunity.
type MarketStats struct {
	Average         float64 `json:"average"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
	CompetitorCount int     `json:"competitorCount"`
}

// MarketDataProvider supplies competitor-bid statistics.
type MarketDataProvider interface {
	CompetitorBids(ctx context.Context, opp model.Opportunity) (MarketStats, error)
}

const (
	premiumStrength    = 85.0
	aggressiveStrength = 50.0
	premiumFactor      = 1.10
	aggressiveFactor   = 0.85

	fewCompetitors       = 5
	manyCompetitors      = 15
	fewCompetitorsFactor = 1.05
	crowdedFactor        = 0.95

	highWinRate       = 40.0
	lowWinRate        = 20.0
	highWinRateFactor = 1.02
	lowWinRateFactor  = 0.92
	neutralWinRate    = 25.0

	matchBand     = 0.10
	maxConfidence = 95.0
	rangeBand     = 0.30
)

var experienceScores = map[model.ExperienceLevel]float64{
	model.ExperienceExpert:       90,
	model.ExperienceIntermediate: 70,
	model.ExperienceBeginner:     50,
}

// Calculator computes BidStrategy values.
type Calculator struct {
	market MarketDataProvider
}

// NewCalculator returns a Calculator backed by market.
func NewCalculator(market MarketDataProvider) *Calculator {
	return &Calculator{market: market}
}

// Calculate recommends a bid for opp. history may be nil.
func (c *Calculator) Calculate(ctx context.Context, opp model.Opportunity, profile model.FreelancerProfile, history *model.ProposalHistory) (model.BidStrategy, error) {
	stats, err := c.market.CompetitorBids(ctx, opp)
	if err != nil {
		return model.BidStrategy{}, fmt.Errorf("market data: %w", err)
	}

	var reasoning []string
	amount := baseAmount(opp, profile, stats)
	reasoning = append(reasoning, fmt.Sprintf("base amount %.0f from project budget", amount))

	strength := ProfileStrength(opp, profile)
	strategy := model.StrategyCompetitive
	switch {
	case strength > premiumStrength:
		amount *= premiumFactor
		strategy = model.StrategyPremium
		reasoning = append(reasoning, fmt.Sprintf("strong profile (%.0f): +10%%", strength))
	case strength < aggressiveStrength:
		amount *= aggressiveFactor
		strategy = model.StrategyAggressive
		reasoning = append(reasoning, fmt.Sprintf("weak profile fit (%.0f): -15%%", strength))
	}

	switch {
	case stats.CompetitorCount < fewCompetitors:
		amount *= fewCompetitorsFactor
		reasoning = append(reasoning, fmt.Sprintf("%d competitors: +5%%", stats.CompetitorCount))
	case stats.CompetitorCount > manyCompetitors:
		amount *= crowdedFactor
		if strategy != model.StrategyPremium {
			strategy = model.StrategyAggressive
		}
		reasoning = append(reasoning, fmt.Sprintf("%d competitors: -5%%", stats.CompetitorCount))
	}

	winRate := neutralWinRate
	if history != nil {
		if wr, ok := history.WinRate(); ok {
			winRate = wr
		}
	}
	switch {
	case winRate > highWinRate:
		amount *= highWinRateFactor
		reasoning = append(reasoning, fmt.Sprintf("win rate %.0f%%: +2%%", winRate))
	case winRate < lowWinRate:
		amount *= lowWinRateFactor
		reasoning = append(reasoning, fmt.Sprintf("win rate %.0f%%: -8%%", winRate))
	}

	amount = math.Round(amount)
	position := MarketPosition(amount, stats.Average)
	if strategy == model.StrategyCompetitive && position == model.PositionUndercut {
		strategy = model.StrategyValue
	}
	reasoning = append(reasoning, fmt.Sprintf("%s market average of %.0f", position, stats.Average))

	competition := CompetitionLevel(stats.CompetitorCount)
	confidence := math.Min(maxConfidence, strength*0.4+winRate*0.3+(100-competition)*0.3)

	return model.BidStrategy{
		RecommendedAmount:  amount,
		Confidence:         confidence,
		Strategy:           strategy,
		MarketPosition:     position,
		SuccessProbability: SuccessProbability(amount, stats, strength, winRate),
		Reasoning:          reasoning,
	}, nil
}

// ProfileStrength weighs skill match (40%), experience (35%) and portfolio (25%).
// A posting that lists no skills gets the same neutral skill score as matching.
func ProfileStrength(opp model.Opportunity, profile model.FreelancerProfile) float64 {
	skill := matching.SkillOverlap(opp.Skills, profile.Skills)
	experience := experienceScores[matching.ExperienceTier(profile.Experience)]
	portfolio := 40.0
	if profile.HasPortfolio {
		portfolio = 80
	}
	return skill*0.4 + experience*0.35 + portfolio*0.25
}

// MarketPosition compares amount with the competitor average (±10% = match).
func MarketPosition(amount, average float64) string {
	if average <= 0 {
		return model.PositionMatch
	}
	switch {
	case amount < average*(1-matchBand):
		return model.PositionUndercut
	case amount > average*(1+matchBand):
		return model.PositionPremium
	default:
		return model.PositionMatch
	}
}

// CompetitionLevel maps a competitor count onto 0-100.
func CompetitionLevel(competitors int) float64 {
	return math.Min(100, float64(competitors)*5)
}

// SuccessProbability estimates the chance the bid wins, clamped to [5, 95].
func SuccessProbability(amount float64, stats MarketStats, strength, winRate float64) float64 {
	p := 50.0
	if spread := stats.Max - stats.Min; spread > 0 {
		switch {
		case amount <= stats.Min+rangeBand*spread:
			p += 20
		case amount >= stats.Max-rangeBand*spread:
			p -= 15
		}
	}
	p += (strength - 50) * 0.3
	p += (winRate - 25) * 0.2
	return math.Max(5, math.Min(95, p))
}

func baseAmount(opp model.Opportunity, profile model.FreelancerProfile, stats MarketStats) float64 {
	if amount, ok := matching.ParseBudget(opp.Budget); ok && amount > 0 {
		return amount
	}
	if stats.Average > 0 {
		return stats.Average
	}
	if opp.BudgetType == model.BudgetHourly {
		return profile.HourlyRate
	}
	return profile.HourlyRate * 40
}

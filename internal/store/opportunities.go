package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"jobmate/proposal-service/internal/bidding"
	"jobmate/proposal-service/internal/model"
)

const opportunityColumns = `o.id::text, o.platform, o.platform_opportunity_id, o.title, o.description,
	o.budget, o.budget_type, o.skills, o.client_rating, o.proposal_count, o.deadline,
	o.url, o.status, uo.match_score, uo.discovered_at`

func scanOpportunity(row pgx.Row) (model.Opportunity, error) {
	var o model.Opportunity
	err := row.Scan(
		&o.ID, &o.Platform, &o.PlatformOpportunityID, &o.Title, &o.Description,
		&o.Budget, &o.BudgetType, &o.Skills, &o.ClientRating, &o.ProposalCount, &o.Deadline,
		&o.URL, &o.Status, &o.MatchScore, &o.CreatedAt,
	)
	return o, err
}

// SeenOpportunity returns the opportunity keyed by (platform, platformOppID)
// with userID's stored score, and false when userID has not seen it yet.
func (s *Postgres) SeenOpportunity(ctx context.Context, userID, platform, platformOppID string) (model.Opportunity, bool, error) {
	o, err := scanOpportunity(s.pool.QueryRow(ctx,
		`SELECT `+opportunityColumns+`
		 FROM opportunities o
		 JOIN user_opportunities uo ON uo.opportunity_id = o.id AND uo.user_id = $1
		 WHERE o.platform = $2 AND o.platform_opportunity_id = $3`,
		userID, platform, platformOppID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Opportunity{}, false, nil
		}
		return model.Opportunity{}, false, fmt.Errorf("seenOpportunity: %w", err)
	}
	return o, true, nil
}

// RecordOpportunity upserts the posting and records userID's sighting with
// score. created is false when userID had already recorded it.
func (s *Postgres) RecordOpportunity(ctx context.Context, userID string, snap model.OpportunitySnapshot, score float64) (opp model.Opportunity, created bool, err error) {
	opp = model.Opportunity{OpportunitySnapshot: snap, MatchScore: score}
	err = s.pool.QueryRow(ctx,
		`WITH opp AS (
		   INSERT INTO opportunities (id, platform, platform_opportunity_id, title, description,
		                              budget, budget_type, skills, client_rating, proposal_count,
		                              deadline, url, status)
		   VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		   ON CONFLICT (platform, platform_opportunity_id) DO UPDATE
		   SET title          = EXCLUDED.title,
		       description    = EXCLUDED.description,
		       budget         = EXCLUDED.budget,
		       proposal_count = EXCLUDED.proposal_count,
		       status         = EXCLUDED.status,
		       updated_at     = NOW()
		   RETURNING id
		 ), seen AS (
		   INSERT INTO user_opportunities (user_id, opportunity_id, match_score)
		   SELECT $14::text, opp.id, $15::double precision FROM opp
		   ON CONFLICT (user_id, opportunity_id) DO NOTHING
		   RETURNING opportunity_id, discovered_at
		 )
		 SELECT opp.id::text, seen.discovered_at IS NOT NULL, COALESCE(seen.discovered_at, NOW())
		 FROM opp LEFT JOIN seen ON seen.opportunity_id = opp.id`,
		uuid.NewString(), snap.Platform, snap.PlatformOpportunityID, snap.Title, snap.Description,
		snap.Budget, string(snap.BudgetType), nonNil(snap.Skills), snap.ClientRating, snap.ProposalCount,
		snap.Deadline, snap.URL, string(snap.Status),
		userID, score,
	).Scan(&opp.ID, &created, &opp.CreatedAt)
	if err != nil {
		return model.Opportunity{}, false, fmt.Errorf("recordOpportunity: %w", err)
	}
	return opp, created, nil
}

// RefreshOpportunity records the latest marketplace status and proposal count
// of a stored posting.
func (s *Postgres) RefreshOpportunity(ctx context.Context, platform, platformOppID string, status model.OpportunityStatus, proposalCount int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE opportunities
		 SET status = $3, proposal_count = $4, updated_at = NOW()
		 WHERE platform = $1 AND platform_opportunity_id = $2`,
		platform, platformOppID, string(status), proposalCount,
	)
	if err != nil {
		return fmt.Errorf("refreshOpportunity: %w", err)
	}
	return nil
}

// GetOpportunity returns an opportunity userID has seen.
func (s *Postgres) GetOpportunity(ctx context.Context, userID, opportunityID string) (model.Opportunity, error) {
	if _, err := uuid.Parse(opportunityID); err != nil {
		return model.Opportunity{}, ErrNotFound
	}
	o, err := scanOpportunity(s.pool.QueryRow(ctx,
		`SELECT `+opportunityColumns+`
		 FROM opportunities o
		 JOIN user_opportunities uo ON uo.opportunity_id = o.id AND uo.user_id = $1
		 WHERE o.id = $2::uuid`,
		userID, opportunityID,
	))
	if err != nil {
		return model.Opportunity{}, fmt.Errorf("getOpportunity: %w", notFound(err))
	}
	return o, nil
}

// OpportunityFilter narrows ListOpportunities.
type OpportunityFilter struct {
	Status   model.OpportunityStatus
	MinScore float64
	Limit    uint64
}

const defaultListLimit = 50

func opportunityListQuery(userID string, f OpportunityFilter) sq.SelectBuilder {
	q := psql.Select(opportunityColumns).
		From("opportunities o").
		Join("user_opportunities uo ON uo.opportunity_id = o.id").
		Where(sq.Eq{"uo.user_id": userID}).
		OrderBy("uo.match_score DESC", "uo.discovered_at DESC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"o.status": string(f.Status)})
	}
	if f.MinScore > 0 {
		q = q.Where(sq.GtOrEq{"uo.match_score": f.MinScore})
	}
	limit := f.Limit
	if limit == 0 {
		limit = defaultListLimit
	}
	return q.Limit(limit)
}

// ListOpportunities returns userID's opportunities, best match first.
func (s *Postgres) ListOpportunities(ctx context.Context, userID string, f OpportunityFilter) ([]model.Opportunity, error) {
	query, args, err := opportunityListQuery(userID, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("listOpportunities build: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listOpportunities query: %w", err)
	}
	defer rows.Close()

	opps := make([]model.Opportunity, 0)
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("listOpportunities scan: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// BidStats aggregates non-failed bids on postings sharing a skill with skills.
func (s *Postgres) BidStats(ctx context.Context, skills []string, budgetType model.BudgetType) (bidding.MarketStats, error) {
	lower := make([]string, 0, len(skills))
	for _, sk := range skills {
		if sk = strings.ToLower(strings.TrimSpace(sk)); sk != "" {
			lower = append(lower, sk)
		}
	}

	var stats bidding.MarketStats
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(p.bid_amount), 0), COALESCE(MIN(p.bid_amount), 0),
		        COALESCE(MAX(p.bid_amount), 0), COUNT(*)
		 FROM proposals p
		 JOIN opportunities o ON o.id = p.opportunity_id
		 WHERE p.status <> 'failed'
		   AND p.bid_amount > 0
		   AND o.budget_type = $1
		   AND EXISTS (SELECT 1 FROM unnest(o.skills) sk WHERE lower(sk) = ANY($2::text[]))`,
		string(budgetType), lower,
	).Scan(&stats.Average, &stats.Min, &stats.Max, &stats.CompetitorCount)
	if err != nil {
		return bidding.MarketStats{}, fmt.Errorf("bidStats: %w", err)
	}
	return stats, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

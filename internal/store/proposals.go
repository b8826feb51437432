package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"jobmate/proposal-service/internal/model"
)

const proposalColumns = `id::text, user_id, opportunity_id::text, platform, content, bid_amount,
	timeline, is_auto_generated, status, external_id, failure_reason, created_at, updated_at`

func scanProposal(row pgx.Row) (model.Proposal, error) {
	var p model.Proposal
	err := row.Scan(
		&p.ID, &p.UserID, &p.OpportunityID, &p.Platform, &p.Content, &p.BidAmount,
		&p.Timeline, &p.IsAutoGenerated, &p.Status, &p.ExternalID, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// CountAutoProposals counts userID's auto-generated proposals created in [from, to).
func (s *Postgres) CountAutoProposals(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM proposals
		 WHERE user_id = $1 AND is_auto_generated
		   AND created_at >= $2 AND created_at < $3`,
		userID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("countAutoProposals: %w", err)
	}
	return n, nil
}

// HasLiveProposal reports whether userID has a non-failed proposal on opportunityID.
func (s *Postgres) HasLiveProposal(ctx context.Context, userID, opportunityID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM proposals
		   WHERE user_id = $1 AND opportunity_id = $2::uuid AND status <> 'failed'
		 )`,
		userID, opportunityID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("hasLiveProposal: %w", err)
	}
	return exists, nil
}

// InsertProposal stores p as pending. Auto-generated proposals are only
// inserted while userID has fewer than limit of them in [dayStart, dayEnd);
// otherwise ErrQuotaExceeded is returned and nothing is written.
func (s *Postgres) InsertProposal(ctx context.Context, p model.Proposal, limit int, dayStart, dayEnd time.Time) (model.Proposal, error) {
	const insert = `
		INSERT INTO proposals (id, user_id, opportunity_id, platform, content, bid_amount,
		                       timeline, is_auto_generated, status)
		SELECT $1::uuid, $2::text, $3::uuid, $4::text, $5::text, $6::double precision,
		       $7::text, $8::boolean, 'pending'`

	args := []any{p.ID, p.UserID, p.OpportunityID, p.Platform, p.Content, p.BidAmount, p.Timeline, p.IsAutoGenerated}
	query := insert
	if p.IsAutoGenerated {
		query += `
		WHERE (SELECT COUNT(*) FROM proposals
		       WHERE user_id = $2 AND is_auto_generated
		         AND created_at >= $9::timestamptz AND created_at < $10::timestamptz) < $11`
		args = append(args, dayStart, dayEnd, limit)
	}
	query += ` RETURNING ` + proposalColumns

	out, err := scanProposal(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if p.IsAutoGenerated && errors.Is(err, pgx.ErrNoRows) {
			return model.Proposal{}, ErrQuotaExceeded
		}
		return model.Proposal{}, fmt.Errorf("insertProposal: %w", err)
	}
	return out, nil
}

// UpdateProposalOutcome records the result of a submission attempt.
func (s *Postgres) UpdateProposalOutcome(ctx context.Context, id string, status model.SubmissionStatus, externalID, failureReason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE proposals
		 SET status = $1, external_id = $2, failure_reason = $3, updated_at = NOW()
		 WHERE id = $4::uuid`,
		string(status), externalID, failureReason, id,
	)
	if err != nil {
		return fmt.Errorf("updateProposalOutcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetProposalStatus changes the status of a submitted proposal.
func (s *Postgres) SetProposalStatus(ctx context.Context, id string, status model.SubmissionStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE proposals SET status = $1, updated_at = NOW()
		 WHERE id = $2::uuid AND status <> $1`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("setProposalStatus: %w", err)
	}
	return nil
}

// PendingProposals lists userID's submitted proposals awaiting a decision.
func (s *Postgres) PendingProposals(ctx context.Context, userID string) ([]model.Proposal, error) {
	return s.ListProposals(ctx, userID, ProposalFilter{Status: model.SubmissionPending, SubmittedOnly: true})
}

// ProposalHistory summarises userID's submitted proposals.
func (s *Postgres) ProposalHistory(ctx context.Context, userID string) (model.ProposalHistory, error) {
	var h model.ProposalHistory
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status <> 'failed'),
		        COUNT(*) FILTER (WHERE status = 'accepted'),
		        COUNT(*) FILTER (WHERE status = 'rejected')
		 FROM proposals WHERE user_id = $1`,
		userID,
	).Scan(&h.Submitted, &h.Accepted, &h.Rejected)
	if err != nil {
		return model.ProposalHistory{}, fmt.Errorf("proposalHistory: %w", err)
	}
	return h, nil
}

// ProposalFilter narrows ListProposals.
type ProposalFilter struct {
	Status        model.SubmissionStatus
	AutoOnly      bool
	SubmittedOnly bool // only rows that reached the marketplace
	Limit         uint64
}

func proposalListQuery(userID string, f ProposalFilter) sq.SelectBuilder {
	q := psql.Select(proposalColumns).
		From("proposals").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.AutoOnly {
		q = q.Where("is_auto_generated")
	}
	if f.SubmittedOnly {
		q = q.Where(sq.NotEq{"external_id": ""})
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}

// ListProposals returns userID's proposals, newest first.
func (s *Postgres) ListProposals(ctx context.Context, userID string, f ProposalFilter) ([]model.Proposal, error) {
	query, args, err := proposalListQuery(userID, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("listProposals build: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listProposals query: %w", err)
	}
	defer rows.Close()

	proposals := make([]model.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("listProposals scan: %w", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

package store

import (
	"context"
	"fmt"

	"jobmate/proposal-service/internal/model"
)

// GetProfile loads the freelancer profile of userID.
func (s *Postgres) GetProfile(ctx context.Context, userID string) (model.FreelancerProfile, error) {
	p := model.FreelancerProfile{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT skills, experience, hourly_rate, has_portfolio
		 FROM freelancer_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.Skills, &p.Experience, &p.HourlyRate, &p.HasPortfolio)
	if err != nil {
		return model.FreelancerProfile{}, fmt.Errorf("getProfile: %w", notFound(err))
	}
	return p, nil
}

// GetPolicy loads the automation policy of userID.
func (s *Postgres) GetPolicy(ctx context.Context, userID string) (model.AutomationPolicy, error) {
	p := model.AutomationPolicy{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT auto_search, auto_proposal, preferred_skills, exclude_keywords, project_types,
		        min_budget, max_budget, max_proposals_per_day, instructions
		 FROM automation_policies WHERE user_id = $1`,
		userID,
	).Scan(
		&p.AutoSearch, &p.AutoProposal, &p.PreferredSkills, &p.ExcludeKeywords, &p.ProjectTypes,
		&p.MinBudget, &p.MaxBudget, &p.MaxProposalsPerDay, &p.Instructions,
	)
	if err != nil {
		return model.AutomationPolicy{}, fmt.Errorf("getPolicy: %w", notFound(err))
	}
	return p, nil
}

// ListAutomatedUsers returns every user whose policy enables auto search.
func (s *Postgres) ListAutomatedUsers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM automation_policies WHERE auto_search ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listAutomatedUsers query: %w", err)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("listAutomatedUsers scan: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ActivePlatforms lists the marketplaces userID is connected to.
func (s *Postgres) ActivePlatforms(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT platform FROM platform_connections
		 WHERE user_id = $1 AND is_active
		 ORDER BY platform`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("activePlatforms query: %w", err)
	}
	defer rows.Close()

	platforms := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("activePlatforms scan: %w", err)
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

// DeactivateConnection disables userID's connection to platform.
func (s *Postgres) DeactivateConnection(ctx context.Context, userID, platform, reason string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE platform_connections
		 SET is_active = FALSE, deactivated_reason = $1, updated_at = NOW()
		 WHERE user_id = $2 AND lower(platform) = lower($3)`,
		reason, userID, platform,
	)
	if err != nil {
		return fmt.Errorf("deactivateConnection: %w", err)
	}
	return nil
}

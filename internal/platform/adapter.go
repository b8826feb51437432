// Package platform defines the capability surface every marketplace
// integration provides and the registry the orchestrator selects them from.
package platform

import (
	"context"

	"jobmate/proposal-service/internal/model"
)

// SearchCriteria narrows a marketplace search.
type SearchCriteria struct {
	Skills    []string
	MinBudget float64
	MaxBudget float64 // 0 = unbounded
}

// Submission is a proposal handed to a marketplace.
type Submission struct {
	ProposalID            string
	PlatformOpportunityID string
	Content               string
	BidAmount             float64
	Timeline              string
}

// SubmissionOutcome is the marketplace's answer to a submission.
type SubmissionOutcome struct {
	SubmissionID string
	Status       model.SubmissionStatus
}

// Adapter is implemented by every marketplace integration. Implementations
// report failures as *TransientError, *AuthError or *ConfigurationError.
type Adapter interface {
	Name() string
	SearchOpportunities(ctx context.Context, criteria SearchCriteria) ([]model.OpportunitySnapshot, error)
	SubmitProposal(ctx context.Context, sub Submission) (SubmissionOutcome, error)
	GetSubmissionStatus(ctx context.Context, submissionID string) (model.SubmissionStatus, error)
	ValidateCredentials(ctx context.Context) (bool, error)
}

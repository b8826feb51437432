package automation

import (
	"context"
	"time"

	"jobmate/proposal-service/internal/model"
	"jobmate/proposal-service/internal/platform"
	"jobmate/proposal-service/internal/writer"
)

// Store is the persistence the orchestrator depends on.
type Store interface {
	GetProfile(ctx context.Context, userID string) (model.FreelancerProfile, error)
	GetPolicy(ctx context.Context, userID string) (model.AutomationPolicy, error)
	ListAutomatedUsers(ctx context.Context) ([]string, error)
	ActivePlatforms(ctx context.Context, userID string) ([]string, error)
	DeactivateConnection(ctx context.Context, userID, platform, reason string) error

	SeenOpportunity(ctx context.Context, userID, platform, platformOppID string) (model.Opportunity, bool, error)
	RecordOpportunity(ctx context.Context, userID string, snap model.OpportunitySnapshot, score float64) (model.Opportunity, bool, error)
	RefreshOpportunity(ctx context.Context, platform, platformOppID string, status model.OpportunityStatus, proposalCount int) error
	GetOpportunity(ctx context.Context, userID, opportunityID string) (model.Opportunity, error)

	CountAutoProposals(ctx context.Context, userID string, from, to time.Time) (int, error)
	HasLiveProposal(ctx context.Context, userID, opportunityID string) (bool, error)
	InsertProposal(ctx context.Context, p model.Proposal, limit int, dayStart, dayEnd time.Time) (model.Proposal, error)
	UpdateProposalOutcome(ctx context.Context, id string, status model.SubmissionStatus, externalID, failureReason string) error
	SetProposalStatus(ctx context.Context, id string, status model.SubmissionStatus) error
	PendingProposals(ctx context.Context, userID string) ([]model.Proposal, error)
	ProposalHistory(ctx context.Context, userID string) (model.ProposalHistory, error)
}

// Adapters resolves a platform name to its adapter.
type Adapters interface {
	Get(name string) (platform.Adapter, error)
}

// ProposalWriter drafts proposal content.
type ProposalWriter interface {
	Generate(ctx context.Context, opp model.Opportunity, profile model.FreelancerProfile, instructions string) (writer.Draft, error)
}

// BidCalculator recommends a bid.
type BidCalculator interface {
	Calculate(ctx context.Context, opp model.Opportunity, profile model.FreelancerProfile, history *model.ProposalHistory) (model.BidStrategy, error)
}

// Notifier delivers user notifications.
type Notifier interface {
	Notify(ctx context.Context, userID string, n model.Notification) error
}

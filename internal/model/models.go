// Package model defines shared data structures for the proposal service.
package model

import "time"

// ExperienceLevel is the normalised experience tier of a freelancer.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceExpert       ExperienceLevel = "expert"
)

// BudgetType values mirror the opportunities.budget_type column.
type BudgetType string

const (
	BudgetFixed  BudgetType = "fixed"
	BudgetHourly BudgetType = "hourly"
)

// OpportunityStatus values mirror the opportunities.status column.
type OpportunityStatus string

const (
	OpportunityOpen   OpportunityStatus = "open"
	OpportunityClosed OpportunityStatus = "closed"
)

// SubmissionStatus values mirror the proposals.status column.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionRejected SubmissionStatus = "rejected"
	SubmissionFailed   SubmissionStatus = "failed"
)

// IsFinal reports whether no further polling is needed for the status.
func (s SubmissionStatus) IsFinal() bool {
	return s == SubmissionAccepted || s == SubmissionRejected || s == SubmissionFailed
}

// FreelancerProfile mirrors the freelancer_profiles row. Read-only to the engine.
type FreelancerProfile struct {
	UserID       string   `json:"userId" validate:"required"`
	Skills       []string `json:"skills" validate:"dive,required"`
	Experience   string   `json:"experience"` // free text, see matching.ExperienceTier
	HourlyRate   float64  `json:"hourlyRate" validate:"gte=0"`
	HasPortfolio bool     `json:"hasPortfolio"`
}

// AutomationPolicy mirrors the automation_policies row (one per user).
// A zero MaxBudget means the range has no upper bound.
type AutomationPolicy struct {
	UserID             string   `json:"userId" validate:"required"`
	AutoSearch         bool     `json:"autoSearch"`
	AutoProposal       bool     `json:"autoProposal"`
	PreferredSkills    []string `json:"preferredSkills" validate:"dive,required"`
	ExcludeKeywords    []string `json:"excludeKeywords" validate:"dive,required"`
	ProjectTypes       []string `json:"projectTypes" validate:"dive,required"`
	MinBudget          float64  `json:"minBudget" validate:"gte=0"`
	MaxBudget          float64  `json:"maxBudget" validate:"omitempty,gtefield=MinBudget"`
	MaxProposalsPerDay int      `json:"maxProposalsPerDay" validate:"min=1"`
	Instructions       string   `json:"instructions" validate:"max=4000"`
}

// OpportunitySnapshot is a normalised posting as returned by a platform adapter.
type OpportunitySnapshot struct {
	Platform              string            `json:"platform"`
	PlatformOpportunityID string            `json:"platformOpportunityId"`
	Title                 string            `json:"title"`
	Description           string            `json:"description"`
	Budget                string            `json:"budget"`
	BudgetType            BudgetType        `json:"budgetType"`
	Skills                []string          `json:"skills"`
	ClientRating          *float64          `json:"clientRating,omitempty"`
	ProposalCount         int               `json:"proposalCount,omitempty"`
	Deadline              *time.Time        `json:"deadline,omitempty"`
	URL                   string            `json:"url,omitempty"`
	Status                OpportunityStatus `json:"status"`
}

// Opportunity is a persisted posting, unique on (Platform, PlatformOpportunityID).
type Opportunity struct {
	ID string `json:"id"`
	OpportunitySnapshot
	MatchScore float64   `json:"matchScore"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MatchResult is recomputed every cycle; only MatchScore is persisted.
type MatchResult struct {
	MatchScore        float64  `json:"matchScore"`
	Reasons           []string `json:"reasons"`
	CompetitionLevel  string   `json:"competitionLevel"`
	SuccessPrediction float64  `json:"successPrediction"`
}

// Bid strategy tags.
const (
	StrategyCompetitive = "competitive"
	StrategyPremium     = "premium"
	StrategyValue       = "value"
	StrategyAggressive  = "aggressive"
)

// Market positions relative to the competitor average.
const (
	PositionUndercut = "undercut"
	PositionMatch    = "match"
	PositionPremium  = "premium"
)

// BidStrategy is produced on demand and never persisted.
type BidStrategy struct {
	RecommendedAmount  float64  `json:"recommendedAmount"`
	Confidence         float64  `json:"confidence"`
	Strategy           string   `json:"strategy"`
	MarketPosition     string   `json:"marketPosition"`
	SuccessProbability float64  `json:"successProbability"`
	Reasoning          []string `json:"reasoning"`
}

// ProposalHistory summarises a user's past submissions for win-rate purposes.
type ProposalHistory struct {
	Submitted int `json:"submitted"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
}

// WinRate returns accepted/(accepted+rejected) in percent and false when no
// proposal has been decided yet.
func (h ProposalHistory) WinRate() (float64, bool) {
	decided := h.Accepted + h.Rejected
	if decided == 0 {
		return 0, false
	}
	return float64(h.Accepted) / float64(decided) * 100, true
}

// Proposal mirrors the proposals row.
type Proposal struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	OpportunityID   string           `json:"opportunityId"`
	Platform        string           `json:"platform"`
	Content         string           `json:"content"`
	BidAmount       float64          `json:"bidAmount"`
	Timeline        string           `json:"timeline"`
	IsAutoGenerated bool             `json:"isAutoGenerated"`
	Status          SubmissionStatus `json:"status"`
	ExternalID      string           `json:"externalId,omitempty"`
	FailureReason   string           `json:"failureReason,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Notification types emitted by the engine.
const (
	NotificationDiscovery       = "opportunity_discovery"
	NotificationHighMatch       = "high_match"
	NotificationProposalSent    = "proposal_submitted"
	NotificationProposalFailed  = "proposal_failed"
	NotificationConnectionError = "connection_error"
	NotificationProposalUpdate  = "proposal_status"
)

// Notification is the payload handed to the Notifier.
type Notification struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data,omitempty"`
}

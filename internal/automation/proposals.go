package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"jobmate/proposal-service/internal/model"
	"jobmate/proposal-service/internal/store"
)

// ManualProposal is a user-written proposal.
type ManualProposal struct {
	Content   string  `json:"content" validate:"required"`
	BidAmount float64 `json:"bidAmount" validate:"gt=0"`
	Timeline  string  `json:"timeline"`
}

// RecommendBid computes a bid strategy for an opportunity userID discovered.
func (o *Orchestrator) RecommendBid(ctx context.Context, userID, opportunityID string) (model.BidStrategy, error) {
	opp, err := o.opportunity(ctx, userID, opportunityID)
	if err != nil {
		return model.BidStrategy{}, err
	}
	profile, err := o.loadProfile(ctx, userID)
	if err != nil {
		return model.BidStrategy{}, err
	}

	var history *model.ProposalHistory
	if h, err := o.store.ProposalHistory(ctx, userID); err != nil {
		o.logger.Warn("proposal history unavailable", "userId", userID, "err", err)
	} else {
		history = &h
	}

	strategy, err := o.bids.Calculate(ctx, opp, profile, history)
	if err != nil {
		return model.BidStrategy{}, fmt.Errorf("calculate bid: %w", err)
	}
	return strategy, nil
}

// SubmitProposal stores and submits a user-written proposal. User-initiated
// proposals do not count against the daily auto quota.
func (o *Orchestrator) SubmitProposal(ctx context.Context, userID, opportunityID string, mp ManualProposal) (model.Proposal, error) {
	mp.Content = strings.TrimSpace(mp.Content)
	if err := model.Validate(mp); err != nil {
		return model.Proposal{}, &ValidationError{Msg: "invalid proposal: " + err.Error()}
	}

	opp, err := o.opportunity(ctx, userID, opportunityID)
	if err != nil {
		return model.Proposal{}, err
	}
	if opp.Status == model.OpportunityClosed {
		return model.Proposal{}, &ValidationError{Msg: "opportunity is closed"}
	}

	adapter, err := o.adapters.Get(opp.Platform)
	if err != nil {
		return model.Proposal{}, fmt.Errorf("resolve adapter: %w", err)
	}

	p, err := o.store.InsertProposal(ctx, model.Proposal{
		ID:            uuid.NewString(),
		UserID:        userID,
		OpportunityID: opp.ID,
		Platform:      opp.Platform,
		Content:       mp.Content,
		BidAmount:     mp.BidAmount,
		Timeline:      mp.Timeline,
	}, 0, o.cfg.Now(), o.cfg.Now())
	if err != nil {
		return model.Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}

	return o.submit(ctx, userID, adapter, p, opp, nil), nil
}

func (o *Orchestrator) opportunity(ctx context.Context, userID, opportunityID string) (model.Opportunity, error) {
	opp, err := o.store.GetOpportunity(ctx, userID, opportunityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Opportunity{}, ErrNotFound
		}
		return model.Opportunity{}, fmt.Errorf("load opportunity: %w", err)
	}
	return opp, nil
}

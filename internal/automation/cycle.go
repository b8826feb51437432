package automation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobmate/proposal-service/internal/matching"
	"jobmate/proposal-service/internal/model"
	"jobmate/proposal-service/internal/platform"
	"jobmate/proposal-service/internal/store"
)

// Thresholds applied after scoring.
const (
	AutoProposalThreshold = 80.0
	HighMatchThreshold    = 70.0
)

// CycleReport summarises one cycle.
type CycleReport struct {
	UserID        string            `json:"userId"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
	Skipped       string            `json:"skipped,omitempty"`
	Platforms     []string          `json:"platforms"`
	AdapterErrors map[string]string `json:"adapterErrors,omitempty"`

	Fetched    int `json:"fetched"`
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
	Excluded   int `json:"excluded"`
	Qualified  int `json:"qualified"`

	ProposalsSubmitted int  `json:"proposalsSubmitted"`
	ProposalsFailed    int  `json:"proposalsFailed"`
	QuotaExhausted     bool `json:"quotaExhausted"`
	StatusUpdates      int  `json:"statusUpdates"`
	Notifications      int  `json:"notifications"`
}

// candidate is an opportunity eligible for downstream processing.
type candidate struct {
	opp model.Opportunity
}

// cycle carries the state of one run for one user.
type cycle struct {
	o       *Orchestrator
	userID  string
	policy  model.AutomationPolicy
	profile model.FreelancerProfile
	report  *CycleReport

	history     *model.ProposalHistory
	deactivated map[string]bool
}

func (o *Orchestrator) runCycle(ctx context.Context, userID string) (*CycleReport, error) {
	report := &CycleReport{UserID: userID, StartedAt: o.cfg.Now()}
	defer func() { report.FinishedAt = o.cfg.Now() }()

	policy, err := o.loadPolicy(ctx, userID)
	if err != nil {
		return report, err
	}
	if !policy.AutoSearch {
		report.Skipped = "auto search disabled"
		return report, nil
	}

	profile, err := o.loadProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			o.logger.Warn("cycle aborted, no profile", "userId", userID)
		}
		return report, err
	}

	c := &cycle{
		o:           o,
		userID:      userID,
		policy:      policy,
		profile:     profile,
		report:      report,
		deactivated: make(map[string]bool),
	}

	c.pollSubmissions(ctx)

	snaps, err := c.search(ctx)
	if err != nil {
		return report, err
	}

	fresh, retries, err := c.triage(ctx, snaps)
	if err != nil {
		return report, err
	}

	qualified, total := c.rank(fresh, retries)
	report.Qualified = total

	if policy.AutoProposal {
		if err := c.propose(ctx, qualified); err != nil {
			return report, err
		}
	}

	c.announce(ctx, fresh)

	o.logger.Info("cycle complete",
		"userId", userID,
		"fetched", report.Fetched,
		"new", report.New,
		"duplicates", report.Duplicates,
		"excluded", report.Excluded,
		"submitted", report.ProposalsSubmitted,
	)
	return report, nil
}

// search queries every active adapter concurrently. Results keep the order
// of the user's connections; adapter failures are isolated.
func (c *cycle) search(ctx context.Context) ([]model.OpportunitySnapshot, error) {
	platforms, err := c.o.store.ActivePlatforms(ctx, c.userID)
	if err != nil {
		return nil, fmt.Errorf("active platforms: %w", err)
	}
	c.report.Platforms = platforms

	criteria := matching.CriteriaFor(c.policy, c.profile)
	sc := platform.SearchCriteria{
		Skills:    criteria.Skills,
		MinBudget: criteria.MinBudget,
		MaxBudget: criteria.MaxBudget,
	}

	results := make([][]model.OpportunitySnapshot, len(platforms))
	errs := make([]error, len(platforms))

	var g errgroup.Group
	for i, name := range platforms {
		g.Go(func() error {
			a, err := c.o.adapters.Get(name)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = a.SearchOpportunities(ctx, sc)
			return nil
		})
	}
	_ = g.Wait()

	var snaps []model.OpportunitySnapshot
	for i, name := range platforms {
		if errs[i] != nil {
			c.adapterFailed(ctx, name, errs[i])
			continue
		}
		snaps = append(snaps, results[i]...)
	}
	c.report.Fetched = len(snaps)
	return snaps, nil
}

// triage splits snapshots into newly recorded opportunities and already seen
// ones that deserve another proposal attempt.
func (c *cycle) triage(ctx context.Context, snaps []model.OpportunitySnapshot) (fresh, retries []candidate, err error) {
	criteria := matching.CriteriaFor(c.policy, c.profile)

	for _, snap := range snaps {
		existing, seen, err := c.o.store.SeenOpportunity(ctx, c.userID, snap.Platform, snap.PlatformOpportunityID)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup opportunity: %w", err)
		}
		if seen {
			c.report.Duplicates++
			c.refresh(ctx, existing, snap)
			if c.retryable(ctx, existing, snap) {
				existing.OpportunitySnapshot = snap
				retries = append(retries, candidate{opp: existing})
			}
			continue
		}

		result := matching.Score(snap, c.profile, criteria)
		if matching.ContainsExcluded(snap.Title, snap.Description, c.policy.ExcludeKeywords) {
			c.report.Excluded++
			continue
		}

		opp, created, err := c.o.store.RecordOpportunity(ctx, c.userID, snap, result.MatchScore)
		if err != nil {
			return nil, nil, fmt.Errorf("record opportunity: %w", err)
		}
		if !created {
			c.report.Duplicates++
			continue
		}
		c.report.New++
		fresh = append(fresh, candidate{opp: opp})
	}
	return fresh, retries, nil
}

// refresh stores marketplace changes to a posting the user has already seen.
func (c *cycle) refresh(ctx context.Context, existing model.Opportunity, snap model.OpportunitySnapshot) {
	if existing.Status == snap.Status && existing.ProposalCount == snap.ProposalCount {
		return
	}
	if err := c.o.store.RefreshOpportunity(ctx, snap.Platform, snap.PlatformOpportunityID, snap.Status, snap.ProposalCount); err != nil {
		c.o.logger.Warn("refresh opportunity failed", "userId", c.userID, "opportunityId", existing.ID, "err", err)
	}
}

// retryable reports whether a previously seen opportunity should get another
// auto proposal: still open, auto-proposal grade, and no live proposal.
func (c *cycle) retryable(ctx context.Context, existing model.Opportunity, snap model.OpportunitySnapshot) bool {
	if !c.policy.AutoProposal || snap.Status != model.OpportunityOpen || existing.MatchScore < AutoProposalThreshold {
		return false
	}
	live, err := c.o.store.HasLiveProposal(ctx, c.userID, existing.ID)
	if err != nil {
		c.o.logger.Warn("live proposal check failed", "userId", c.userID, "opportunityId", existing.ID, "err", err)
		return false
	}
	return !live
}

// rank keeps qualifying candidates, best first, capped per cycle. total is
// the number of qualifying candidates before the cap.
func (c *cycle) rank(fresh, retries []candidate) (ranked []candidate, total int) {
	all := make([]candidate, 0, len(fresh)+len(retries))
	for _, cand := range slices.Concat(fresh, retries) {
		if matching.Qualifies(cand.opp.MatchScore) {
			all = append(all, cand)
		}
	}
	return matching.Rank(all, func(cand candidate) float64 { return cand.opp.MatchScore }, c.o.cfg.MaxMatchesPerCycle), len(all)
}

// propose submits auto proposals for candidates above the threshold until the
// daily quota is reached.
func (c *cycle) propose(ctx context.Context, candidates []candidate) error {
	for _, cand := range candidates {
		if cand.opp.MatchScore < AutoProposalThreshold || cand.opp.Status == model.OpportunityClosed {
			continue
		}
		err := c.autoPropose(ctx, cand.opp)
		var qe *QuotaExceededError
		switch {
		case errors.As(err, &qe):
			c.report.QuotaExhausted = true
			c.o.logger.Info("proposal quota reached", "userId", c.userID, "limit", qe.Limit)
			return nil
		case err != nil:
			return err
		}
	}
	return nil
}

// autoPropose drafts, prices, stores and submits one proposal. Only quota and
// store failures are returned; everything else is a per-opportunity skip.
func (c *cycle) autoPropose(ctx context.Context, opp model.Opportunity) error {
	log := c.o.logger.With("userId", c.userID, "opportunityId", opp.ID, "platform", opp.Platform)

	if c.deactivated[normalize(opp.Platform)] {
		return nil
	}

	dayStart, dayEnd := c.o.quotaWindow()
	limit := c.policy.MaxProposalsPerDay
	count, err := c.o.store.CountAutoProposals(ctx, c.userID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("count proposals: %w", err)
	}
	if count >= limit {
		return &QuotaExceededError{UserID: c.userID, Limit: limit}
	}

	adapter, err := c.o.adapters.Get(opp.Platform)
	if err != nil {
		c.adapterFailed(ctx, opp.Platform, err)
		return nil
	}

	draft, err := c.o.writer.Generate(ctx, opp, c.profile, c.policy.Instructions)
	if err != nil {
		log.Warn("proposal writer failed, skipping", "err", err)
		return nil
	}

	bid := draft.BidAmount
	if c.history == nil {
		h, err := c.o.store.ProposalHistory(ctx, c.userID)
		if err != nil {
			log.Warn("proposal history unavailable", "err", err)
		}
		c.history = &h
	}
	if strategy, err := c.o.bids.Calculate(ctx, opp, c.profile, c.history); err != nil {
		log.Warn("bid strategy unavailable, using drafted bid", "err", err)
	} else if strategy.RecommendedAmount > 0 {
		bid = strategy.RecommendedAmount
	}

	p, err := c.o.store.InsertProposal(ctx, model.Proposal{
		ID:              uuid.NewString(),
		UserID:          c.userID,
		OpportunityID:   opp.ID,
		Platform:        opp.Platform,
		Content:         draft.Content,
		BidAmount:       bid,
		Timeline:        draft.Timeline,
		IsAutoGenerated: true,
	}, limit, dayStart, dayEnd)
	if errors.Is(err, store.ErrQuotaExceeded) {
		return &QuotaExceededError{UserID: c.userID, Limit: limit}
	}
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}

	c.o.submit(ctx, c.userID, adapter, p, opp, c)
	return nil
}

// submit sends a stored proposal to its marketplace and records the outcome.
// c may be nil for user-initiated submissions.
func (o *Orchestrator) submit(ctx context.Context, userID string, adapter platform.Adapter, p model.Proposal, opp model.Opportunity, c *cycle) model.Proposal {
	out, err := adapter.SubmitProposal(ctx, platform.Submission{
		ProposalID:            p.ID,
		PlatformOpportunityID: opp.PlatformOpportunityID,
		Content:               p.Content,
		BidAmount:             p.BidAmount,
		Timeline:              p.Timeline,
	})
	if err != nil {
		p.Status = model.SubmissionFailed
		p.FailureReason = err.Error()
		if uerr := o.store.UpdateProposalOutcome(ctx, p.ID, p.Status, "", p.FailureReason); uerr != nil {
			o.logger.Warn("mark proposal failed", "proposalId", p.ID, "err", uerr)
		}
		sent := o.notify(ctx, userID, model.Notification{
			Title:   "Proposal failed",
			Message: fmt.Sprintf("Your proposal for %q could not be submitted.", opp.Title),
			Type:    model.NotificationProposalFailed,
			Data:    map[string]any{"proposalId": p.ID, "opportunityId": opp.ID, "platform": opp.Platform},
		})
		if c != nil {
			c.report.ProposalsFailed++
			c.counted(sent)
			if platform.DeactivatesConnection(err) {
				c.adapterFailed(ctx, opp.Platform, err)
			}
		} else if platform.DeactivatesConnection(err) {
			o.deactivate(ctx, userID, opp.Platform, err)
		}
		return p
	}

	p.Status = out.Status
	if p.Status == "" {
		p.Status = model.SubmissionPending
	}
	p.ExternalID = out.SubmissionID
	if err := o.store.UpdateProposalOutcome(ctx, p.ID, p.Status, p.ExternalID, ""); err != nil {
		o.logger.Warn("record submission", "proposalId", p.ID, "err", err)
	}
	sent := o.notify(ctx, userID, model.Notification{
		Title:   "Proposal submitted",
		Message: fmt.Sprintf("A proposal of %.0f was submitted for %q.", p.BidAmount, opp.Title),
		Type:    model.NotificationProposalSent,
		Data: map[string]any{
			"proposalId":    p.ID,
			"opportunityId": opp.ID,
			"platform":      opp.Platform,
			"auto":          p.IsAutoGenerated,
		},
	})
	if c != nil {
		c.report.ProposalsSubmitted++
		c.counted(sent)
	}
	return p
}

// announce emits the discovery summary and high-match notifications for
// newly discovered opportunities only. The per-cycle cap does not apply.
func (c *cycle) announce(ctx context.Context, fresh []candidate) {
	if len(fresh) == 0 {
		return
	}
	c.counted(c.o.notify(ctx, c.userID, model.Notification{
		Title:   "New opportunities",
		Message: fmt.Sprintf("%d new opportunities found, %d worth a look.", len(fresh), c.report.Qualified),
		Type:    model.NotificationDiscovery,
		Data:    map[string]any{"new": len(fresh), "qualified": c.report.Qualified},
	}))

	for _, cand := range fresh {
		if cand.opp.MatchScore < HighMatchThreshold {
			continue
		}
		c.counted(c.o.notify(ctx, c.userID, model.Notification{
			Title:   "High match",
			Message: fmt.Sprintf("%q matches your profile at %.0f%%.", cand.opp.Title, cand.opp.MatchScore),
			Type:    model.NotificationHighMatch,
			Data: map[string]any{
				"opportunityId": cand.opp.ID,
				"platform":      cand.opp.Platform,
				"matchScore":    cand.opp.MatchScore,
				"url":           cand.opp.URL,
			},
		}))
	}
}

// pollSubmissions refreshes the status of submitted proposals awaiting a
// decision. Failures are logged per proposal.
func (c *cycle) pollSubmissions(ctx context.Context) {
	pending, err := c.o.store.PendingProposals(ctx, c.userID)
	if err != nil {
		c.o.logger.Warn("list pending proposals", "userId", c.userID, "err", err)
		return
	}
	for _, p := range pending {
		if p.ExternalID == "" {
			continue
		}
		adapter, err := c.o.adapters.Get(p.Platform)
		if err != nil {
			continue
		}
		status, err := adapter.GetSubmissionStatus(ctx, p.ExternalID)
		if err != nil {
			c.o.logger.Warn("submission status", "userId", c.userID, "proposalId", p.ID, "platform", p.Platform, "err", err)
			continue
		}
		if status == p.Status {
			continue
		}
		if err := c.o.store.SetProposalStatus(ctx, p.ID, status); err != nil {
			c.o.logger.Warn("update proposal status", "proposalId", p.ID, "err", err)
			continue
		}
		c.report.StatusUpdates++
		c.counted(c.o.notify(ctx, c.userID, model.Notification{
			Title:   "Proposal " + string(status),
			Message: fmt.Sprintf("Your proposal on %s is now %s.", p.Platform, status),
			Type:    model.NotificationProposalUpdate,
			Data:    map[string]any{"proposalId": p.ID, "status": string(status)},
		}))
	}
}

// adapterFailed records an adapter failure and deactivates the connection on
// auth or configuration errors, once per platform per cycle.
func (c *cycle) adapterFailed(ctx context.Context, name string, err error) {
	if c.report.AdapterErrors == nil {
		c.report.AdapterErrors = make(map[string]string)
	}
	c.report.AdapterErrors[name] = err.Error()

	if !platform.DeactivatesConnection(err) {
		c.o.logger.Warn("adapter failed, continuing", "userId", c.userID, "platform", name, "kind", platform.Classify(err).String(), "err", err)
		return
	}
	key := normalize(name)
	if c.deactivated[key] {
		return
	}
	c.deactivated[key] = true
	c.counted(c.o.deactivate(ctx, c.userID, name, err))
}

// deactivate disables the connection and tells the user. It reports whether
// the notification was delivered.
func (o *Orchestrator) deactivate(ctx context.Context, userID, name string, cause error) bool {
	o.logger.Warn("deactivating connection", "userId", userID, "platform", name, "kind", platform.Classify(cause).String(), "err", cause)
	if err := o.store.DeactivateConnection(ctx, userID, name, cause.Error()); err != nil {
		o.logger.Warn("deactivate connection", "userId", userID, "platform", name, "err", err)
	}
	return o.notify(ctx, userID, model.Notification{
		Title:   "Marketplace connection disabled",
		Message: fmt.Sprintf("Your %s connection was disabled: %v. Reconnect to resume automation.", name, cause),
		Type:    model.NotificationConnectionError,
		Data:    map[string]any{"platform": name, "kind": platform.Classify(cause).String()},
	})
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *cycle) counted(sent bool) {
	if sent {
		c.report.Notifications++
	}
}

package automation_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"jobmate/proposal-service/internal/automation"
	"jobmate/proposal-service/internal/bidding"
	"jobmate/proposal-service/internal/model"
	"jobmate/proposal-service/internal/platform"
	"jobmate/proposal-service/internal/store"
	"jobmate/proposal-service/internal/writer"
)

var testNow = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

// ─── Store ───────────────────────────────────────────────────────────────────

type memStore struct {
	mu          sync.Mutex
	profiles    map[string]model.FreelancerProfile
	policies    map[string]model.AutomationPolicy
	connections map[string][]string
	deactivated map[string]string
	opps        map[string]model.Opportunity      // platform|id → row
	seen        map[string]map[string]float64     // user → opportunity id → score
	proposals   []model.Proposal
}

func newMemStore() *memStore {
	return &memStore{
		profiles:    make(map[string]model.FreelancerProfile),
		policies:    make(map[string]model.AutomationPolicy),
		connections: make(map[string][]string),
		deactivated: make(map[string]string),
		opps:        make(map[string]model.Opportunity),
		seen:        make(map[string]map[string]float64),
	}
}

func (s *memStore) GetProfile(_ context.Context, userID string) (model.FreelancerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return p, store.ErrNotFound
	}
	return p, nil
}

func (s *memStore) GetPolicy(_ context.Context, userID string) (model.AutomationPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[userID]
	if !ok {
		return p, store.ErrNotFound
	}
	return p, nil
}

func (s *memStore) ListAutomatedUsers(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []string
	for id, p := range s.policies {
		if p.AutoSearch {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *memStore) ActivePlatforms(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, p := range s.connections[userID] {
		if _, off := s.deactivated[userID+"|"+p]; !off {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) DeactivateConnection(_ context.Context, userID, platform, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated[userID+"|"+platform] = reason
	return nil
}

func (s *memStore) SeenOpportunity(_ context.Context, userID, platform, platformOppID string) (model.Opportunity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.opps[platform+"|"+platformOppID]
	if !ok {
		return model.Opportunity{}, false, nil
	}
	score, ok := s.seen[userID][o.ID]
	if !ok {
		return model.Opportunity{}, false, nil
	}
	o.MatchScore = score
	return o, true, nil
}

func (s *memStore) RecordOpportunity(_ context.Context, userID string, snap model.OpportunitySnapshot, score float64) (model.Opportunity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := snap.Platform + "|" + snap.PlatformOpportunityID
	o, ok := s.opps[key]
	if !ok {
		o = model.Opportunity{ID: uuid.NewString(), CreatedAt: testNow}
	}
	o.OpportunitySnapshot = snap
	s.opps[key] = o

	if s.seen[userID] == nil {
		s.seen[userID] = make(map[string]float64)
	}
	if _, dup := s.seen[userID][o.ID]; dup {
		return o, false, nil
	}
	s.seen[userID][o.ID] = score
	o.MatchScore = score
	return o, true, nil
}

func (s *memStore) RefreshOpportunity(_ context.Context, platform, platformOppID string, status model.OpportunityStatus, proposalCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := platform + "|" + platformOppID
	o, ok := s.opps[key]
	if !ok {
		return nil
	}
	o.Status = status
	o.ProposalCount = proposalCount
	s.opps[key] = o
	return nil
}

func (s *memStore) GetOpportunity(_ context.Context, userID, opportunityID string) (model.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.opps {
		if o.ID != opportunityID {
			continue
		}
		score, ok := s.seen[userID][o.ID]
		if !ok {
			break
		}
		o.MatchScore = score
		return o, nil
	}
	return model.Opportunity{}, store.ErrNotFound
}

func (s *memStore) countAuto(userID string, from, to time.Time) int {
	n := 0
	for _, p := range s.proposals {
		if p.UserID == userID && p.IsAutoGenerated && !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			n++
		}
	}
	return n
}

func (s *memStore) CountAutoProposals(_ context.Context, userID string, from, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countAuto(userID, from, to), nil
}

func (s *memStore) HasLiveProposal(_ context.Context, userID, opportunityID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.proposals {
		if p.UserID == userID && p.OpportunityID == opportunityID && p.Status != model.SubmissionFailed {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) InsertProposal(_ context.Context, p model.Proposal, limit int, dayStart, dayEnd time.Time) (model.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.IsAutoGenerated && s.countAuto(p.UserID, dayStart, dayEnd) >= limit {
		return model.Proposal{}, store.ErrQuotaExceeded
	}
	p.Status = model.SubmissionPending
	p.CreatedAt = testNow
	p.UpdatedAt = testNow
	s.proposals = append(s.proposals, p)
	return p, nil
}

func (s *memStore) update(id string, fn func(*model.Proposal)) error {
	for i := range s.proposals {
		if s.proposals[i].ID == id {
			fn(&s.proposals[i])
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *memStore) UpdateProposalOutcome(_ context.Context, id string, status model.SubmissionStatus, externalID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(id, func(p *model.Proposal) {
		p.Status, p.ExternalID, p.FailureReason = status, externalID, reason
	})
}

func (s *memStore) SetProposalStatus(_ context.Context, id string, status model.SubmissionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(id, func(p *model.Proposal) { p.Status = status })
}

func (s *memStore) PendingProposals(_ context.Context, userID string) ([]model.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Proposal
	for _, p := range s.proposals {
		if p.UserID == userID && p.Status == model.SubmissionPending && p.ExternalID != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) ProposalHistory(_ context.Context, userID string) (model.ProposalHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var h model.ProposalHistory
	for _, p := range s.proposals {
		if p.UserID != userID || p.Status == model.SubmissionFailed {
			continue
		}
		h.Submitted++
		switch p.Status {
		case model.SubmissionAccepted:
			h.Accepted++
		case model.SubmissionRejected:
			h.Rejected++
		}
	}
	return h, nil
}

func (s *memStore) userProposals(userID string) []model.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Proposal
	for _, p := range s.proposals {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out
}

func (s *memStore) opportunityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.opps)
}

// ─── Adapter ─────────────────────────────────────────────────────────────────

type fakeAdapter struct {
	name string

	mu          sync.Mutex
	snaps       []model.OpportunitySnapshot
	searchErr   error
	submitErr   error
	status      model.SubmissionStatus
	submissions []platform.Submission
	searches    int

	entered chan struct{} // signalled on search when non-nil
	release chan struct{} // search blocks until closed when non-nil
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) SearchOpportunities(context.Context, platform.SearchCriteria) ([]model.OpportunitySnapshot, error) {
	if a.entered != nil {
		a.entered <- struct{}{}
	}
	if a.release != nil {
		<-a.release
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searches++
	return append([]model.OpportunitySnapshot(nil), a.snaps...), a.searchErr
}

func (a *fakeAdapter) SubmitProposal(_ context.Context, sub platform.Submission) (platform.SubmissionOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitErr != nil {
		return platform.SubmissionOutcome{}, a.submitErr
	}
	a.submissions = append(a.submissions, sub)
	return platform.SubmissionOutcome{SubmissionID: "ext-" + sub.ProposalID, Status: model.SubmissionPending}, nil
}

func (a *fakeAdapter) GetSubmissionStatus(context.Context, string) (model.SubmissionStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == "" {
		return model.SubmissionPending, nil
	}
	return a.status, nil
}

func (a *fakeAdapter) ValidateCredentials(context.Context) (bool, error) { return true, nil }

func (a *fakeAdapter) set(fn func(a *fakeAdapter)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(a)
}

func (a *fakeAdapter) submitted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.submissions)
}

// ─── Notifier ────────────────────────────────────────────────────────────────

type recorder struct {
	mu   sync.Mutex
	sent []sentNotification
}

type sentNotification struct {
	userID string
	model.Notification
}

func (r *recorder) Notify(_ context.Context, userID string, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{userID, n})
	return nil
}

func (r *recorder) ofType(typ string) []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentNotification
	for _, n := range r.sent {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// ─── Writers ─────────────────────────────────────────────────────────────────

type failingWriter struct{}

func (failingWriter) Generate(context.Context, model.Opportunity, model.FreelancerProfile, string) (writer.Draft, error) {
	return writer.Draft{}, fmt.Errorf("model overloaded")
}

type panickingWriter struct{}

func (panickingWriter) Generate(context.Context, model.Opportunity, model.FreelancerProfile, string) (writer.Draft, error) {
	panic("template index out of range")
}

// ─── Fixture ─────────────────────────────────────────────────────────────────

type fixture struct {
	store    *memStore
	registry *platform.Registry
	notes    *recorder
	orch     *automation.Orchestrator
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	writer   automation.ProposalWriter
	interval time.Duration
}

func withWriter(w automation.ProposalWriter) fixtureOption {
	return func(c *fixtureConfig) { c.writer = w }
}

func newFixture(t *testing.T, adapters []*fakeAdapter, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{writer: writer.Template{}, interval: time.Hour}
	for _, opt := range opts {
		opt(&cfg)
	}

	st := newMemStore()
	reg := platform.NewRegistry(2 * time.Second)
	for _, a := range adapters {
		reg.Register(a)
	}
	notes := &recorder{}
	calc := bidding.NewCalculator(bidding.NewHistoricalMarketData(fixedBids{}))

	orch := automation.New(st, reg, cfg.writer, calc, notes,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		automation.Config{
			Interval:           cfg.interval,
			MaxMatchesPerCycle: 10,
			Location:           time.UTC,
			Now:                func() time.Time { return testNow },
		})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(ctx)
	})

	return &fixture{store: st, registry: reg, notes: notes, orch: orch}
}

// addUser seeds a freelancer connected to platforms with automation enabled.
func (f *fixture) addUser(userID string, platforms ...string) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.profiles[userID] = model.FreelancerProfile{
		UserID:       userID,
		Skills:       []string{"Go", "React"},
		Experience:   "Senior engineer",
		HourlyRate:   50,
		HasPortfolio: true,
	}
	f.store.policies[userID] = model.AutomationPolicy{
		UserID:             userID,
		AutoSearch:         true,
		AutoProposal:       true,
		MinBudget:          500,
		MaxBudget:          5000,
		MaxProposalsPerDay: 5,
	}
	f.store.connections[userID] = platforms
}

func (f *fixture) editPolicy(userID string, fn func(*model.AutomationPolicy)) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	p := f.store.policies[userID]
	fn(&p)
	f.store.policies[userID] = p
}

// fixedBids reports no history so the market falls back to the budget.
type fixedBids struct{}

func (fixedBids) BidStats(context.Context, []string, model.BudgetType) (bidding.MarketStats, error) {
	return bidding.MarketStats{}, nil
}

// posting builds a snapshot with a $2,000 fixed budget and a 5-star client.
func posting(id, title string, skills ...string) model.OpportunitySnapshot {
	rating := 5.0
	return model.OpportunitySnapshot{
		PlatformOpportunityID: id,
		Title:                 title,
		Description:           "Remote project.",
		Budget:                "$2,000",
		BudgetType:            model.BudgetFixed,
		Skills:                skills,
		ClientRating:          &rating,
		ProposalCount:         4,
	}
}

var (
	// 40 + 25 + 15 + 7 = 87
	highPosting = posting("p-high", "Go and React dashboard", "Go", "React")
	// 20 + 25 + 15 + 7 = 67
	midPosting = posting("p-mid", "Go service in Rust shop", "Go", "Rust")
	// 0 + 25 + 15 + 7 = 47
	lowPosting = posting("p-low", "Embedded firmware", "Rust")
)

func (s *memStore) opportunityID(platformName, platformOppID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opps[platformName+"|"+platformOppID].ID
}

func (s *memStore) seedAutoProposal(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals = append(s.proposals, model.Proposal{
		ID:              uuid.NewString(),
		UserID:          userID,
		OpportunityID:   uuid.NewString(),
		Platform:        "alpha",
		IsAutoGenerated: true,
		Status:          model.SubmissionPending,
		CreatedAt:       testNow.Add(-time.Hour),
	})
}

func (s *memStore) deactivation(userID, platformName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reason, ok := s.deactivated[userID+"|"+platformName]
	return reason, ok
}

package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobmate/proposal-service/internal/model"
	"jobmate/proposal-service/internal/store"
)

// Defaults applied by New when Config leaves a field zero.
const (
	DefaultInterval           = 30 * time.Minute
	DefaultMaxMatchesPerCycle = 10
)

// Config tunes the orchestrator.
type Config struct {
	Interval           time.Duration
	MaxMatchesPerCycle int
	// Location defines the calendar day used for the proposal quota.
	Location *time.Location
	Now      func() time.Time
}

// Status is the answer to a status query.
type Status struct {
	UserID       string       `json:"userId"`
	IsRunning    bool         `json:"isRunning"`
	AutoSearch   bool         `json:"autoSearch"`
	AutoProposal bool         `json:"autoProposal"`
	LastRun      *time.Time   `json:"lastRun"`
	NextRun      *time.Time   `json:"nextRun"`
	State        CycleState   `json:"state"`
	LastError    string       `json:"lastError,omitempty"`
	LastReport   *CycleReport `json:"lastReport,omitempty"`
}

// task is one user's schedulable unit.
type task struct {
	cycle sync.Mutex // held while a cycle runs

	// guarded by Orchestrator.mu
	scheduled  bool
	entryID    cron.EntryID
	state      CycleState
	lastRun    time.Time
	lastErr    string
	lastReport *CycleReport
}

// Orchestrator owns every user's automation task.
type Orchestrator struct {
	store    Store
	adapters Adapters
	writer   ProposalWriter
	bids     BidCalculator
	notifier Notifier
	logger   *slog.Logger
	cfg      Config
	sched    *scheduler

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*task
}

// New constructs an Orchestrator and starts its scheduler.
func New(st Store, adapters Adapters, w ProposalWriter, bids BidCalculator, n Notifier, logger *slog.Logger, cfg Config) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxMatchesPerCycle <= 0 {
		cfg.MaxMatchesPerCycle = DefaultMaxMatchesPerCycle
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:    st,
		adapters: adapters,
		writer:   w,
		bids:     bids,
		notifier: n,
		logger:   logger,
		cfg:      cfg,
		sched:    newScheduler(cfg.Interval, logger),
		baseCtx:  ctx,
		cancel:   cancel,
		tasks:    make(map[string]*task),
	}
	o.sched.start()
	return o
}

func (o *Orchestrator) taskFor(userID string) *task {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[userID]
	if !ok {
		t = &task{state: StateIdle}
		o.tasks[userID] = t
	}
	return t
}

// Start schedules recurring cycles for userID and runs one immediately.
// Starting an already started user is a no-op.
func (o *Orchestrator) Start(ctx context.Context, userID string) (Status, error) {
	if userID == "" {
		return Status{}, &ValidationError{Msg: "user id is required"}
	}
	policy, err := o.loadPolicy(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	t := o.taskFor(userID)
	o.mu.Lock()
	if t.scheduled {
		o.mu.Unlock()
		return o.GetStatus(ctx, userID)
	}
	id, err := o.sched.add(func() { o.tick(userID) })
	if err != nil {
		o.mu.Unlock()
		return Status{}, err
	}
	t.scheduled = true
	t.entryID = id
	o.mu.Unlock()

	o.logger.Info("automation started", "userId", userID, "autoSearch", policy.AutoSearch)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.tick(userID)
	}()

	return o.GetStatus(ctx, userID)
}

// Stop cancels userID's pending cycles. A cycle already running finishes.
func (o *Orchestrator) Stop(ctx context.Context, userID string) (Status, error) {
	o.mu.Lock()
	if t, ok := o.tasks[userID]; ok && t.scheduled {
		o.sched.remove(t.entryID)
		t.scheduled = false
		t.entryID = 0
		o.logger.Info("automation stopped", "userId", userID)
	}
	o.mu.Unlock()
	return o.GetStatus(ctx, userID)
}

// RunManual executes one cycle now. It fails with ErrCycleInProgress when a
// cycle for userID is already running.
func (o *Orchestrator) RunManual(ctx context.Context, userID string) (*CycleReport, error) {
	if userID == "" {
		return nil, &ValidationError{Msg: "user id is required"}
	}
	t := o.taskFor(userID)
	if !t.cycle.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer t.cycle.Unlock()
	return o.execute(ctx, userID, t)
}

// tick is the scheduled entry point.
func (o *Orchestrator) tick(userID string) {
	t := o.taskFor(userID)

	o.mu.Lock()
	scheduled := t.scheduled
	o.mu.Unlock()
	if !scheduled {
		return
	}

	if !t.cycle.TryLock() {
		o.logger.Info("cycle skipped, previous still running", "userId", userID)
		return
	}
	defer t.cycle.Unlock()

	if _, err := o.execute(o.baseCtx, userID, t); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("scheduled cycle failed", "userId", userID, "err", err)
	}
}

// execute drives the state machine around one cycle. The caller holds t.cycle.
func (o *Orchestrator) execute(ctx context.Context, userID string, t *task) (report *CycleReport, err error) {
	o.transition(userID, t, StateRunning)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}

		o.mu.Lock()
		t.lastRun = o.cfg.Now()
		if report != nil {
			t.lastReport = report
		}
		if err != nil {
			t.lastErr = err.Error()
		} else {
			t.lastErr = ""
		}
		o.mu.Unlock()

		if err != nil && !handled(err) {
			o.logger.Error("cycle failed", "userId", userID, "err", err)
			o.transition(userID, t, StateError)
		}
		o.transition(userID, t, StateIdle)
	}()

	return o.runCycle(ctx, userID)
}

func (o *Orchestrator) transition(userID string, t *task, to CycleState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !IsTransitionAllowed(t.state, to) {
		o.logger.Warn("invalid cycle transition", "userId", userID, "from", t.state, "to", to)
	}
	t.state = to
}

// GetStatus reports userID's automation status.
func (o *Orchestrator) GetStatus(ctx context.Context, userID string) (Status, error) {
	st := Status{UserID: userID, State: StateIdle}

	policy, err := o.store.GetPolicy(ctx, userID)
	switch {
	case err == nil:
		st.AutoSearch = policy.AutoSearch
		st.AutoProposal = policy.AutoProposal
	case errors.Is(err, store.ErrNotFound):
	default:
		return Status{}, fmt.Errorf("load policy: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[userID]
	if !ok {
		return st, nil
	}
	st.IsRunning = t.scheduled
	st.State = t.state
	st.LastError = t.lastErr
	st.LastReport = t.lastReport
	if !t.lastRun.IsZero() {
		last := t.lastRun
		st.LastRun = &last
	}
	if t.scheduled {
		if next := o.sched.next(t.entryID); !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st, nil
}

// Resume starts every user whose policy enables auto search. It returns the
// number of users started.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	users, err := o.store.ListAutomatedUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list automated users: %w", err)
	}
	started := 0
	for _, u := range users {
		if _, err := o.Start(ctx, u); err != nil {
			o.logger.Warn("resume failed", "userId", u, "err", err)
			continue
		}
		started++
	}
	return started, nil
}

// Shutdown stops scheduling and waits for running cycles until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	stopped := o.sched.stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		o.wg.Wait()
		close(done)
	}()

	defer o.cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) loadPolicy(ctx context.Context, userID string) (model.AutomationPolicy, error) {
	policy, err := o.store.GetPolicy(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.AutomationPolicy{}, ErrPolicyNotFound
		}
		return model.AutomationPolicy{}, fmt.Errorf("load policy: %w", err)
	}
	if err := model.Validate(policy); err != nil {
		return model.AutomationPolicy{}, &ValidationError{Msg: "invalid policy: " + err.Error()}
	}
	return policy, nil
}

func (o *Orchestrator) loadProfile(ctx context.Context, userID string) (model.FreelancerProfile, error) {
	profile, err := o.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.FreelancerProfile{}, ErrProfileNotFound
		}
		return model.FreelancerProfile{}, fmt.Errorf("load profile: %w", err)
	}
	if err := model.Validate(profile); err != nil {
		return model.FreelancerProfile{}, &ValidationError{Msg: "invalid profile: " + err.Error()}
	}
	return profile, nil
}

// quotaWindow returns the calendar day containing now in the quota location.
func (o *Orchestrator) quotaWindow() (time.Time, time.Time) {
	now := o.cfg.Now().In(o.cfg.Location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, o.cfg.Location)
	return start, start.AddDate(0, 0, 1)
}

func (o *Orchestrator) notify(ctx context.Context, userID string, n model.Notification) bool {
	if err := o.notifier.Notify(ctx, userID, n); err != nil {
		o.logger.Warn("notify failed", "userId", userID, "type", n.Type, "err", err)
		return false
	}
	return true
}

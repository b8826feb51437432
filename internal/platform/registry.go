package platform

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"jobmate/proposal-service/internal/model"
)

// DefaultTimeout bounds every adapter call unless configured otherwise.
const DefaultTimeout = 15 * time.Second

// Registry maps a platform name to its adapter. Names are case-insensitive.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	timeout  time.Duration
}

// NewRegistry returns an empty Registry whose adapters are bounded by timeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{adapters: make(map[string]Adapter), timeout: timeout}
}

// Register adds (or replaces) an adapter under its Name().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[normalizeName(a.Name())] = WithTimeout(a, r.timeout)
}

// Get returns the adapter registered for name, or a *ConfigurationError.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[normalizeName(name)]
	if !ok {
		return nil, &ConfigurationError{Platform: name, Msg: "unsupported platform"}
	}
	return a, nil
}

// Names lists registered platforms in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// bounded enforces a deadline on every call and normalises failures.
type bounded struct {
	inner   Adapter
	timeout time.Duration
}

// WithTimeout decorates a so that each call returns within d. Calls that
// exceed d, and unclassified failures, surface as *TransientError.
func WithTimeout(a Adapter, d time.Duration) Adapter {
	if b, ok := a.(*bounded); ok {
		a = b.inner
	}
	return &bounded{inner: a, timeout: d}
}

func (b *bounded) Name() string { return b.inner.Name() }

func (b *bounded) SearchOpportunities(ctx context.Context, c SearchCriteria) ([]model.OpportunitySnapshot, error) {
	snaps, err := call(ctx, b, func(ctx context.Context) ([]model.OpportunitySnapshot, error) {
		return b.inner.SearchOpportunities(ctx, c)
	})
	for i := range snaps {
		if snaps[i].Platform == "" {
			snaps[i].Platform = normalizeName(b.Name())
		}
		if snaps[i].Status == "" {
			snaps[i].Status = model.OpportunityOpen
		}
	}
	return snaps, err
}

func (b *bounded) SubmitProposal(ctx context.Context, sub Submission) (SubmissionOutcome, error) {
	return call(ctx, b, func(ctx context.Context) (SubmissionOutcome, error) {
		return b.inner.SubmitProposal(ctx, sub)
	})
}

func (b *bounded) GetSubmissionStatus(ctx context.Context, id string) (model.SubmissionStatus, error) {
	return call(ctx, b, func(ctx context.Context) (model.SubmissionStatus, error) {
		return b.inner.GetSubmissionStatus(ctx, id)
	})
}

func (b *bounded) ValidateCredentials(ctx context.Context) (bool, error) {
	return call(ctx, b, func(ctx context.Context) (bool, error) {
		return b.inner.ValidateCredentials(ctx)
	})
}

// call runs fn in its own goroutine so that an adapter ignoring ctx still
// cannot hold the cycle past the deadline.
func call[T any](ctx context.Context, b *bounded, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, asTransient(b.Name(), r.err)
	case <-ctx.Done():
		var zero T
		return zero, asTransient(b.Name(), ctx.Err())
	}
}

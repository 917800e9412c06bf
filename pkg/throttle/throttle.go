// Package throttle bounds per-organization signal volume.
//
// Windows are fixed: time is bucketed into [start, start+window) slots and
// each slot has its own atomic counter in the backing store. Fixed windows
// keep counts exact under concurrency (one atomic increment per admission)
// and are straightforward to reason about in tests.
package throttle

import (
	"context"
	"time"

	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/ports"
)

// Defaults match the product configuration of the surrounding application.
const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// Throttler admits at most limit signals per organization per window.
type Throttler struct {
	store  ports.ThrottleStore
	limit  int64
	window time.Duration
	now    func() time.Time
}

// Option configures the Throttler.
type Option func(*Throttler)

// WithLimit overrides the per-window admission limit.
func WithLimit(limit int64) Option {
	return func(t *Throttler) {
		t.limit = limit
	}
}

// WithWindow overrides the window length.
func WithWindow(window time.Duration) Option {
	return func(t *Throttler) {
		t.window = window
	}
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Throttler) {
		t.now = now
	}
}

// New creates a Throttler over the given store.
func New(store ports.ThrottleStore, opts ...Option) *Throttler {
	t := &Throttler{
		store:  store,
		limit:  DefaultLimit,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// windowStart buckets the current instant into its fixed window.
func (t *Throttler) windowStart() time.Time {
	return t.now().UTC().Truncate(t.window)
}

// TryAdmit reports whether one more signal may proceed for the organization.
// Within any window, at most limit calls return true; the store counter may
// grow past the limit (denied calls still increment), which is harmless
// because admission compares against the returned running count.
func (t *Throttler) TryAdmit(ctx context.Context, organizationID string) (bool, error) {
	// TTL of two windows: the key must survive its own window and is
	// garbage afterwards.
	n, err := t.store.Incr(ctx, organizationID, t.windowStart(), 2*t.window)
	if err != nil {
		return false, err
	}
	return n <= t.limit, nil
}

// Window returns the organization's current window snapshot, for introspection.
func (t *Throttler) Window(ctx context.Context, organizationID string) (domain.ThrottleWindow, error) {
	start := t.windowStart()
	n, err := t.store.Count(ctx, organizationID, start)
	if err != nil {
		return domain.ThrottleWindow{}, err
	}
	if n > t.limit {
		// Denied attempts also increment; the admitted count is capped.
		n = t.limit
	}
	return domain.ThrottleWindow{WindowStart: start, Count: n}, nil
}

// Limit returns the configured per-window limit.
func (t *Throttler) Limit() int64 {
	return t.limit
}

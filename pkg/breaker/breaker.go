// Package breaker implements the per-organization circuit breaker.
//
// State machine:
//
//	closed    --failure×threshold--> open
//	open      --cool-down elapsed--> half-open (checked lazily on Allow)
//	half-open --success-----------> closed (failure count reset)
//	half-open --failure-----------> open (cool-down restarts)
//	closed    --success-----------> closed (failure count reset)
//	open      --any outcome-------> open (stale dispatches are ignored)
//
// State lives in a shared store; read-modify-write runs under a per-tenant
// lock so concurrent publishes for the same organization cannot lose updates.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/growthkit/signalbus/internal/logging"
	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/ports"
)

// Defaults match the product configuration of the surrounding application.
const (
	DefaultThreshold = 5
	DefaultCoolDown  = time.Minute

	// lockTTL bounds how long a crashed holder can stall a tenant.
	lockTTL = 5 * time.Second
)

// TransitionHook observes state changes, e.g. for metrics.
type TransitionHook func(organizationID string, from, to domain.BreakerStatus)

// Breaker guards dispatch per organization.
type Breaker struct {
	store     ports.BreakerStateStore
	locker    ports.TenantLocker
	threshold int
	coolDown  time.Duration
	now       func() time.Time
	onChange  TransitionHook
	logger    *slog.Logger
}

// Option configures the Breaker.
type Option func(*Breaker)

// WithThreshold overrides the consecutive-failure threshold.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		b.threshold = n
	}
}

// WithCoolDown overrides the open → half-open cool-down.
func WithCoolDown(d time.Duration) Option {
	return func(b *Breaker) {
		b.coolDown = d
	}
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// WithTransitionHook registers an observer for state changes.
func WithTransitionHook(hook TransitionHook) Option {
	return func(b *Breaker) {
		b.onChange = hook
	}
}

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// New creates a Breaker over the given state store and tenant locker.
func New(store ports.BreakerStateStore, locker ports.TenantLocker, opts ...Option) *Breaker {
	b := &Breaker{
		store:     store,
		locker:    locker,
		threshold: DefaultThreshold,
		coolDown:  DefaultCoolDown,
		now:       time.Now,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether dispatch may proceed for the organization.
// An open breaker whose cool-down has elapsed transitions to half-open here
// and allows one probe dispatch through.
func (b *Breaker) Allow(ctx context.Context, organizationID string) (bool, error) {
	state, err := b.load(ctx, organizationID)
	if err != nil {
		return false, err
	}

	switch state.Status {
	case domain.BreakerClosed, domain.BreakerHalfOpen:
		return true, nil
	case domain.BreakerOpen:
		if b.now().UTC().Sub(state.OpenedAt) < b.coolDown {
			return false, nil
		}
		// Cool-down elapsed: probe.
		if err := b.transition(ctx, organizationID, func(s *domain.BreakerState) {
			if s.Status == domain.BreakerOpen && b.now().UTC().Sub(s.OpenedAt) >= b.coolDown {
				s.Status = domain.BreakerHalfOpen
			}
		}); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown breaker status %q for organization %s", state.Status, organizationID)
	}
}

// ReportOutcome feeds one dispatch result into the state machine. success is
// the dispatch-level verdict: a dispatch fails when any subscriber failed.
func (b *Breaker) ReportOutcome(ctx context.Context, organizationID string, success bool) error {
	return b.transition(ctx, organizationID, func(s *domain.BreakerState) {
		if success {
			// A dispatch that was admitted before the breaker opened can
			// settle late; only the cool-down timeout exits open, so its
			// success must not erase the isolation.
			if s.Status == domain.BreakerOpen {
				return
			}
			// A single success clears any partial failure streak.
			s.Status = domain.BreakerClosed
			s.ConsecutiveFailures = 0
			s.OpenedAt = time.Time{}
			return
		}

		switch s.Status {
		case domain.BreakerHalfOpen:
			// Probe failed: stay isolated for another full cool-down.
			s.Status = domain.BreakerOpen
			s.OpenedAt = b.now().UTC()
		case domain.BreakerClosed:
			s.ConsecutiveFailures++
			if s.ConsecutiveFailures >= b.threshold {
				s.Status = domain.BreakerOpen
				s.OpenedAt = b.now().UTC()
			}
		case domain.BreakerOpen:
			// A dispatch that started before the breaker opened; already isolated.
		}
	})
}

// State returns the organization's raw breaker snapshot, for introspection.
// A tenant with no history reports a fresh closed state.
func (b *Breaker) State(ctx context.Context, organizationID string) (*domain.BreakerState, error) {
	return b.load(ctx, organizationID)
}

func (b *Breaker) load(ctx context.Context, organizationID string) (*domain.BreakerState, error) {
	state, err := b.store.Load(ctx, organizationID)
	if errors.Is(err, domain.ErrStateNotFound) {
		return domain.NewBreakerState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load breaker state: %w", err)
	}
	return state, nil
}

// transition applies fn to the current state under the tenant lock and
// persists the result if it changed.
func (b *Breaker) transition(ctx context.Context, organizationID string, fn func(*domain.BreakerState)) error {
	unlock, err := b.locker.Lock(ctx, organizationID, lockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock breaker state: %w", err)
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			b.logger.Warn("failed to release tenant lock", "org", organizationID, "error", err)
		}
	}()

	state, err := b.load(ctx, organizationID)
	if err != nil {
		return err
	}

	before := *state
	fn(state)
	if *state == before {
		return nil
	}

	if err := b.store.Save(ctx, organizationID, state); err != nil {
		return fmt.Errorf("failed to save breaker state: %w", err)
	}

	if state.Status != before.Status && b.onChange != nil {
		b.onChange(organizationID, before.Status, state.Status)
	}
	return nil
}

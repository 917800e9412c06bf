package ports

import (
	"context"
	"time"

	"github.com/growthkit/signalbus/pkg/domain"
)

// AuditStore persists the audit trail. Writes are best-effort from the
// coordinator's point of view: a failed Record must not fail the publish
// call, but the coordinator surfaces it to operational logging.
type AuditStore interface {
	// Record persists one entry. Entries are immutable; implementations
	// must never update an existing entry.
	Record(ctx context.Context, entry domain.AuditEntry) error

	// ListRecent returns up to limit entries for an organization,
	// newest first. Used by the ops surface and tests.
	ListRecent(ctx context.Context, organizationID string, limit int) ([]domain.AuditEntry, error)
}

// BreakerStateStore persists per-organization circuit breaker state.
// The state must be reachable from every process instance handling that
// tenant's traffic; in-process memory is only valid for single-instance
// deployments.
type BreakerStateStore interface {
	// Load retrieves the state for an organization.
	// Returns domain.ErrStateNotFound if the tenant has no state yet.
	Load(ctx context.Context, organizationID string) (*domain.BreakerState, error)

	// Save persists the state for an organization.
	Save(ctx context.Context, organizationID string, state *domain.BreakerState) error
}

// ThrottleStore counts admissions per organization per fixed window.
type ThrottleStore interface {
	// Incr atomically increments the counter for the window starting at
	// windowStart and returns the count after the increment. ttl bounds
	// how long the backing record outlives the window.
	Incr(ctx context.Context, organizationID string, windowStart time.Time, ttl time.Duration) (int64, error)

	// Count returns the current count for the window without incrementing.
	// Returns 0 for a window that has never been written.
	Count(ctx context.Context, organizationID string, windowStart time.Time) (int64, error)
}

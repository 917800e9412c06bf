// Package memory implements the bus's storage ports in process memory.
//
// Valid for single-instance deployments and tests: per-tenant state held
// here is invisible to other replicas. Multi-instance deployments should use
// the redis and mongo adapters instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/growthkit/signalbus/pkg/domain"
)

// key namespaces records by environment so test traffic never commingles
// with anything else sharing the store (mirrors the redis/mongo adapters).
func key(prefix, organizationID string) string {
	return prefix + organizationID
}

// BreakerStore implements ports.BreakerStateStore in memory.
// Safe for concurrent use.
type BreakerStore struct {
	mu     sync.RWMutex
	prefix string
	data   map[string]domain.BreakerState
}

// NewBreakerStore creates an in-memory breaker state store.
func NewBreakerStore(envPrefix string) *BreakerStore {
	return &BreakerStore{
		prefix: envPrefix + ":breaker:",
		data:   make(map[string]domain.BreakerState),
	}
}

// Load retrieves the state for an organization.
func (s *BreakerStore) Load(ctx context.Context, organizationID string) (*domain.BreakerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[key(s.prefix, organizationID)]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	// Copy on read so callers can't mutate store state by pointer.
	ret := state
	return &ret, nil
}

// Save persists the state for an organization.
func (s *BreakerStore) Save(ctx context.Context, organizationID string, state *domain.BreakerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key(s.prefix, organizationID)] = *state
	return nil
}

// ThrottleStore implements ports.ThrottleStore in memory.
// Safe for concurrent use; expired windows are pruned lazily on access.
type ThrottleStore struct {
	mu     sync.Mutex
	prefix string
	counts map[string]int64
	expiry map[string]time.Time
	now    func() time.Time
}

// NewThrottleStore creates an in-memory throttle counter store.
func NewThrottleStore(envPrefix string) *ThrottleStore {
	return &ThrottleStore{
		prefix: envPrefix + ":throttle:",
		counts: make(map[string]int64),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *ThrottleStore) windowKey(organizationID string, windowStart time.Time) string {
	return key(s.prefix, organizationID) + ":" + windowStart.UTC().Format(time.RFC3339)
}

// Incr atomically increments the window counter and returns the new count.
func (s *ThrottleStore) Incr(ctx context.Context, organizationID string, windowStart time.Time, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()

	k := s.windowKey(organizationID, windowStart)
	if _, ok := s.counts[k]; !ok {
		s.expiry[k] = s.now().Add(ttl)
	}
	s.counts[k]++
	return s.counts[k], nil
}

// Count returns the current window counter without incrementing.
func (s *ThrottleStore) Count(ctx context.Context, organizationID string, windowStart time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	return s.counts[s.windowKey(organizationID, windowStart)], nil
}

// prune drops expired window counters. Caller holds the lock.
func (s *ThrottleStore) prune() {
	now := s.now()
	for k, deadline := range s.expiry {
		if now.After(deadline) {
			delete(s.counts, k)
			delete(s.expiry, k)
		}
	}
}

// AuditStore implements ports.AuditStore in memory, newest entries first on read.
type AuditStore struct {
	mu     sync.RWMutex
	prefix string
	data   map[string][]domain.AuditEntry
}

// NewAuditStore creates an in-memory audit trail.
func NewAuditStore(envPrefix string) *AuditStore {
	return &AuditStore{
		prefix: envPrefix + ":audit:",
		data:   make(map[string][]domain.AuditEntry),
	}
}

// Record appends one immutable entry to the organization's trail.
func (s *AuditStore) Record(ctx context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(s.prefix, entry.OrganizationID)
	s.data[k] = append(s.data[k], entry)
	return nil
}

// ListRecent returns up to limit entries for an organization, newest first.
func (s *AuditStore) ListRecent(ctx context.Context, organizationID string, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trail := s.data[key(s.prefix, organizationID)]
	if limit <= 0 || limit > len(trail) {
		limit = len(trail)
	}

	out := make([]domain.AuditEntry, 0, limit)
	for i := len(trail) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, trail[i])
	}
	return out, nil
}

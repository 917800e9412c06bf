// Package redis implements the bus's per-tenant state ports on Redis, so
// breaker and throttle decisions stay consistent across process instances.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/growthkit/signalbus/pkg/domain"
)

// Store implements ports.BreakerStateStore and ports.ThrottleStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix. Deployments prefix by environment
// (e.g. "staging:signals:") so test traffic never touches production keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "signals:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) breakerKey(organizationID string) string {
	return s.prefix + "breaker:" + organizationID
}

func (s *Store) throttleKey(organizationID string, windowStart time.Time) string {
	return fmt.Sprintf("%sthrottle:%s:%d", s.prefix, organizationID, windowStart.UTC().Unix())
}

// Load retrieves the breaker state for an organization.
func (s *Store) Load(ctx context.Context, organizationID string) (*domain.BreakerState, error) {
	val, err := s.client.Get(ctx, s.breakerKey(organizationID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get breaker state from redis: %w", err)
	}

	var state domain.BreakerState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breaker state: %w", err)
	}

	return &state, nil
}

// Save persists the breaker state for an organization. No TTL: breaker state
// is tiny and its lifecycle is driven by the state machine, not expiry.
func (s *Store) Save(ctx context.Context, organizationID string, state *domain.BreakerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal breaker state: %w", err)
	}

	if err := s.client.Set(ctx, s.breakerKey(organizationID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save breaker state to redis: %w", err)
	}

	return nil
}

// Incr atomically increments the window counter. The first increment of a
// window arms its expiry so stale windows clean themselves up.
func (s *Store) Incr(ctx context.Context, organizationID string, windowStart time.Time, ttl time.Duration) (int64, error) {
	key := s.throttleKey(organizationID, windowStart)

	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment throttle counter: %w", err)
	}

	if n == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("failed to set throttle counter expiry: %w", err)
		}
	}

	return n, nil
}

// Count returns the current window counter without incrementing.
func (s *Store) Count(ctx context.Context, organizationID string, windowStart time.Time) (int64, error) {
	val, err := s.client.Get(ctx, s.throttleKey(organizationID, windowStart)).Int64()
	if err != nil {
		if err == backend.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read throttle counter: %w", err)
	}
	return val, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

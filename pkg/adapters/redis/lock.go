package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/growthkit/signalbus/pkg/ports"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire tenant lock")
)

// Locker implements ports.TenantLocker using Redis SET NX PX.
// It serializes breaker state updates for one organization across replicas.
type Locker struct {
	client *backend.Client
	prefix string
}

// NewLocker creates a new Redis tenant locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
	}
}

// Lock acquires the tenant lock, polling with backoff until the context is
// canceled. The lock value is unique per acquisition so release is safe: the
// unlock script only deletes the key if it still holds our value.
func (l *Locker) Lock(ctx context.Context, organizationID string, ttl time.Duration) (ports.UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + organizationID
	val := fmt.Sprintf("%d", time.Now().UnixNano())

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		success, err := l.client.SetNX(ctx, lockKey, val, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if success {
			return func(ctx context.Context) error {
				script := `
					if redis.call("get", KEYS[1]) == ARGV[1] then
						return redis.call("del", KEYS[1])
					else
						return 0
					end
				`
				return l.client.Eval(ctx, script, []string{lockKey}, val).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			// Retry...
		}
	}
}

package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a tenant lock.
type UnlockFunc func(ctx context.Context) error

// TenantLocker serializes breaker state updates for a single tenant across
// process instances. The throttle path does not need it (its store operation
// is a single atomic increment), but the breaker's read-modify-write does.
type TenantLocker interface {
	// Lock attempts to acquire the lock for the given organization ID.
	// It blocks until the lock is acquired or the context is canceled.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, organizationID string, ttl time.Duration) (UnlockFunc, error)
}

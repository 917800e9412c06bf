package memory

import (
	"context"
	"sync"
	"time"

	"github.com/growthkit/signalbus/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locker implements ports.TenantLocker with per-tenant mutexes.
// It uses reference counting to garbage collect locks for idle tenants,
// so the map does not grow with every organization ever seen.
type Locker struct {
	mu    sync.Mutex // Global lock for the map
	locks map[string]*lockEntry
}

// NewLocker creates an in-process tenant locker.
func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]*lockEntry),
	}
}

// Lock acquires the per-tenant mutex. The ttl is ignored: an in-process
// mutex cannot outlive its holder.
func (l *Locker) Lock(ctx context.Context, organizationID string, ttl time.Duration) (ports.UnlockFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	entry, ok := l.locks[organizationID]
	if !ok {
		entry = &lockEntry{}
		l.locks[organizationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func(ctx context.Context) error {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, organizationID)
		}
		l.mu.Unlock()
		return nil
	}, nil
}

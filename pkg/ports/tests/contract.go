package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/ports"
)

// RunBreakerStateStoreContract verifies that a BreakerStateStore implementation
// adheres to the interface contract. Adapters run it against their own backend.
func RunBreakerStateStoreContract(t *testing.T, store ports.BreakerStateStore) {
	ctx := context.Background()
	org := "contract-org-" + time.Now().Format("20060102150405")

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "never-saved-"+org)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewBreakerState()
		state.ConsecutiveFailures = 3
		require.NoError(t, store.Save(ctx, org, state))

		loaded, err := store.Load(ctx, org)
		require.NoError(t, err)
		assert.Equal(t, domain.BreakerClosed, loaded.Status)
		assert.Equal(t, 3, loaded.ConsecutiveFailures)
	})

	t.Run("Overwrite", func(t *testing.T) {
		opened := &domain.BreakerState{
			Status:              domain.BreakerOpen,
			ConsecutiveFailures: 5,
			OpenedAt:            time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, store.Save(ctx, org, opened))

		loaded, err := store.Load(ctx, org)
		require.NoError(t, err)
		assert.Equal(t, domain.BreakerOpen, loaded.Status)
		assert.Equal(t, 5, loaded.ConsecutiveFailures)
		assert.WithinDuration(t, opened.OpenedAt, loaded.OpenedAt, time.Second)
	})

	t.Run("Tenant Isolation", func(t *testing.T) {
		other := org + "-other"
		require.NoError(t, store.Save(ctx, other, domain.NewBreakerState()))

		loaded, err := store.Load(ctx, org)
		require.NoError(t, err)
		assert.Equal(t, domain.BreakerOpen, loaded.Status, "saving another tenant must not touch this one")
	})
}

// RunThrottleStoreContract verifies that a ThrottleStore implementation
// provides atomic, window-scoped, tenant-scoped counters.
func RunThrottleStoreContract(t *testing.T, store ports.ThrottleStore) {
	ctx := context.Background()
	org := "contract-org-" + time.Now().Format("20060102150405")
	window := time.Now().UTC().Truncate(time.Minute)
	ttl := 2 * time.Minute

	t.Run("Count Before Any Incr", func(t *testing.T) {
		n, err := store.Count(ctx, org, window)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("Incr Returns Running Count", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			n, err := store.Incr(ctx, org, window, ttl)
			require.NoError(t, err)
			assert.Equal(t, i, n)
		}

		n, err := store.Count(ctx, org, window)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("Window Isolation", func(t *testing.T) {
		next := window.Add(time.Minute)
		n, err := store.Incr(ctx, org, next, ttl)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "a new window starts counting from zero")
	})

	t.Run("Tenant Isolation", func(t *testing.T) {
		n, err := store.Incr(ctx, org+"-other", window, ttl)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

// RunAuditStoreContract verifies that an AuditStore records immutable entries
// and lists them newest first, scoped by tenant.
func RunAuditStoreContract(t *testing.T, store ports.AuditStore) {
	ctx := context.Background()
	org := "contract-org-" + time.Now().Format("20060102150405")

	sig := domain.NewSignal(domain.SignalInput{
		Type:           domain.TypeLeadQualified,
		OrganizationID: org,
		SourceModule:   "contract-test",
	}, &domain.LeadQualifiedPayload{LeadID: "lead-1", Score: 0.9})

	first := domain.NewAuditEntry(sig, domain.OutcomeDelivered, []domain.SubscriberResult{
		{SubscriberID: "sub-1", Name: "pipeline", OK: true, Latency: 12 * time.Millisecond},
	})
	require.NoError(t, store.Record(ctx, first))

	// Stores order by timestamp; keep the two entries in distinct milliseconds.
	time.Sleep(5 * time.Millisecond)

	second := domain.NewAuditEntry(sig, domain.OutcomeDroppedThrottled, nil)
	require.NoError(t, store.Record(ctx, second))

	t.Run("ListRecent Newest First", func(t *testing.T) {
		entries, err := store.ListRecent(ctx, org, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, second.ID, entries[0].ID)
		assert.Equal(t, first.ID, entries[1].ID)
		assert.Equal(t, domain.OutcomeDelivered, entries[1].Outcome)
		require.Len(t, entries[1].Subscribers, 1)
		assert.True(t, entries[1].Subscribers[0].OK)
	})

	t.Run("Limit", func(t *testing.T) {
		entries, err := store.ListRecent(ctx, org, 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Tenant Isolation", func(t *testing.T) {
		entries, err := store.ListRecent(ctx, org+"-other", 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

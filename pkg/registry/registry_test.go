package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/registry"
)

func noop(ctx context.Context, sig *domain.Signal) error { return nil }

func TestRegistry_PriorityOrder(t *testing.T) {
	r := registry.New()

	r.Register(domain.TypeLeadScored, "third", 30, noop)
	r.Register(domain.TypeLeadScored, "first", 10, noop)
	r.Register(domain.TypeLeadScored, "second", 10, noop) // same priority, registered later

	subs := r.HandlersFor(domain.TypeLeadScored)
	require.Len(t, subs, 3)
	assert.Equal(t, "first", subs[0].Name)
	assert.Equal(t, "second", subs[1].Name)
	assert.Equal(t, "third", subs[2].Name)
}

func TestRegistry_Deregister(t *testing.T) {
	r := registry.New()

	keep := r.Register(domain.TypeLeadScored, "keep", 10, noop)
	drop := r.Register(domain.TypeLeadScored, "drop", 20, noop)

	r.Deregister(drop)
	subs := r.HandlersFor(domain.TypeLeadScored)
	require.Len(t, subs, 1)
	assert.Equal(t, "keep", subs[0].Name)

	// Deregistering twice is a no-op.
	r.Deregister(drop)
	assert.Len(t, r.HandlersFor(domain.TypeLeadScored), 1)

	r.Deregister(keep)
	assert.Empty(t, r.HandlersFor(domain.TypeLeadScored))
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := registry.New()
	r.Register(domain.TypeLeadScored, "a", 10, noop)

	snapshot := r.HandlersFor(domain.TypeLeadScored)
	r.Register(domain.TypeLeadScored, "b", 5, noop)

	// The earlier snapshot is untouched by the later registration.
	require.Len(t, snapshot, 1)
	assert.Equal(t, "a", snapshot[0].Name)
	assert.Len(t, r.HandlersFor(domain.TypeLeadScored), 2)
}

func TestRegistry_TypeIsolation(t *testing.T) {
	r := registry.New()
	r.Register(domain.TypeLeadScored, "scored", 10, noop)

	assert.Empty(t, r.HandlersFor(domain.TypeLeadQualified))

	counts := r.Counts()
	assert.Equal(t, 1, counts[domain.TypeLeadScored])
	assert.NotContains(t, counts, domain.TypeLeadQualified)
}

func TestRegistry_SubscriptionType(t *testing.T) {
	r := registry.New()
	sub := r.Register(domain.TypeDealWon, "x", 10, noop)
	assert.Equal(t, domain.TypeDealWon, sub.Type())
}

// Package registry maps signal types to ordered subscriber handlers.
//
// It is read-heavy and written rarely (modules subscribe at startup), so a
// simple RWMutex map suffices. Reads return snapshots, so subscribing or
// unsubscribing never disturbs an in-flight dispatch.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/growthkit/signalbus/pkg/domain"
)

// Handler processes one signal. A returned error marks this subscriber as
// failed for that dispatch; it never propagates to the producer.
type Handler func(ctx context.Context, sig *domain.Signal) error

// Subscriber is one registered handler with its dispatch metadata.
type Subscriber struct {
	ID       string
	Name     string
	Priority int
	Handler  Handler

	seq uint64 // registration order, tiebreak within equal priority
}

// Subscription is the opaque handle returned by Register, used to unsubscribe.
type Subscription struct {
	id  string
	typ domain.SignalType
}

// Type returns the signal type this subscription is registered for.
func (s Subscription) Type() domain.SignalType {
	return s.typ
}

// Registry manages subscriptions. The zero value is not usable; use New.
type Registry struct {
	mu   sync.RWMutex
	seq  uint64
	subs map[domain.SignalType][]Subscriber
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		subs: make(map[domain.SignalType][]Subscriber),
	}
}

// Register adds a handler for a signal type. Lower priority values are
// dispatched first; equal priorities keep registration order.
func (r *Registry) Register(t domain.SignalType, name string, priority int, h Handler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	sub := Subscriber{
		ID:       uuid.NewString(),
		Name:     name,
		Priority: priority,
		Handler:  h,
		seq:      r.seq,
	}

	list := append(r.subs[t], sub)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	r.subs[t] = list

	return Subscription{id: sub.ID, typ: t}
}

// Deregister removes a subscription. Removing an already-removed handle is a no-op.
func (r *Registry) Deregister(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.subs[sub.typ]
	for i, s := range list {
		if s.ID == sub.id {
			r.subs[sub.typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// HandlersFor returns a snapshot of the subscribers for a type, in dispatch order.
func (r *Registry) HandlersFor(t domain.SignalType) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.subs[t]
	if len(list) == 0 {
		return nil
	}
	out := make([]Subscriber, len(list))
	copy(out, list)
	return out
}

// Counts returns the number of subscribers per type, for introspection.
func (r *Registry) Counts() map[domain.SignalType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.SignalType]int, len(r.subs))
	for t, list := range r.subs {
		if len(list) > 0 {
			out[t] = len(list)
		}
	}
	return out
}

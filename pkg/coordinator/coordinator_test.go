package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthkit/signalbus/pkg/adapters/memory"
	"github.com/growthkit/signalbus/pkg/breaker"
	"github.com/growthkit/signalbus/pkg/coordinator"
	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/registry"
	"github.com/growthkit/signalbus/pkg/throttle"
)

// fakeClock lets tests move through throttle windows and breaker cool-downs
// without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	bus   *coordinator.Coordinator
	audit *memory.AuditStore
	clock *fakeClock
}

func newFixture(t *testing.T, limit int64, threshold int) *fixture {
	t.Helper()

	clock := newFakeClock()
	audit := memory.NewAuditStore("test")

	th := throttle.New(memory.NewThrottleStore("test"),
		throttle.WithLimit(limit),
		throttle.WithClock(clock.Now),
	)
	br := breaker.New(memory.NewBreakerStore("test"), memory.NewLocker(),
		breaker.WithThreshold(threshold),
		breaker.WithClock(clock.Now),
	)

	return &fixture{
		bus:   coordinator.New(registry.New(), th, br, audit),
		audit: audit,
		clock: clock,
	}
}

func qualifiedInput(org string) domain.SignalInput {
	return domain.SignalInput{
		Type:           domain.TypeLeadQualified,
		OrganizationID: org,
		Payload:        map[string]any{"leadId": "lead-1", "score": 0.92},
		SourceModule:   "scoring",
	}
}

func auditCount(t *testing.T, f *fixture, org string) int {
	t.Helper()
	entries, err := f.audit.ListRecent(context.Background(), org, 0)
	require.NoError(t, err)
	return len(entries)
}

func TestPublish_DeliversToSubscriber(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	var got *domain.Signal
	_, err := f.bus.Subscribe(domain.TypeLeadQualified, "pipeline", func(ctx context.Context, sig *domain.Signal) error {
		got = sig
		return nil
	})
	require.NoError(t, err)

	res, err := f.bus.Publish(ctx, qualifiedInput("acme"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeDelivered, res.Outcome)
	require.Len(t, res.Subscribers, 1)
	assert.True(t, res.Subscribers[0].OK)
	assert.Equal(t, "pipeline", res.Subscribers[0].Name)

	require.NotNil(t, got)
	assert.Equal(t, "acme", got.OrganizationID)
	assert.NotEmpty(t, got.ID)
	payload, ok := got.Payload.(domain.LeadQualifiedPayload)
	require.True(t, ok, "handler must receive the typed payload, not a raw map")
	assert.Equal(t, "lead-1", payload.LeadID)
	assert.InDelta(t, 0.92, payload.Score, 1e-9)
}

func TestPublish_ResultsFollowPriorityOrder(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	noop := func(ctx context.Context, sig *domain.Signal) error { return nil }

	// Registered out of order; results must come back priority-sorted,
	// registration order breaking the tie.
	_, err := f.bus.Subscribe(domain.TypeDealWon, "billing", noop, coordinator.WithPriority(20))
	require.NoError(t, err)
	_, err = f.bus.Subscribe(domain.TypeDealWon, "notifications", noop, coordinator.WithPriority(10))
	require.NoError(t, err)
	_, err = f.bus.Subscribe(domain.TypeDealWon, "analytics", noop, coordinator.WithPriority(10))
	require.NoError(t, err)

	res, err := f.bus.Publish(ctx, domain.SignalInput{
		Type:           domain.TypeDealWon,
		OrganizationID: "acme",
		Payload:        map[string]any{"dealId": "d-1", "amount": 4200.0},
		SourceModule:   "deals",
	})
	require.NoError(t, err)

	require.Len(t, res.Subscribers, 3)
	assert.Equal(t, "notifications", res.Subscribers[0].Name)
	assert.Equal(t, "analytics", res.Subscribers[1].Name)
	assert.Equal(t, "billing", res.Subscribers[2].Name)
}

// Scenario: unknown type is rejected, audited as dropped-invalid, and leaves
// throttle and breaker counters untouched.
func TestPublish_UnknownType(t *testing.T) {
	f := newFixture(t, 2, 5)
	ctx := context.Background()

	res, err := f.bus.Publish(ctx, domain.SignalInput{
		Type:           "not.a.real.signal",
		OrganizationID: "acme",
		Payload:        map[string]any{},
		SourceModule:   "test",
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, domain.ErrUnknownSignalType)
	assert.Equal(t, domain.OutcomeDroppedInvalid, res.Outcome)

	entries, lerr := f.audit.ListRecent(ctx, "acme", 10)
	require.NoError(t, lerr)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutcomeDroppedInvalid, entries[0].Outcome)

	// Invalid publishes must not consume throttle budget: with limit 2,
	// two valid publishes still go through.
	for i := 0; i < 2; i++ {
		res, err := f.bus.Publish(ctx, qualifiedInput("acme"))
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeDelivered, res.Outcome)
	}
}

func TestPublish_InvalidPayload(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	invoked := false
	_, err := f.bus.Subscribe(domain.TypeLeadQualified, "pipeline", func(ctx context.Context, sig *domain.Signal) error {
		invoked = true
		return nil
	})
	require.NoError(t, err)

	res, err := f.bus.Publish(ctx, domain.SignalInput{
		Type:           domain.TypeLeadQualified,
		OrganizationID: "acme",
		Payload:        map[string]any{"score": 0.5}, // leadId missing
		SourceModule:   "scoring",
	})

	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	assert.Equal(t, domain.OutcomeDroppedInvalid, res.Outcome)
	assert.False(t, invoked, "no dispatch may occur for invalid input")
}

func TestPublish_MissingOrganization(t *testing.T) {
	f := newFixture(t, 100, 5)

	in := qualifiedInput("")
	res, err := f.bus.Publish(context.Background(), in)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.OutcomeDroppedInvalid, res.Outcome)
}

// Scenario A: limit 100/window. 100 signals admitted, the 101st in the same
// window is dropped-throttled with no dispatch; the next window admits again.
func TestPublish_ThrottleLimit(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	var calls atomic.Int64
	_, err := f.bus.Subscribe(domain.TypeLeadQualified, "pipeline", func(ctx context.Context, sig *domain.Signal) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		res, err := f.bus.Publish(ctx, qualifiedInput("acme"))
		require.NoError(t, err)
		require.Equal(t, domain.OutcomeDelivered, res.Outcome, "publish %d should be admitted", i+1)
	}

	res, err := f.bus.Publish(ctx, qualifiedInput("acme"))
	require.NoError(t, err, "throttled is a normal outcome, not an error")
	assert.Equal(t, domain.OutcomeDroppedThrottled, res.Outcome)
	assert.Equal(t, int64(100), calls.Load(), "the 101st publish must not dispatch")

	// Another tenant is unaffected.
	res, err = f.bus.Publish(ctx, qualifiedInput("globex"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDelivered, res.Outcome)

	// The next window rolls the counter over.
	f.clock.Advance(time.Minute)
	res, err = f.bus.Publish(ctx, qualifiedInput("acme"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDelivered, res.Outcome)

	// 100 delivered + 1 throttled + 1 after rollover.
	assert.Equal(t, 102, auditCount(t, f, "acme"))
}

// Scenario B: threshold 5. Five consecutive failing dispatches open the
// breaker; the sixth publish is dropped without invoking the handler.
func TestPublish_CircuitOpensAfterThreshold(t *testing.T) {
	f := newFixture(t, 1000, 5)
	ctx := context.Background()

	var calls atomic.Int64
	_, err := f.bus.Subscribe(domain.TypeDealStageChanged, "webhooks", func(ctx context.Context, sig *domain.Signal) error {
		calls.Add(1)
		return errors.New("downstream unavailable")
	})
	require.NoError(t, err)

	in := domain.SignalInput{
		Type:           domain.TypeDealStageChanged,
		OrganizationID: "acme",
		Payload:        map[string]any{"dealId": "d-1", "toStage": "negotiation"},
		SourceModule:   "deals",
	}

	for i := 0; i < 5; i++ {
		res, err := f.bus.Publish(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeDeliveredWithErrors, res.Outcome)
	}
	assert.Equal(t, int64(5), calls.Load())

	res, err := f.bus.Publish(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDroppedCircuitOpen, res.Outcome)
	assert.Empty(t, res.Subscribers)
	assert.Equal(t, int64(5), calls.Load(), "open breaker must invoke zero subscribers")
}

func TestPublish_BreakerHalfOpenRecovery(t *testing.T) {
	f := newFixture(t, 1000, 5)
	ctx := context.Background()

	var fail atomic.Bool
	fail.Store(true)
	_, err := f.bus.Subscribe(domain.TypeDealStageChanged, "webhooks", func(ctx context.Context, sig *domain.Signal) error {
		if fail.Load() {
			return errors.New("downstream unavailable")
		}
		return nil
	})
	require.NoError(t, err)

	in := domain.SignalInput{
		Type:           domain.TypeDealStageChanged,
		OrganizationID: "acme",
		Payload:        map[string]any{"dealId": "d-1", "toStage": "negotiation"},
		SourceModule:   "deals",
	}

	for i := 0; i < 5; i++ {
		_, err := f.bus.Publish(ctx, in)
		require.NoError(t, err)
	}

	// Still isolated before the cool-down elapses.
	res, err := f.bus.Publish(ctx, in)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDroppedCircuitOpen, res.Outcome)

	// After the cool-down the next dispatch is attempted (half-open) and a
	// success closes the breaker.
	f.clock.Advance(61 * time.Second)
	fail.Store(false)

	res, err = f.bus.Publish(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDelivered, res.Outcome)

	// Closed again: failures reset, a single new failure does not re-open.
	fail.Store(true)
	res, err = f.bus.Publish(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDeliveredWithErrors, res.Outcome)
	fail.Store(false)
	res, err = f.bus.Publish(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDelivered, res.Outcome)
}

func TestPublish_BreakerHalfOpenFailureReopens(t *testing.T) {
	f := newFixture(t, 1000, 5)
	ctx := context.Background()

	_, err := f.bus.Subscribe(domain.TypeDealStageChanged, "webhooks", func(ctx context.Context, sig *domain.Signal) error {
		return errors.New("still down")
	})
	require.NoError(t, err)

	in := domain.SignalInput{
		Type:           domain.TypeDealStageChanged,
		OrganizationID: "acme",
		Payload:        map[string]any{"dealId": "d-1", "toStage": "negotiation"},
		SourceModule:   "deals",
	}

	for i := 0; i < 5; i++ {
		_, err := f.bus.Publish(ctx, in)
		require.NoError(t, err)
	}

	// Probe after cool-down fails: re-opens for another full cool-down.
	f.clock.Advance(61 * time.Second)
	res, err := f.bus.Publish(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDeliveredWithErrors, res.Outcome, "the probe itself is dispatched")

	f.clock.Advance(30 * time.Second)
	res, err = f.bus.Publish(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDroppedCircuitOpen, res.Outcome, "half-open failure restarts the cool-down")
}

// Scenario D: one succeeding and one failing handler. The publish is
// delivered-with-handler-errors and both results appear in the audit entry.
func TestPublish_HandlerFailureIsolation(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	var okCalls atomic.Int64
	_, err := f.bus.Subscribe(domain.TypeLeadIntentHigh, "sequencer", func(ctx context.Context, sig *domain.Signal) error {
		okCalls.Add(1)
		return nil
	})
	require.NoError(t, err)
	_, err = f.bus.Subscribe(domain.TypeLeadIntentHigh, "alerts", func(ctx context.Context, sig *domain.Signal) error {
		return errors.New("smtp refused")
	})
	require.NoError(t, err)

	res, err := f.bus.Publish(ctx, domain.SignalInput{
		Type:           domain.TypeLeadIntentHigh,
		OrganizationID: "acme",
		Payload:        map[string]any{"leadId": "lead-1", "intentScore": 0.97},
		SourceModule:   "scoring",
	})
	require.NoError(t, err, "handler failures never propagate to the producer")

	assert.Equal(t, domain.OutcomeDeliveredWithErrors, res.Outcome)
	assert.Equal(t, int64(1), okCalls.Load(), "the failing handler must not prevent the other from running")

	entries, err := f.audit.ListRecent(ctx, "acme", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Subscribers, 2)

	byName := map[string]domain.SubscriberResult{}
	for _, r := range entries[0].Subscribers {
		byName[r.Name] = r
	}
	assert.True(t, byName["sequencer"].OK)
	assert.False(t, byName["alerts"].OK)
	assert.Contains(t, byName["alerts"].Error, "smtp refused")
}

func TestPublish_HandlerPanicIsCaught(t *testing.T) {
	f := newFixture(t, 100, 5)

	_, err := f.bus.Subscribe(domain.TypeLeadQualified, "flaky", func(ctx context.Context, sig *domain.Signal) error {
		panic("boom")
	})
	require.NoError(t, err)

	res, err := f.bus.Publish(context.Background(), qualifiedInput("acme"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDeliveredWithErrors, res.Outcome)
	require.Len(t, res.Subscribers, 1)
	assert.Contains(t, res.Subscribers[0].Error, "handler panicked")
}

func TestPublish_HandlerTimeout(t *testing.T) {
	clock := newFakeClock()
	audit := memory.NewAuditStore("test")
	bus := coordinator.New(
		registry.New(),
		throttle.New(memory.NewThrottleStore("test"), throttle.WithClock(clock.Now)),
		breaker.New(memory.NewBreakerStore("test"), memory.NewLocker(), breaker.WithClock(clock.Now)),
		audit,
		coordinator.WithHandlerTimeout(50*time.Millisecond),
	)

	release := make(chan struct{})
	defer close(release)
	_, err := bus.Subscribe(domain.TypeLeadQualified, "stuck", func(ctx context.Context, sig *domain.Signal) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	res, err := bus.Publish(context.Background(), qualifiedInput("acme"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDeliveredWithErrors, res.Outcome)
	require.Len(t, res.Subscribers, 1)
	assert.Contains(t, res.Subscribers[0].Error, "timed out")
}

func TestPublish_NoSubscribers(t *testing.T) {
	f := newFixture(t, 100, 5)

	res, err := f.bus.Publish(context.Background(), qualifiedInput("acme"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDelivered, res.Outcome)
	assert.Empty(t, res.Subscribers)
	assert.Equal(t, 1, auditCount(t, f, "acme"), "even a no-op publish is audited")
}

func TestPublish_EveryCallProducesOneAuditEntry(t *testing.T) {
	f := newFixture(t, 2, 5)
	ctx := context.Background()

	_, err := f.bus.Subscribe(domain.TypeLeadQualified, "failing", func(ctx context.Context, sig *domain.Signal) error {
		return errors.New("nope")
	})
	require.NoError(t, err)

	// delivered-with-errors ×2, throttled ×1, invalid ×1.
	for i := 0; i < 3; i++ {
		_, err := f.bus.Publish(ctx, qualifiedInput("acme"))
		require.NoError(t, err)
	}
	_, _ = f.bus.Publish(ctx, domain.SignalInput{Type: "bogus.type", OrganizationID: "acme", SourceModule: "test"})

	assert.Equal(t, 4, auditCount(t, f, "acme"))
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	var calls atomic.Int64
	sub, err := f.bus.Subscribe(domain.TypeLeadQualified, "pipeline", func(ctx context.Context, sig *domain.Signal) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)

	_, err = f.bus.Publish(ctx, qualifiedInput("acme"))
	require.NoError(t, err)
	f.bus.Unsubscribe(sub)
	_, err = f.bus.Publish(ctx, qualifiedInput("acme"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
}

func TestSubscribeCategory(t *testing.T) {
	f := newFixture(t, 100, 5)
	ctx := context.Background()

	var types sync.Map
	subs, err := f.bus.SubscribeCategory(domain.CategoryDeal, "audit-mirror", func(ctx context.Context, sig *domain.Signal) error {
		types.Store(sig.Type, true)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, subs, 4)

	_, err = f.bus.Publish(ctx, domain.SignalInput{
		Type:           domain.TypeDealWon,
		OrganizationID: "acme",
		Payload:        map[string]any{"dealId": "d-1", "amount": 100.0},
		SourceModule:   "deals",
	})
	require.NoError(t, err)
	_, err = f.bus.Publish(ctx, domain.SignalInput{
		Type:           domain.TypeDealLost,
		OrganizationID: "acme",
		Payload:        map[string]any{"dealId": "d-2"},
		SourceModule:   "deals",
	})
	require.NoError(t, err)

	_, won := types.Load(domain.TypeDealWon)
	_, lost := types.Load(domain.TypeDealLost)
	assert.True(t, won)
	assert.True(t, lost)
}

func TestSubscribe_UnknownTypeRejected(t *testing.T) {
	f := newFixture(t, 100, 5)

	_, err := f.bus.Subscribe("nope.nothing", "x", func(ctx context.Context, sig *domain.Signal) error { return nil })
	assert.ErrorIs(t, err, domain.ErrUnknownSignalType)
}

func TestPublish_ConcurrentSameTenantThrottleIsExact(t *testing.T) {
	f := newFixture(t, 50, 5)
	ctx := context.Background()

	var admitted, throttled atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.bus.Publish(ctx, qualifiedInput("acme"))
			if !assert.NoError(t, err) {
				return
			}
			switch res.Outcome {
			case domain.OutcomeDelivered:
				admitted.Add(1)
			case domain.OutcomeDroppedThrottled:
				throttled.Add(1)
			default:
				t.Errorf("unexpected outcome %s", res.Outcome)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), admitted.Load(), "admission must be exact under concurrency")
	assert.Equal(t, int64(50), throttled.Load())
	assert.Equal(t, 100, auditCount(t, f, "acme"))
}

func TestPublish_TypedStructPayloadAccepted(t *testing.T) {
	f := newFixture(t, 100, 5)

	res, err := f.bus.Publish(context.Background(), domain.SignalInput{
		Type:           domain.TypeDealWon,
		OrganizationID: "acme",
		Payload:        &domain.DealWonPayload{DealID: "d-9", Amount: 1250},
		SourceModule:   "deals",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDelivered, res.Outcome)
}

func ExampleCoordinator_Publish() {
	bus := coordinator.New(
		registry.New(),
		throttle.New(memory.NewThrottleStore("dev")),
		breaker.New(memory.NewBreakerStore("dev"), memory.NewLocker()),
		memory.NewAuditStore("dev"),
	)

	_, _ = bus.Subscribe(domain.TypeLeadQualified, "sequencer", func(ctx context.Context, sig *domain.Signal) error {
		p := sig.Payload.(domain.LeadQualifiedPayload)
		fmt.Printf("start outreach for %s (score %.2f)\n", p.LeadID, p.Score)
		return nil
	})

	res, _ := bus.Publish(context.Background(), domain.SignalInput{
		Type:           domain.TypeLeadQualified,
		OrganizationID: "acme",
		Payload:        map[string]any{"leadId": "lead-42", "score": 0.88},
		SourceModule:   "scoring",
	})
	fmt.Println(res.Outcome)
	// Output:
	// start outreach for lead-42 (score 0.88)
	// delivered
}

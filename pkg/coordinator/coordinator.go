// Package coordinator implements the Signal Coordinator, the façade every
// business module talks to.
//
// The publish pipeline runs, in order: payload validation, per-tenant
// throttle check, per-tenant circuit breaker check, concurrent fan-out to
// subscribers, breaker outcome report, and a single audit entry covering the
// whole call. Handler errors never propagate to the producer.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/growthkit/signalbus/internal/logging"
	"github.com/growthkit/signalbus/pkg/breaker"
	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/observability"
	"github.com/growthkit/signalbus/pkg/ports"
	"github.com/growthkit/signalbus/pkg/registry"
	"github.com/growthkit/signalbus/pkg/throttle"
)

// DefaultHandlerTimeout bounds one subscriber's work for one signal.
// A handler exceeding it is recorded as failed for that dispatch.
const DefaultHandlerTimeout = 30 * time.Second

// DefaultPriority is used when a subscriber does not specify one.
const DefaultPriority = 100

// Coordinator validates, throttles, circuit-checks, dispatches, and audits.
type Coordinator struct {
	registry       *registry.Registry
	throttler      *throttle.Throttler
	breaker        *breaker.Breaker
	audit          ports.AuditStore
	logger         *slog.Logger
	metrics        *observability.Metrics
	handlerTimeout time.Duration
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics attaches a Prometheus metric set.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithHandlerTimeout overrides the per-subscriber dispatch timeout.
func WithHandlerTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.handlerTimeout = d
	}
}

// New wires a Coordinator from its collaborators.
func New(reg *registry.Registry, th *throttle.Throttler, br *breaker.Breaker, audit ports.AuditStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:       reg,
		throttler:      th,
		breaker:        br,
		audit:          audit,
		logger:         logging.NewNop(),
		handlerTimeout: DefaultHandlerTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	priority int
}

// WithPriority sets the dispatch priority. Lower values dispatch first;
// subscribers with equal priority keep registration order.
func WithPriority(p int) SubscribeOption {
	return func(cfg *subscribeConfig) {
		cfg.priority = p
	}
}

// Subscribe registers a handler for a signal type.
// Returns an error for a type outside the catalog.
func (c *Coordinator) Subscribe(t domain.SignalType, name string, h registry.Handler, opts ...SubscribeOption) (registry.Subscription, error) {
	if !t.Valid() {
		return registry.Subscription{}, &domain.ValidationError{Type: t, Reason: "type is not in the catalog", Err: domain.ErrUnknownSignalType}
	}

	cfg := subscribeConfig{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := c.registry.Register(t, name, cfg.priority, h)
	c.logger.Debug("subscriber registered", "type", t, "name", name, "priority", cfg.priority)
	return sub, nil
}

// SubscribeCategory registers one handler for every catalog type in a category.
func (c *Coordinator) SubscribeCategory(cat domain.Category, name string, h registry.Handler, opts ...SubscribeOption) ([]registry.Subscription, error) {
	types := domain.TypesIn(cat)
	if len(types) == 0 {
		return nil, fmt.Errorf("unknown signal category %q", cat)
	}

	subs := make([]registry.Subscription, 0, len(types))
	for _, t := range types {
		sub, err := c.Subscribe(t, name, h, opts...)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Unsubscribe removes a subscription. In-flight dispatches already holding a
// snapshot still complete against the old handler.
func (c *Coordinator) Unsubscribe(sub registry.Subscription) {
	c.registry.Deregister(sub)
}

// Publish runs the full pipeline for one signal. The returned error is
// non-nil only for validation failures; throttled and circuit-open are
// normal, testable outcomes carried in the result. The call blocks until
// every subscriber settles, so one producer's sequential publishes are
// dispatched in publish order.
func (c *Coordinator) Publish(ctx context.Context, in domain.SignalInput) (domain.PublishResult, error) {
	start := time.Now()

	// 1. Validate. Invalid input is audited but never counted against the
	// throttle window or the breaker's failure streak.
	sig, verr := c.validate(in)
	if verr != nil {
		c.logger.Warn("signal rejected", "type", in.Type, "org", in.OrganizationID, "error", verr)
		c.recordAudit(ctx, sig, domain.OutcomeDroppedInvalid, nil)
		return c.finish(sig, domain.OutcomeDroppedInvalid, nil, verr, start), verr
	}

	log := c.logger.With("signal", sig.ID, "type", sig.Type, "org", sig.OrganizationID)

	// 2. Throttle. A store failure fails open: dropping business traffic
	// because the counter backend hiccuped would be worse than briefly
	// exceeding the limit.
	admitted, err := c.throttler.TryAdmit(ctx, sig.OrganizationID)
	if err != nil {
		log.Error("throttle check failed, admitting", "error", err)
		admitted = true
	}
	if !admitted {
		log.Info("signal throttled")
		c.recordAudit(ctx, sig, domain.OutcomeDroppedThrottled, nil)
		return c.finish(sig, domain.OutcomeDroppedThrottled, nil, nil, start), nil
	}

	// 3. Circuit breaker. Same fail-open stance on store errors.
	allowed, err := c.breaker.Allow(ctx, sig.OrganizationID)
	if err != nil {
		log.Error("breaker check failed, allowing", "error", err)
		allowed = true
	}
	if !allowed {
		log.Info("signal dropped, circuit open")
		c.recordAudit(ctx, sig, domain.OutcomeDroppedCircuitOpen, nil)
		return c.finish(sig, domain.OutcomeDroppedCircuitOpen, nil, nil, start), nil
	}

	// 4+5. Fan out to every subscriber concurrently and wait for all of
	// them to settle.
	subs := c.registry.HandlersFor(sig.Type)
	results := c.dispatch(ctx, sig, subs)

	// 6. One failed subscriber marks the whole dispatch failed for the
	// breaker. A dispatch with zero subscribers counts as a success.
	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}
	if err := c.breaker.ReportOutcome(ctx, sig.OrganizationID, failed == 0); err != nil {
		log.Error("failed to report dispatch outcome to breaker", "error", err)
	}

	outcome := domain.OutcomeDelivered
	if failed > 0 {
		outcome = domain.OutcomeDeliveredWithErrors
		log.Warn("delivered with handler errors", "failed", failed, "total", len(results))
	}

	// 7. Exactly one audit entry per publish call.
	c.recordAudit(ctx, sig, outcome, results)

	return c.finish(sig, outcome, results, nil, start), nil
}

// validate checks the type against the catalog and decodes the payload into
// its typed shape. It always returns a stamped signal so the rejection can
// be audited under a real signal ID.
func (c *Coordinator) validate(in domain.SignalInput) (*domain.Signal, error) {
	if in.OrganizationID == "" {
		return domain.NewSignal(in, in.Payload), &domain.ValidationError{
			Type:   in.Type,
			Reason: "missing organizationId",
			Err:    domain.ErrInvalidPayload,
		}
	}

	payload, err := domain.DecodePayload(in.Type, in.Payload)
	if err != nil {
		return domain.NewSignal(in, in.Payload), err
	}
	return domain.NewSignal(in, payload), nil
}

// dispatch invokes every subscriber concurrently and collects their results
// in dispatch order. A slow or failing handler never blocks the others.
func (c *Coordinator) dispatch(ctx context.Context, sig *domain.Signal, subs []registry.Subscriber) []domain.SubscriberResult {
	if len(subs) == 0 {
		return nil
	}

	results := make([]domain.SubscriberResult, len(subs))
	done := make(chan int, len(subs))

	for i, sub := range subs {
		go func(i int, sub registry.Subscriber) {
			results[i] = c.invoke(ctx, sig, sub)
			done <- i
		}(i, sub)
	}

	// Settle-all join: wait for every handler, never fail fast. Once
	// dispatch starts the call runs to completion for audit accuracy.
	for range subs {
		<-done
	}
	return results
}

// invoke runs one handler with a timeout and panic isolation.
func (c *Coordinator) invoke(ctx context.Context, sig *domain.Signal, sub registry.Subscriber) domain.SubscriberResult {
	res := domain.SubscriberResult{SubscriberID: sub.ID, Name: sub.Name}
	start := time.Now()

	hctx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("handler panicked: %v", r)
			}
		}()
		errCh <- sub.Handler(hctx, sig)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-hctx.Done():
		// The handler goroutine is left to finish on its own; its result
		// no longer counts for this dispatch.
		err = fmt.Errorf("handler timed out after %s", c.handlerTimeout)
	}

	res.Latency = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		if c.metrics != nil {
			c.metrics.HandlerFailuresTotal.WithLabelValues(string(sig.Type), sub.Name).Inc()
		}
	} else {
		res.OK = true
	}
	if c.metrics != nil {
		c.metrics.HandlerDuration.WithLabelValues(string(sig.Type), sub.Name).Observe(res.Latency.Seconds())
	}
	return res
}

// recordAudit persists the entry for one publish call. A failed write is
// surfaced to operational logging and metrics; it never fails the publish,
// but it must not be swallowed silently either.
func (c *Coordinator) recordAudit(ctx context.Context, sig *domain.Signal, outcome domain.Outcome, results []domain.SubscriberResult) {
	entry := domain.NewAuditEntry(sig, outcome, results)
	if err := c.audit.Record(ctx, entry); err != nil {
		c.logger.Error("audit write failed",
			"signal", sig.ID, "org", sig.OrganizationID, "outcome", outcome, "error", err)
		if c.metrics != nil {
			c.metrics.AuditWriteFailuresTotal.Inc()
		}
	}
}

func (c *Coordinator) finish(sig *domain.Signal, outcome domain.Outcome, results []domain.SubscriberResult, err error, start time.Time) domain.PublishResult {
	if c.metrics != nil {
		c.metrics.PublishesTotal.WithLabelValues(string(sig.Type), string(outcome)).Inc()
		c.metrics.PublishDuration.WithLabelValues(string(sig.Type)).Observe(time.Since(start).Seconds())
	}
	return domain.PublishResult{
		SignalID:    sig.ID,
		Type:        sig.Type,
		Outcome:     outcome,
		Err:         err,
		Subscribers: results,
	}
}

package signalbus

import (
	"fmt"
	"io"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/growthkit/signalbus/pkg/adapters/memory"
	mongoadapter "github.com/growthkit/signalbus/pkg/adapters/mongo"
	redisadapter "github.com/growthkit/signalbus/pkg/adapters/redis"
	"github.com/growthkit/signalbus/pkg/breaker"
	"github.com/growthkit/signalbus/pkg/config"
	"github.com/growthkit/signalbus/pkg/coordinator"
	"github.com/growthkit/signalbus/pkg/domain"
	"github.com/growthkit/signalbus/pkg/observability"
	"github.com/growthkit/signalbus/pkg/ports"
	"github.com/growthkit/signalbus/pkg/registry"
	"github.com/growthkit/signalbus/pkg/throttle"
)

// Bus is the high-level entry point for the signalbus library.
// It wires the coordination core to its backing stores and provides a
// simplified API for consumers.
type Bus struct {
	*coordinator.Coordinator

	registry  *registry.Registry
	throttler *throttle.Throttler
	breaker   *breaker.Breaker

	breakerStore  ports.BreakerStateStore
	throttleStore ports.ThrottleStore
	auditStore    ports.AuditStore
	locker        ports.TenantLocker

	metrics *observability.Metrics
	logger  *slog.Logger
	closers []io.Closer
}

// Option defines a functional option for configuring the Bus.
type Option func(*Bus)

// SubscribeOption configures a single subscription.
type SubscribeOption = coordinator.SubscribeOption

// WithPriority sets a subscriber's dispatch order (lower runs first).
func WithPriority(p int) SubscribeOption {
	return coordinator.WithPriority(p)
}

// WithLogger sets a custom structured logger for the bus.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithMetrics registers a Prometheus metrics set; breaker transitions,
// publish outcomes and handler latencies are recorded against it.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithBreakerStore injects a custom breaker state store, bypassing the
// default store selection.
func WithBreakerStore(s ports.BreakerStateStore) Option {
	return func(b *Bus) {
		b.breakerStore = s
	}
}

// WithThrottleStore injects a custom throttle counter store.
func WithThrottleStore(s ports.ThrottleStore) Option {
	return func(b *Bus) {
		b.throttleStore = s
	}
}

// WithAuditStore injects a custom audit trail store.
func WithAuditStore(s ports.AuditStore) Option {
	return func(b *Bus) {
		b.auditStore = s
	}
}

// WithTenantLocker injects a custom per-tenant lock manager used to
// serialize breaker state transitions.
func WithTenantLocker(l ports.TenantLocker) Option {
	return func(b *Bus) {
		b.locker = l
	}
}

// New initializes a new Bus.
// A nil cfg uses config.Default(): in-process stores, 100 signals per
// tenant per minute, breaker opening after 5 consecutive failures.
// When cfg.Redis.Address is set, breaker and throttle state move to Redis
// so replicas share them; when cfg.Mongo.URI is set, the audit trail is
// persisted to MongoDB. Injected stores take precedence over cfg.
func New(cfg *config.Config, opts ...Option) (*Bus, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	bus := &Bus{}

	// Apply options first so defaults only fill what was not injected.
	for _, opt := range opts {
		opt(bus)
	}

	if bus.logger == nil {
		bus.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	if err := bus.initStores(cfg); err != nil {
		bus.Close()
		return nil, err
	}

	bus.registry = registry.New()
	bus.throttler = throttle.New(bus.throttleStore,
		throttle.WithLimit(cfg.Throttle.Limit),
		throttle.WithWindow(cfg.Throttle.Window),
	)

	breakerOpts := []breaker.Option{
		breaker.WithThreshold(cfg.Breaker.Threshold),
		breaker.WithCoolDown(cfg.Breaker.CoolDown),
		breaker.WithLogger(bus.logger),
	}
	if bus.metrics != nil {
		m := bus.metrics
		breakerOpts = append(breakerOpts, breaker.WithTransitionHook(
			func(organizationID string, from, to domain.BreakerStatus) {
				m.BreakerTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
			},
		))
	}
	bus.breaker = breaker.New(bus.breakerStore, bus.locker, breakerOpts...)

	coordOpts := []coordinator.Option{
		coordinator.WithLogger(bus.logger),
		coordinator.WithHandlerTimeout(cfg.Dispatch.HandlerTimeout),
	}
	if bus.metrics != nil {
		coordOpts = append(coordOpts, coordinator.WithMetrics(bus.metrics))
	}
	bus.Coordinator = coordinator.New(bus.registry, bus.throttler, bus.breaker, bus.auditStore, coordOpts...)

	return bus, nil
}

// initStores fills any store slot not covered by an option, dialing Redis
// and MongoDB when the configuration names them.
func (b *Bus) initStores(cfg *config.Config) error {
	needRedis := cfg.Redis.Address != "" &&
		(b.breakerStore == nil || b.throttleStore == nil || b.locker == nil)
	if needRedis {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		prefix := cfg.Environment + ":signals:"
		store := redisadapter.NewFromClient(client, redisadapter.WithPrefix(prefix))
		b.closers = append(b.closers, store)
		if b.breakerStore == nil {
			b.breakerStore = store
		}
		if b.throttleStore == nil {
			b.throttleStore = store
		}
		if b.locker == nil {
			b.locker = redisadapter.NewLocker(client, prefix)
		}
	}

	if b.auditStore == nil && cfg.Mongo.URI != "" {
		store, err := mongoadapter.NewStore(cfg.Mongo.URI, cfg.Environment)
		if err != nil {
			return fmt.Errorf("connecting audit store: %w", err)
		}
		b.closers = append(b.closers, store)
		b.auditStore = store
	}

	if b.breakerStore == nil {
		b.breakerStore = memory.NewBreakerStore(cfg.Environment)
	}
	if b.throttleStore == nil {
		b.throttleStore = memory.NewThrottleStore(cfg.Environment)
	}
	if b.auditStore == nil {
		b.auditStore = memory.NewAuditStore(cfg.Environment)
	}
	if b.locker == nil {
		b.locker = memory.NewLocker()
	}
	return nil
}

// Breaker exposes the circuit breaker for inspection surfaces.
func (b *Bus) Breaker() *breaker.Breaker {
	return b.breaker
}

// Throttler exposes the rate limiter for inspection surfaces.
func (b *Bus) Throttler() *throttle.Throttler {
	return b.throttler
}

// Audit exposes the audit trail store.
func (b *Bus) Audit() ports.AuditStore {
	return b.auditStore
}

// Subscriptions exposes the subscriber registry.
func (b *Bus) Subscriptions() *registry.Registry {
	return b.registry
}

// Close releases any backing connections (Redis, MongoDB). In-memory
// deployments have nothing to release and Close is a no-op.
func (b *Bus) Close() error {
	var firstErr error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closers = nil
	return firstErr
}

/*
Package ports defines the driven ports (interfaces) for the Signal Coordination Bus.

These interfaces decouple the coordinator from external implementations, allowing
the bus to work with various storage backends for audit entries and per-tenant
state. Adapters live under pkg/adapters.

# Key Interfaces

  - AuditStore: persists one immutable AuditEntry per publish call.
  - BreakerStateStore: persists per-organization circuit breaker state.
  - ThrottleStore: atomic per-organization window counters.
  - TenantLocker: serializes read-modify-write of one tenant's breaker state.
*/
package ports

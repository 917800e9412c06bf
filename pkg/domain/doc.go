/*
Package domain contains the core domain models for the Signal Coordination Bus.

It defines the fundamental entities of the bus: the closed catalog of signal
types and their payload shapes, the immutable Signal record, the per-publish
AuditEntry, and the per-tenant circuit breaker and throttle window state.
This package is kept pure and free of external I/O or persistence concerns,
following Hexagonal Architecture principles.

# Key Entities

  - SignalType / Category: the closed taxonomy of events business modules exchange.
  - Signal: an immutable typed event, created once at publish time.
  - PublishResult / AuditEntry: the outcome of one publish call and its durable record.
  - BreakerState / ThrottleWindow: per-organization fault-isolation state.
*/
package domain

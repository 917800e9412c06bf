/*
Package signalbus is an in-process coordination bus for multi-tenant business
signals. It routes typed signals (lead qualified, deal won, enrichment
completed, ...) from publishers to priority-ordered subscribers while
enforcing per-tenant rate limits and a per-tenant circuit breaker, and records
an immutable audit entry for every publish attempt.

# Concept

A publisher hands the bus a SignalInput (type, organization, payload). The bus
validates the payload against the signal catalog, checks the tenant's throttle
window and circuit breaker, fans the signal out to every subscriber of that
type concurrently, feeds the dispatch outcome back into the breaker, and
appends one audit entry describing what happened. Subscribers never see each
other; a slow or failing subscriber only affects its own result.

The bus follows a Hexagonal Architecture: the coordination core depends on
small port interfaces (BreakerStateStore, ThrottleStore, AuditStore,
TenantLocker), and adapters provide in-memory, Redis and MongoDB
implementations. This lets a single-process deployment run entirely in memory
while a multi-replica deployment shares breaker and throttle state through
Redis and persists the audit trail in MongoDB.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/growthkit/signalbus"
		"github.com/growthkit/signalbus/pkg/domain"
	)

	func main() {
		bus, err := signalbus.New(nil) // in-memory defaults
		if err != nil {
			log.Fatal(err)
		}
		defer bus.Close()

		bus.Subscribe(domain.TypeDealWon, "billing", func(ctx context.Context, sig *domain.Signal) error {
			payload := sig.Payload.(domain.DealWonPayload)
			log.Printf("invoice deal %s for %.2f", payload.DealID, payload.Amount)
			return nil
		})

		res, err := bus.Publish(context.Background(), domain.SignalInput{
			Type:           domain.TypeDealWon,
			OrganizationID: "org-1",
			Payload:        map[string]any{"dealId": "d-42", "amount": 1250.0},
		})
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("outcome: %s", res.Outcome)
	}

# Shared State

Pass a Config with Redis.Address and Mongo.URI set (or inject stores with
WithBreakerStore, WithThrottleStore and WithAuditStore) to share breaker and
throttle state across replicas and keep a durable audit trail.
*/
package signalbus

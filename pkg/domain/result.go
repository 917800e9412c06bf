package domain

import "time"

// Outcome classifies what happened to one publish call.
type Outcome string

const (
	OutcomeDelivered           Outcome = "delivered"
	OutcomeDeliveredWithErrors Outcome = "delivered-with-handler-errors"
	OutcomeDroppedInvalid      Outcome = "dropped-invalid"
	OutcomeDroppedThrottled    Outcome = "dropped-throttled"
	OutcomeDroppedCircuitOpen  Outcome = "dropped-circuit-open"
)

// Dropped reports whether the signal never reached any subscriber.
func (o Outcome) Dropped() bool {
	switch o {
	case OutcomeDroppedInvalid, OutcomeDroppedThrottled, OutcomeDroppedCircuitOpen:
		return true
	}
	return false
}

// SubscriberResult records one handler's outcome for one signal.
type SubscriberResult struct {
	SubscriberID string        `json:"subscriberId" bson:"subscriber_id"`
	Name         string        `json:"name" bson:"name"`
	OK           bool          `json:"ok" bson:"ok"`
	Error        string        `json:"error,omitempty" bson:"error,omitempty"`
	Latency      time.Duration `json:"latency" bson:"latency"`
}

// PublishResult is returned to the producer. Most emitters fire and forget,
// but critical-path callers and tests inspect it.
type PublishResult struct {
	SignalID    string             `json:"signalId"`
	Type        SignalType         `json:"type"`
	Outcome     Outcome            `json:"outcome"`
	Err         error              `json:"-"`
	Subscribers []SubscriberResult `json:"subscribers,omitempty"`
}

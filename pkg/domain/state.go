package domain

import "time"

// BreakerStatus defines the circuit breaker's position.
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "closed"    // Normal dispatch
	BreakerOpen     BreakerStatus = "open"      // Failure isolation, drops everything until cool-down
	BreakerHalfOpen BreakerStatus = "half-open" // One probe dispatch decides open vs closed
)

// BreakerState is the per-organization circuit breaker snapshot. It lives in
// a shared store so multiple process instances observe the same state.
type BreakerState struct {
	Status              BreakerStatus `json:"status"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	OpenedAt            time.Time     `json:"openedAt,omitzero"`
}

// NewBreakerState returns the initial closed state for a tenant.
func NewBreakerState() *BreakerState {
	return &BreakerState{Status: BreakerClosed}
}

// ThrottleWindow is the per-organization admission window snapshot.
// Count never exceeds the configured limit within
// [WindowStart, WindowStart+window).
type ThrottleWindow struct {
	WindowStart time.Time `json:"windowStart"`
	Count       int64     `json:"count"`
}

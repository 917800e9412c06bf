package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownSignalType is returned when a publish names a type outside the catalog.
var ErrUnknownSignalType = errors.New("unknown signal type")

// ErrInvalidPayload is returned when a payload does not match its type's shape.
var ErrInvalidPayload = errors.New("invalid signal payload")

// ErrStateNotFound is returned when a tenant has no persisted breaker or throttle state yet.
var ErrStateNotFound = errors.New("tenant state not found")

// ValidationError describes why a signal was rejected before dispatch.
// It is permanent: the same input will always fail, so callers must not retry.
type ValidationError struct {
	Type   SignalType
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("signal validation failed for %q: %s", e.Type, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

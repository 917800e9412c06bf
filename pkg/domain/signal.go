package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignalInput is what producers hand to the coordinator. The coordinator
// validates it and stamps identity and time to form the immutable Signal.
type SignalInput struct {
	Type           SignalType `json:"type"`
	OrganizationID string     `json:"organizationId"`
	WorkspaceID    string     `json:"workspaceId,omitempty"`
	Payload        any        `json:"payload"`
	SourceModule   string     `json:"sourceModule"`
	CorrelationID  string     `json:"correlationId,omitempty"`
}

// Signal is an immutable event record. It is never mutated after creation;
// every lifecycle transition is recorded as a separate AuditEntry instead.
type Signal struct {
	ID             string     `json:"id"`
	Type           SignalType `json:"type"`
	OrganizationID string     `json:"organizationId"`
	WorkspaceID    string     `json:"workspaceId,omitempty"`
	Payload        any        `json:"payload"`
	SourceModule   string     `json:"sourceModule"`
	CorrelationID  string     `json:"correlationId,omitempty"`
	EmittedAt      time.Time  `json:"emittedAt"`
}

// NewSignal stamps an input with a fresh ID and emission time.
// payload is the decoded, typed payload (see DecodePayload).
func NewSignal(in SignalInput, payload any) *Signal {
	return &Signal{
		ID:             uuid.NewString(),
		Type:           in.Type,
		OrganizationID: in.OrganizationID,
		WorkspaceID:    in.WorkspaceID,
		Payload:        payload,
		SourceModule:   in.SourceModule,
		CorrelationID:  in.CorrelationID,
		EmittedAt:      time.Now().UTC(),
	}
}

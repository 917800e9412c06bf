package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is the durable record of one publish call. Created once,
// never updated; exactly one entry exists per publish regardless of outcome.
type AuditEntry struct {
	ID             string             `json:"id" bson:"_id"`
	SignalID       string             `json:"signalId" bson:"signal_id"`
	OrganizationID string             `json:"organizationId" bson:"organization_id"`
	WorkspaceID    string             `json:"workspaceId,omitempty" bson:"workspace_id,omitempty"`
	Type           SignalType         `json:"type" bson:"type"`
	SourceModule   string             `json:"sourceModule" bson:"source_module"`
	CorrelationID  string             `json:"correlationId,omitempty" bson:"correlation_id,omitempty"`
	Outcome        Outcome            `json:"outcome" bson:"outcome"`
	Subscribers    []SubscriberResult `json:"subscribers,omitempty" bson:"subscribers,omitempty"`
	Timestamp      time.Time          `json:"timestamp" bson:"timestamp"`
}

// NewAuditEntry summarizes a finished publish call for the audit trail.
func NewAuditEntry(sig *Signal, outcome Outcome, subs []SubscriberResult) AuditEntry {
	return AuditEntry{
		ID:             uuid.NewString(),
		SignalID:       sig.ID,
		OrganizationID: sig.OrganizationID,
		WorkspaceID:    sig.WorkspaceID,
		Type:           sig.Type,
		SourceModule:   sig.SourceModule,
		CorrelationID:  sig.CorrelationID,
		Outcome:        outcome,
		Subscribers:    subs,
		Timestamp:      time.Now().UTC(),
	}
}

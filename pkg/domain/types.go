package domain

import "strings"

// Category groups signal types by the business area that emits them.
type Category string

const (
	CategoryDiscovery  Category = "discovery"
	CategoryLead       Category = "lead"
	CategoryEngagement Category = "engagement"
	CategoryDeal       Category = "deal"
	CategoryWorkflow   Category = "workflow"
	CategorySystem     Category = "system"
)

// SignalType identifies one kind of signal. The set of valid types is closed;
// producers cannot invent types at runtime.
type SignalType string

// Discovery signals, emitted by the web discovery / scraping module.
const (
	TypeCompanyFound    SignalType = "discovery.company-found"
	TypeContactFound    SignalType = "discovery.contact-found"
	TypeScanCompleted   SignalType = "discovery.scan-completed"
	TypeSourceExhausted SignalType = "discovery.source-exhausted"
)

// Lead intelligence signals, emitted by the scoring module.
const (
	TypeLeadCreated      SignalType = "lead.created"
	TypeLeadEnriched     SignalType = "lead.enriched"
	TypeLeadScored       SignalType = "lead.scored"
	TypeLeadQualified    SignalType = "lead.qualified"
	TypeLeadDisqualified SignalType = "lead.disqualified"
	TypeLeadIntentHigh   SignalType = "lead.intent-high"
)

// Engagement signals, emitted by the outreach sequencing module.
const (
	TypeSequenceStarted SignalType = "engagement.sequence-started"
	TypeMessageSent     SignalType = "engagement.message-sent"
	TypeReplyReceived   SignalType = "engagement.reply-received"
	TypeMeetingBooked   SignalType = "engagement.meeting-booked"
	TypeOptOut          SignalType = "engagement.opt-out"
)

// Deal lifecycle signals, emitted by the pipeline module.
const (
	TypeDealCreated      SignalType = "deal.created"
	TypeDealStageChanged SignalType = "deal.stage-changed"
	TypeDealWon          SignalType = "deal.won"
	TypeDealLost         SignalType = "deal.lost"
)

// Workflow and system signals.
const (
	TypeWorkflowTriggered SignalType = "workflow.triggered"
	TypeWorkflowCompleted SignalType = "workflow.completed"
	TypeModuleReady       SignalType = "system.module-ready"
	TypeQuotaWarning      SignalType = "system.quota-warning"
)

// AllTypes returns every type in the catalog, grouped by declaration order.
func AllTypes() []SignalType {
	return []SignalType{
		TypeCompanyFound, TypeContactFound, TypeScanCompleted, TypeSourceExhausted,
		TypeLeadCreated, TypeLeadEnriched, TypeLeadScored, TypeLeadQualified,
		TypeLeadDisqualified, TypeLeadIntentHigh,
		TypeSequenceStarted, TypeMessageSent, TypeReplyReceived, TypeMeetingBooked,
		TypeOptOut,
		TypeDealCreated, TypeDealStageChanged, TypeDealWon, TypeDealLost,
		TypeWorkflowTriggered, TypeWorkflowCompleted,
		TypeModuleReady, TypeQuotaWarning,
	}
}

// TypesIn returns the catalog types belonging to a category.
func TypesIn(cat Category) []SignalType {
	var out []SignalType
	for _, t := range AllTypes() {
		if t.Category() == cat {
			out = append(out, t)
		}
	}
	return out
}

// Category derives the category from the type prefix (the part before the dot).
func (t SignalType) Category() Category {
	prefix, _, _ := strings.Cut(string(t), ".")
	return Category(prefix)
}

// Valid reports whether the type is part of the closed catalog.
func (t SignalType) Valid() bool {
	_, ok := payloadCatalog[t]
	return ok
}

func (t SignalType) String() string {
	return string(t)
}

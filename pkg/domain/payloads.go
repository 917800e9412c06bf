package domain

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Payload shapes, one per signal type. Producers may pass either the typed
// struct or a map with the same keys; DecodePayload normalizes both.

type CompanyFoundPayload struct {
	CompanyName string `mapstructure:"companyName" json:"companyName"`
	Domain      string `mapstructure:"domain" json:"domain"`
	Source      string `mapstructure:"source" json:"source,omitempty"`
}

type ContactFoundPayload struct {
	ContactID string `mapstructure:"contactId" json:"contactId"`
	CompanyID string `mapstructure:"companyId" json:"companyId,omitempty"`
	Email     string `mapstructure:"email" json:"email"`
}

type ScanCompletedPayload struct {
	ScanID         string `mapstructure:"scanId" json:"scanId"`
	CompaniesFound int    `mapstructure:"companiesFound" json:"companiesFound"`
	ContactsFound  int    `mapstructure:"contactsFound" json:"contactsFound"`
}

type SourceExhaustedPayload struct {
	Source string `mapstructure:"source" json:"source"`
}

type LeadCreatedPayload struct {
	LeadID      string `mapstructure:"leadId" json:"leadId"`
	CompanyName string `mapstructure:"companyName" json:"companyName,omitempty"`
}

type LeadEnrichedPayload struct {
	LeadID string   `mapstructure:"leadId" json:"leadId"`
	Fields []string `mapstructure:"fields" json:"fields,omitempty"`
}

type LeadScoredPayload struct {
	LeadID string  `mapstructure:"leadId" json:"leadId"`
	Score  float64 `mapstructure:"score" json:"score"`
}

type LeadQualifiedPayload struct {
	LeadID string  `mapstructure:"leadId" json:"leadId"`
	Score  float64 `mapstructure:"score" json:"score"`
}

type LeadDisqualifiedPayload struct {
	LeadID string `mapstructure:"leadId" json:"leadId"`
	Reason string `mapstructure:"reason" json:"reason,omitempty"`
}

type LeadIntentHighPayload struct {
	LeadID      string   `mapstructure:"leadId" json:"leadId"`
	IntentScore float64  `mapstructure:"intentScore" json:"intentScore"`
	Signals     []string `mapstructure:"signals" json:"signals,omitempty"`
}

type SequenceStartedPayload struct {
	SequenceID string `mapstructure:"sequenceId" json:"sequenceId"`
	LeadID     string `mapstructure:"leadId" json:"leadId"`
}

type MessageSentPayload struct {
	SequenceID string `mapstructure:"sequenceId" json:"sequenceId,omitempty"`
	LeadID     string `mapstructure:"leadId" json:"leadId"`
	Channel    string `mapstructure:"channel" json:"channel"`
	Step       int    `mapstructure:"step" json:"step,omitempty"`
}

type ReplyReceivedPayload struct {
	LeadID    string `mapstructure:"leadId" json:"leadId"`
	Channel   string `mapstructure:"channel" json:"channel,omitempty"`
	Sentiment string `mapstructure:"sentiment" json:"sentiment,omitempty"`
}

type MeetingBookedPayload struct {
	MeetingID string `mapstructure:"meetingId" json:"meetingId"`
	LeadID    string `mapstructure:"leadId" json:"leadId"`
}

type OptOutPayload struct {
	LeadID  string `mapstructure:"leadId" json:"leadId"`
	Channel string `mapstructure:"channel" json:"channel,omitempty"`
}

type DealCreatedPayload struct {
	DealID string `mapstructure:"dealId" json:"dealId"`
	LeadID string `mapstructure:"leadId" json:"leadId,omitempty"`
	Stage  string `mapstructure:"stage" json:"stage,omitempty"`
}

type DealStageChangedPayload struct {
	DealID    string `mapstructure:"dealId" json:"dealId"`
	FromStage string `mapstructure:"fromStage" json:"fromStage,omitempty"`
	ToStage   string `mapstructure:"toStage" json:"toStage"`
}

type DealWonPayload struct {
	DealID string  `mapstructure:"dealId" json:"dealId"`
	Amount float64 `mapstructure:"amount" json:"amount"`
}

type DealLostPayload struct {
	DealID string `mapstructure:"dealId" json:"dealId"`
	Reason string `mapstructure:"reason" json:"reason,omitempty"`
}

type WorkflowTriggeredPayload struct {
	WorkflowID  string `mapstructure:"workflowId" json:"workflowId"`
	TriggerType string `mapstructure:"triggerType" json:"triggerType,omitempty"`
}

type WorkflowCompletedPayload struct {
	WorkflowID string `mapstructure:"workflowId" json:"workflowId"`
	StepsRun   int    `mapstructure:"stepsRun" json:"stepsRun,omitempty"`
}

type ModuleReadyPayload struct {
	Module string `mapstructure:"module" json:"module"`
}

type QuotaWarningPayload struct {
	Resource string  `mapstructure:"resource" json:"resource"`
	UsedPct  float64 `mapstructure:"usedPct" json:"usedPct,omitempty"`
}

// payloadSpec binds a type to its payload shape and required keys.
type payloadSpec struct {
	decode   func(map[string]any) (any, error)
	required []string
}

// shape builds the catalog entry for one payload struct. The decoder returns
// the struct by value, so subscribers assert the plain type, never a pointer.
func shape[T any](required ...string) payloadSpec {
	return payloadSpec{
		decode: func(m map[string]any) (any, error) {
			var p T
			if err := mapstructure.Decode(m, &p); err != nil {
				return nil, err
			}
			return p, nil
		},
		required: required,
	}
}

var payloadCatalog = map[SignalType]payloadSpec{
	TypeCompanyFound:    shape[CompanyFoundPayload]("companyName", "domain"),
	TypeContactFound:    shape[ContactFoundPayload]("contactId", "email"),
	TypeScanCompleted:   shape[ScanCompletedPayload]("scanId"),
	TypeSourceExhausted: shape[SourceExhaustedPayload]("source"),

	TypeLeadCreated:      shape[LeadCreatedPayload]("leadId"),
	TypeLeadEnriched:     shape[LeadEnrichedPayload]("leadId"),
	TypeLeadScored:       shape[LeadScoredPayload]("leadId", "score"),
	TypeLeadQualified:    shape[LeadQualifiedPayload]("leadId", "score"),
	TypeLeadDisqualified: shape[LeadDisqualifiedPayload]("leadId"),
	TypeLeadIntentHigh:   shape[LeadIntentHighPayload]("leadId", "intentScore"),

	TypeSequenceStarted: shape[SequenceStartedPayload]("sequenceId", "leadId"),
	TypeMessageSent:     shape[MessageSentPayload]("leadId", "channel"),
	TypeReplyReceived:   shape[ReplyReceivedPayload]("leadId"),
	TypeMeetingBooked:   shape[MeetingBookedPayload]("meetingId", "leadId"),
	TypeOptOut:          shape[OptOutPayload]("leadId"),

	TypeDealCreated:      shape[DealCreatedPayload]("dealId"),
	TypeDealStageChanged: shape[DealStageChangedPayload]("dealId", "toStage"),
	TypeDealWon:          shape[DealWonPayload]("dealId", "amount"),
	TypeDealLost:         shape[DealLostPayload]("dealId"),

	TypeWorkflowTriggered: shape[WorkflowTriggeredPayload]("workflowId"),
	TypeWorkflowCompleted: shape[WorkflowCompletedPayload]("workflowId"),

	TypeModuleReady:  shape[ModuleReadyPayload]("module"),
	TypeQuotaWarning: shape[QuotaWarningPayload]("resource"),
}

// DecodePayload validates raw against the shape registered for t and returns
// the typed payload struct by value. raw may be the typed struct itself (or a
// pointer to it) or a map with the same keys. Returns a *ValidationError
// wrapping ErrUnknownSignalType or ErrInvalidPayload on failure.
func DecodePayload(t SignalType, raw any) (any, error) {
	spec, ok := payloadCatalog[t]
	if !ok {
		return nil, &ValidationError{Type: t, Reason: "type is not in the catalog", Err: ErrUnknownSignalType}
	}
	if raw == nil {
		return nil, &ValidationError{Type: t, Reason: "payload is nil", Err: ErrInvalidPayload}
	}

	// Normalize the source to a map so required-key checks are uniform
	// regardless of whether the producer passed a struct or a map.
	asMap := map[string]any{}
	if err := mapstructure.Decode(raw, &asMap); err != nil {
		return nil, &ValidationError{Type: t, Reason: fmt.Sprintf("payload is not a struct or map: %v", err), Err: ErrInvalidPayload}
	}

	for _, key := range spec.required {
		if !hasKeyFold(asMap, key) {
			return nil, &ValidationError{Type: t, Reason: fmt.Sprintf("missing required field %q", key), Err: ErrInvalidPayload}
		}
	}

	out, err := spec.decode(asMap)
	if err != nil {
		return nil, &ValidationError{Type: t, Reason: fmt.Sprintf("payload shape mismatch: %v", err), Err: ErrInvalidPayload}
	}
	return out, nil
}

// hasKeyFold matches keys case-insensitively, like mapstructure itself does.
func hasKeyFold(m map[string]any, key string) bool {
	for k, v := range m {
		if strings.EqualFold(k, key) && v != nil {
			return true
		}
	}
	return false
}

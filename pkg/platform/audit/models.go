package audit

import (
	"context"
	"time"

	id "electa/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers account lifecycle and vote records that must be kept.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication failures and session events.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity such as election broadcasts.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	AccountID id.AccountID
	Subject   string
	Action    string
	Decision  string
	Reason    string
	Email     string
	RequestID string
	// ActorID is the admin performing the action when it differs from AccountID.
	ActorID string
	Device  string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]Event, error)
}

type AuditEvent string

const (
	// Account events
	EventAccountRegistered AuditEvent = "account_registered"
	EventAccountUpdated    AuditEvent = "account_updated"
	EventAccountDeleted    AuditEvent = "account_deleted"
	EventVoteRecorded      AuditEvent = "vote_recorded"

	// Auth events
	EventLoginCodeIssued    AuditEvent = "login_code_issued"
	EventLoginCodeUndeliver AuditEvent = "login_code_undeliverable"
	EventLoginSucceeded     AuditEvent = "login_succeeded"
	EventAuthFailed         AuditEvent = "auth_failed"
	EventLoggedOut          AuditEvent = "logged_out"

	// Election events
	EventElectionDeployed     AuditEvent = "election_deployed"
	EventElectionStarted      AuditEvent = "election_started"
	EventElectionEnded        AuditEvent = "election_ended"
	EventElectionFanOutFailed AuditEvent = "election_fanout_failed"
	EventElectionDriftCleared AuditEvent = "election_drift_cleared"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAccountRegistered: CategoryCompliance,
	EventAccountDeleted:    CategoryCompliance,
	EventVoteRecorded:      CategoryCompliance,
	EventElectionStarted:   CategoryCompliance,
	EventElectionEnded:     CategoryCompliance,

	EventAuthFailed:           CategorySecurity,
	EventLoginCodeUndeliver:   CategorySecurity,
	EventLoginSucceeded:       CategorySecurity,
	EventLoggedOut:            CategorySecurity,
	EventElectionFanOutFailed: CategorySecurity,

	EventAccountUpdated:       CategoryOperations,
	EventLoginCodeIssued:      CategoryOperations,
	EventElectionDeployed:     CategoryOperations,
	EventElectionDriftCleared: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

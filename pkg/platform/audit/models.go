package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "kuruma/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance under the
	// secondhand dealer rules: license requirements and blocked listings.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine marketplace activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category     EventCategory `json:"category"`
	Timestamp    time.Time     `json:"timestamp"`
	AccountID    id.AccountID  `json:"account_id"`
	Action       string        `json:"action"`
	AccountType  string        `json:"account_type,omitempty"`
	WarningLevel string        `json:"warning_level,omitempty"`
	Decision     string        `json:"decision,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	EventAccountRegistered      AuditEvent = "account_registered"
	EventListingOpened          AuditEvent = "listing_opened"
	EventListingClosed          AuditEvent = "listing_closed"
	EventListingBlocked         AuditEvent = "listing_blocked"
	EventSaleRecorded           AuditEvent = "sale_recorded"
	EventComplianceLevelChanged AuditEvent = "compliance_level_changed"
	EventLicenseRequired        AuditEvent = "license_required"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventListingBlocked:         CategoryCompliance,
	EventComplianceLevelChanged: CategoryCompliance,
	EventLicenseRequired:        CategoryCompliance,

	EventAccountRegistered: CategoryOperations,
	EventListingOpened:     CategoryOperations,
	EventListingClosed:     CategoryOperations,
	EventSaleRecorded:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Implementations: in-memory, Postgres outbox,
// Kafka topic.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxEntry is an event persisted locally and awaiting relay to a sink.
type OutboxEntry struct {
	ID    uuid.UUID
	Event Event
}

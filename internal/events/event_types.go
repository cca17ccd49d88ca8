package events

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketCaptured  EventType = "ticket_captured"
	EventTicketFinalized EventType = "ticket_finalized"
	EventTicketCanceled  EventType = "ticket_canceled"
	EventTicketReopened  EventType = "ticket_reopened"
	EventTicketEdited    EventType = "ticket_edited"
	EventSLABreached     EventType = "sla_breached"
	EventSLAReminder     EventType = "sla_reminder"
)

// Event represents a domain event emitted by the lifecycle engine or the SLA
// monitor. CorrelationRef lets subscribers reach the external chat thread
// without a store lookup.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	TicketID       string      `json:"ticket_id"`
	CorrelationRef string      `json:"correlation_ref"`
	Actor          string      `json:"actor,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketType string `json:"ticket_type"`
	TenantName string `json:"tenant_name"`
	Requester  string `json:"requester"`
}

// TicketCapturedPayload payload.
type TicketCapturedPayload struct {
	Assignee string `json:"assignee"`
}

// TicketCanceledPayload payload.
type TicketCanceledPayload struct {
	Reason string `json:"reason"`
}

// TicketReopenedPayload payload.
type TicketReopenedPayload struct {
	TicketType  string    `json:"ticket_type"`
	SLADeadline time.Time `json:"sla_deadline"`
}

// TicketEditedPayload payload.
type TicketEditedPayload struct {
	Changes []domain.FieldChange `json:"changes"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	SLADeadline time.Time `json:"sla_deadline"`
	TenantName  string    `json:"tenant_name"`
}

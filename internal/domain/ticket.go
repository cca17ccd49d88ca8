package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus enumerates lifecycle states for service tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCanceled   TicketStatus = "CANCELED"
)

// SLAState tracks whether a ticket is within its response window.
type SLAState string

const (
	SLAStateOnTime   SLAState = "ON_TIME"
	SLAStateBreached SLAState = "BREACHED"
)

// ReopenEvent records a single reopening of a ticket.
type ReopenEvent struct {
	At         time.Time `json:"at"`
	Actor      string    `json:"actor"`
	TicketType string    `json:"ticket_type"`
}

// Ticket is the aggregate for property service requests.
//
// CorrelationRef is the external chat-thread key; it is set at creation and
// never changes. ReopenEvents and EditLog are append-only.
type Ticket struct {
	ID             string
	CorrelationRef string
	TicketType     string
	ContractType   string
	TenantName     string
	Occupants      string
	PropertyID     string
	UnitLabel      string
	MoveInDate     *time.Time
	MoveOutDate    *time.Time
	RentValue      decimal.Decimal
	Requester      string
	Assignee       *string
	Status         TicketStatus
	OpenedAt       time.Time
	CapturedAt     *time.Time
	ClosedAt       *time.Time
	CancelReason   *string
	SLADeadline    time.Time
	SLAState       SLAState
	ReopenEvents   []ReopenEvent
	EditLog        []EditEntry
	LastEditor     *string
	LastEditedAt   *time.Time
	Version        int64
}

// Active reports whether the ticket still counts against its SLA window.
func (t *Ticket) Active() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusInProgress
}

// Clone returns a deep copy so mutators can work on a private snapshot.
func (t *Ticket) Clone() *Ticket {
	clone := *t
	clone.MoveInDate = cloneTime(t.MoveInDate)
	clone.MoveOutDate = cloneTime(t.MoveOutDate)
	clone.CapturedAt = cloneTime(t.CapturedAt)
	clone.ClosedAt = cloneTime(t.ClosedAt)
	clone.LastEditedAt = cloneTime(t.LastEditedAt)
	clone.Assignee = cloneString(t.Assignee)
	clone.CancelReason = cloneString(t.CancelReason)
	clone.LastEditor = cloneString(t.LastEditor)
	clone.ReopenEvents = append([]ReopenEvent(nil), t.ReopenEvents...)
	clone.EditLog = make([]EditEntry, len(t.EditLog))
	for i, entry := range t.EditLog {
		clone.EditLog[i] = entry
		clone.EditLog[i].Changes = append([]FieldChange(nil), entry.Changes...)
	}
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

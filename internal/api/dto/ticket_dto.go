package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/service"
	apperrors "github.com/spec-kit/service-desk/pkg/errorutil"
)

const dateLayout = "2006-01-02"

// CreateTicketRequest is the wire payload for opening a ticket. Dates and the
// rent value arrive as the strings users typed into the chat form; mapping to
// typed values happens here, at the boundary, in one place.
type CreateTicketRequest struct {
	CorrelationRef string `json:"correlation_ref"`
	TicketType     string `json:"ticket_type"`
	ContractType   string `json:"contract_type"`
	TenantName     string `json:"tenant_name"`
	Occupants      string `json:"occupants"`
	PropertyID     string `json:"property_id"`
	UnitLabel      string `json:"unit_label"`
	MoveInDate     string `json:"move_in_date"`
	MoveOutDate    string `json:"move_out_date"`
	RentValue      string `json:"rent_value"`
	Requester      string `json:"requester"`
}

// ToInput maps the request onto a typed creation input.
func (r CreateTicketRequest) ToInput() (service.TicketCreateInput, error) {
	input := service.TicketCreateInput{
		CorrelationRef: r.CorrelationRef,
		TicketType:     r.TicketType,
		ContractType:   r.ContractType,
		TenantName:     r.TenantName,
		Occupants:      r.Occupants,
		PropertyID:     r.PropertyID,
		UnitLabel:      r.UnitLabel,
		Requester:      r.Requester,
	}

	moveIn, err := parseDate(r.MoveInDate, "move_in_date")
	if err != nil {
		return service.TicketCreateInput{}, err
	}
	moveOut, err := parseDate(r.MoveOutDate, "move_out_date")
	if err != nil {
		return service.TicketCreateInput{}, err
	}
	input.MoveInDate = moveIn
	input.MoveOutDate = moveOut

	if strings.TrimSpace(r.RentValue) != "" {
		rent, err := domain.ParseRentValue(r.RentValue)
		if err != nil {
			return service.TicketCreateInput{}, apperrors.NewInvalidInput("invalid rent_value",
				map[string]any{"rent_value": r.RentValue})
		}
		input.RentValue = rent
	}
	return input, nil
}

// ActionRequest carries the acting party for capture/finalize operations.
type ActionRequest struct {
	Actor string `json:"actor"`
}

// CancelRequest carries cancellation input.
type CancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// ReopenRequest carries reopen input.
type ReopenRequest struct {
	Actor      string `json:"actor"`
	TicketType string `json:"ticket_type"`
}

// EditTicketRequest is the wire payload for editing. Only supplied fields are
// touched; rent_value accepts the same currency formats as creation.
type EditTicketRequest struct {
	Actor        string  `json:"actor"`
	ContractType *string `json:"contract_type"`
	TenantName   *string `json:"tenant_name"`
	Occupants    *string `json:"occupants"`
	PropertyID   *string `json:"property_id"`
	UnitLabel    *string `json:"unit_label"`
	RentValue    *string `json:"rent_value"`
}

// ToEdit maps the request onto a typed edit.
func (r EditTicketRequest) ToEdit() (domain.TicketEdit, error) {
	edit := domain.TicketEdit{
		ContractType: r.ContractType,
		TenantName:   r.TenantName,
		Occupants:    r.Occupants,
		PropertyID:   r.PropertyID,
		UnitLabel:    r.UnitLabel,
	}
	if r.RentValue != nil {
		rent, err := domain.ParseRentValue(*r.RentValue)
		if err != nil {
			return domain.TicketEdit{}, apperrors.NewInvalidInput("invalid rent_value",
				map[string]any{"rent_value": *r.RentValue})
		}
		edit.RentValue = &rent
	}
	return edit, nil
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID             string               `json:"id"`
	CorrelationRef string               `json:"correlation_ref"`
	TicketType     string               `json:"ticket_type"`
	ContractType   string               `json:"contract_type"`
	TenantName     string               `json:"tenant_name"`
	Occupants      string               `json:"occupants"`
	PropertyID     string               `json:"property_id"`
	UnitLabel      string               `json:"unit_label"`
	MoveInDate     *string              `json:"move_in_date"`
	MoveOutDate    *string              `json:"move_out_date"`
	RentValue      string               `json:"rent_value"`
	Requester      string               `json:"requester"`
	Assignee       *string              `json:"assignee"`
	Status         domain.TicketStatus  `json:"status"`
	OpenedAt       time.Time            `json:"opened_at"`
	CapturedAt     *time.Time           `json:"captured_at"`
	ClosedAt       *time.Time           `json:"closed_at"`
	CancelReason   *string              `json:"cancel_reason"`
	SLADeadline    time.Time            `json:"sla_deadline"`
	SLAState       domain.SLAState      `json:"sla_state"`
	ReopenEvents   []domain.ReopenEvent `json:"reopen_events"`
	EditLog        []domain.EditEntry   `json:"edit_log"`
	LastEditor     *string              `json:"last_editor"`
	LastEditedAt   *time.Time           `json:"last_edited_at"`
}

// FromTicket renders a domain ticket for the wire.
func FromTicket(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             t.ID,
		CorrelationRef: t.CorrelationRef,
		TicketType:     t.TicketType,
		ContractType:   t.ContractType,
		TenantName:     t.TenantName,
		Occupants:      t.Occupants,
		PropertyID:     t.PropertyID,
		UnitLabel:      t.UnitLabel,
		MoveInDate:     formatDate(t.MoveInDate),
		MoveOutDate:    formatDate(t.MoveOutDate),
		RentValue:      t.RentValue.StringFixed(2),
		Requester:      t.Requester,
		Assignee:       t.Assignee,
		Status:         t.Status,
		OpenedAt:       t.OpenedAt,
		CapturedAt:     t.CapturedAt,
		ClosedAt:       t.ClosedAt,
		CancelReason:   t.CancelReason,
		SLADeadline:    t.SLADeadline,
		SLAState:       t.SLAState,
		ReopenEvents:   t.ReopenEvents,
		EditLog:        t.EditLog,
		LastEditor:     t.LastEditor,
		LastEditedAt:   t.LastEditedAt,
	}
}

func parseDate(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, apperrors.NewInvalidInput("invalid date", map[string]any{field: raw})
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

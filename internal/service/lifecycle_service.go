package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/repository"
	apperrors "github.com/spec-kit/service-desk/pkg/errorutil"
)

// LifecycleService owns the ticket state machine. Every mutation is a single
// atomic read-modify-write against the store; transition legality is decided
// inside the mutator, against the committed snapshot.
type LifecycleService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	slaWindow  time.Duration
	now        func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	SLAWindow  time.Duration
	Now        func() time.Time
}

// TicketCreateInput describes ticket creation payload after boundary mapping.
type TicketCreateInput struct {
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
}

// TicketListFilter describes read-only reporting filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Requester  *string
	Assignee   *string
	OpenedFrom *time.Time
	OpenedTo   *time.Time
	Limit      int
	Offset     int
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		slaWindow:  deps.SLAWindow,
		now:        now,
	}
}

// Create opens a new ticket with its SLA clock started.
func (s *LifecycleService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	now := s.now()
	ticket := &domain.Ticket{
		ID:             uuid.NewString(),
		CorrelationRef: strings.TrimSpace(input.CorrelationRef),
		TicketType:     strings.TrimSpace(input.TicketType),
		ContractType:   strings.TrimSpace(input.ContractType),
		TenantName:     strings.TrimSpace(input.TenantName),
		Occupants:      input.Occupants,
		PropertyID:     strings.TrimSpace(input.PropertyID),
		UnitLabel:      strings.TrimSpace(input.UnitLabel),
		MoveInDate:     input.MoveInDate,
		MoveOutDate:    input.MoveOutDate,
		RentValue:      input.RentValue,
		Requester:      strings.TrimSpace(input.Requester),
		Status:         domain.TicketStatusOpen,
		OpenedAt:       now,
		SLADeadline:    now.Add(s.slaWindow),
		SLAState:       domain.SLAStateOnTime,
		ReopenEvents:   []domain.ReopenEvent{},
		EditLog:        []domain.EditEntry{},
		Version:        1,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:           events.EventTicketCreated,
		TicketID:       ticket.ID,
		CorrelationRef: ticket.CorrelationRef,
		Actor:          ticket.Requester,
		Payload: events.TicketCreatedPayload{
			TicketType: ticket.TicketType,
			TenantName: ticket.TenantName,
			Requester:  ticket.Requester,
		},
	})
	return ticket, nil
}

// Capture claims an open ticket for actor. At most one capture succeeds per
// open period; every other caller observes the committed status and is
// rejected with ALREADY_CAPTURED.
func (s *LifecycleService) Capture(ctx context.Context, id, actor string) (*domain.Ticket, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperrors.NewInvalidInput("actor required", nil)
	}
	return s.update(ctx, id, func(t *domain.Ticket) error {
		if t.Status != domain.TicketStatusOpen {
			return apperrors.NewAlreadyCaptured(t.ID)
		}
		now := s.now()
		t.Status = domain.TicketStatusInProgress
		t.Assignee = &actor
		t.CapturedAt = &now
		return nil
	}, func(t *domain.Ticket) events.Event {
		return events.Event{
			Type:           events.EventTicketCaptured,
			TicketID:       t.ID,
			CorrelationRef: t.CorrelationRef,
			Actor:          actor,
			Payload:        events.TicketCapturedPayload{Assignee: actor},
		}
	})
}

// Finalize closes a ticket from open or in_progress. The assignment is
// released on the way out; assignee stays non-nil only while in_progress, and
// the closing actor is carried on the event.
func (s *LifecycleService) Finalize(ctx context.Context, id, actor string) (*domain.Ticket, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperrors.NewInvalidInput("actor required", nil)
	}
	return s.update(ctx, id, func(t *domain.Ticket) error {
		switch t.Status {
		case domain.TicketStatusClosed:
			return apperrors.NewAlreadyClosed(t.ID)
		case domain.TicketStatusCanceled:
			return apperrors.NewInvalidState("canceled ticket cannot be finalized",
				map[string]any{"ticket_id": t.ID})
		}
		now := s.now()
		t.Status = domain.TicketStatusClosed
		t.ClosedAt = &now
		t.Assignee = nil
		t.CapturedAt = nil
		return nil
	}, func(t *domain.Ticket) events.Event {
		return events.Event{
			Type:           events.EventTicketFinalized,
			TicketID:       t.ID,
			CorrelationRef: t.CorrelationRef,
			Actor:          actor,
		}
	})
}

// Cancel voids a ticket from open or in_progress. A non-empty reason is
// required; nothing is persisted otherwise.
func (s *LifecycleService) Cancel(ctx context.Context, id, actor, reason string) (*domain.Ticket, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperrors.NewInvalidInput("actor required", nil)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewInvalidInput("cancel reason required", map[string]any{"ticket_id": id})
	}
	return s.update(ctx, id, func(t *domain.Ticket) error {
		switch t.Status {
		case domain.TicketStatusCanceled:
			return apperrors.NewInvalidState("ticket already canceled", map[string]any{"ticket_id": t.ID})
		case domain.TicketStatusClosed:
			return apperrors.NewAlreadyClosed(t.ID)
		}
		now := s.now()
		t.Status = domain.TicketStatusCanceled
		t.ClosedAt = &now
		t.CancelReason = &reason
		t.Assignee = nil
		t.CapturedAt = nil
		return nil
	}, func(t *domain.Ticket) events.Event {
		return events.Event{
			Type:           events.EventTicketCanceled,
			TicketID:       t.ID,
			CorrelationRef: t.CorrelationRef,
			Actor:          actor,
			Payload:        events.TicketCanceledPayload{Reason: reason},
		}
	})
}

// Reopen returns a non-open ticket to open under a new ticket type,
// restarting the response clock.
func (s *LifecycleService) Reopen(ctx context.Context, id, actor, newTicketType string) (*domain.Ticket, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperrors.NewInvalidInput("actor required", nil)
	}
	newTicketType = strings.TrimSpace(newTicketType)
	if newTicketType == "" {
		return nil, apperrors.NewInvalidInput("ticket type required", map[string]any{"ticket_id": id})
	}
	return s.update(ctx, id, func(t *domain.Ticket) error {
		if t.Status == domain.TicketStatusOpen {
			return apperrors.NewInvalidState("ticket is already open", map[string]any{"ticket_id": t.ID})
		}
		now := s.now()
		t.Status = domain.TicketStatusOpen
		t.TicketType = newTicketType
		t.Assignee = nil
		t.CapturedAt = nil
		t.ClosedAt = nil
		t.CancelReason = nil
		t.SLAState = domain.SLAStateOnTime
		t.SLADeadline = now.Add(s.slaWindow)
		t.ReopenEvents = append(t.ReopenEvents, domain.ReopenEvent{
			At:         now,
			Actor:      actor,
			TicketType: newTicketType,
		})
		return nil
	}, func(t *domain.Ticket) events.Event {
		return events.Event{
			Type:           events.EventTicketReopened,
			TicketID:       t.ID,
			CorrelationRef: t.CorrelationRef,
			Actor:          actor,
			Payload: events.TicketReopenedPayload{
				TicketType:  newTicketType,
				SLADeadline: t.SLADeadline,
			},
		}
	})
}

// Edit applies changes to the editable field set and appends the resulting
// diff to the audit log. A no-op edit appends nothing and emits no event.
func (s *LifecycleService) Edit(ctx context.Context, id, actor string, edit domain.TicketEdit) (*domain.Ticket, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperrors.NewInvalidInput("actor required", nil)
	}
	var applied []domain.FieldChange
	ticket, err := s.update(ctx, id, func(t *domain.Ticket) error {
		if t.Status == domain.TicketStatusCanceled {
			return apperrors.NewInvalidState("canceled ticket cannot be edited",
				map[string]any{"ticket_id": t.ID})
		}
		before := t.Clone()
		edit.Apply(t)
		applied = domain.Diff(before, t)
		if len(applied) == 0 {
			return nil
		}
		now := s.now()
		t.EditLog = append(t.EditLog, domain.EditEntry{At: now, Actor: actor, Changes: applied})
		t.LastEditor = &actor
		t.LastEditedAt = &now
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(applied) > 0 {
		s.publish(ctx, events.Event{
			Type:           events.EventTicketEdited,
			TicketID:       ticket.ID,
			CorrelationRef: ticket.CorrelationRef,
			Actor:          actor,
			Payload:        events.TicketEditedPayload{Changes: applied},
		})
	}
	return ticket, nil
}

// Get fetches a ticket by id.
func (s *LifecycleService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

// GetByCorrelationRef fetches a ticket by its external chat-thread key.
func (s *LifecycleService) GetByCorrelationRef(ctx context.Context, ref string) (*domain.Ticket, error) {
	return s.tickets.GetByCorrelationRef(ctx, ref)
}

// List returns tickets for reporting collaborators. Read-only.
func (s *LifecycleService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:   filter.Statuses,
		Requester:  filter.Requester,
		Assignee:   filter.Assignee,
		OpenedFrom: filter.OpenedFrom,
		OpenedTo:   filter.OpenedTo,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// update performs the atomic mutation with a single retry on CONFLICT: the
// retry re-reads the committed state, so a raced operation resolves into its
// typed rejection instead of an opaque storage error.
func (s *LifecycleService) update(ctx context.Context, id string, mutate repository.Mutator, eventFor func(*domain.Ticket) events.Event) (*domain.Ticket, error) {
	ticket, err := s.tickets.Update(ctx, id, mutate)
	if apperrors.HasCode(err, apperrors.CodeConflict) {
		ticket, err = s.tickets.Update(ctx, id, mutate)
	}
	if err != nil {
		return nil, err
	}
	if eventFor != nil {
		s.publish(ctx, eventFor(ticket))
	}
	return ticket, nil
}

func (s *LifecycleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateCreate(input TicketCreateInput) error {
	missing := map[string]any{}
	if strings.TrimSpace(input.CorrelationRef) == "" {
		missing["correlation_ref"] = "required"
	}
	if strings.TrimSpace(input.TicketType) == "" {
		missing["ticket_type"] = "required"
	}
	if strings.TrimSpace(input.TenantName) == "" {
		missing["tenant_name"] = "required"
	}
	if strings.TrimSpace(input.Requester) == "" {
		missing["requester"] = "required"
	}
	if len(missing) > 0 {
		return apperrors.NewInvalidInput("missing required fields", missing)
	}
	if input.MoveInDate != nil && input.MoveOutDate != nil && input.MoveOutDate.Before(*input.MoveInDate) {
		return apperrors.NewInvalidInput("move_out_date before move_in_date", nil)
	}
	if input.RentValue.IsNegative() {
		return apperrors.NewInvalidInput("rent_value must not be negative", nil)
	}
	return nil
}

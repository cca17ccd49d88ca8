package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
	apperrors "github.com/spec-kit/service-desk/pkg/errorutil"
)

// memoryTicketRepository keeps tickets in process memory. It backs local runs
// without a POSTGRES_DSN and the test suite. Update serializes writers per
// ticket, so concurrent mutators observe each other's committed state.
type memoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	byRef   map[string]string
	locks   map[string]*sync.Mutex
}

// NewMemoryTicketRepository creates an empty in-memory store.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{
		tickets: make(map[string]*domain.Ticket),
		byRef:   make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (r *memoryTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket.ID]; exists {
		return apperrors.NewConflict("ticket id already exists", map[string]any{"ticket_id": ticket.ID})
	}
	if _, exists := r.byRef[ticket.CorrelationRef]; exists {
		return apperrors.NewConflict("correlation ref already exists",
			map[string]any{"correlation_ref": ticket.CorrelationRef})
	}
	r.tickets[ticket.ID] = ticket.Clone()
	r.byRef[ticket.CorrelationRef] = ticket.ID
	r.locks[ticket.ID] = &sync.Mutex{}
	return nil
}

func (r *memoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"key": id})
	}
	return ticket.Clone(), nil
}

func (r *memoryTicketRepository) GetByCorrelationRef(ctx context.Context, ref string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[ref]
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"key": ref})
	}
	return r.tickets[id].Clone(), nil
}

func (r *memoryTicketRepository) Update(ctx context.Context, id string, mutate Mutator) (*domain.Ticket, error) {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"key": id})
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	current := r.tickets[id]
	r.mu.RUnlock()

	snapshot := current.Clone()
	if err := mutate(snapshot); err != nil {
		return nil, err
	}
	snapshot.Version = current.Version + 1

	r.mu.Lock()
	r.tickets[id] = snapshot.Clone()
	r.mu.Unlock()
	return snapshot, nil
}

func (r *memoryTicketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if !matchesFilter(ticket, filter) {
			continue
		}
		result = append(result, *ticket.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt.After(result[j].OpenedAt)
	})
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (r *memoryTicketRepository) ListSLABreachCandidates(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Active() && ticket.SLAState == domain.SLAStateOnTime && ticket.SLADeadline.Before(now) {
			result = append(result, *ticket.Clone())
		}
	}
	sortByDeadline(result)
	return result, nil
}

func (r *memoryTicketRepository) ListBreached(ctx context.Context) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Active() && ticket.SLAState == domain.SLAStateBreached {
			result = append(result, *ticket.Clone())
		}
	}
	sortByDeadline(result)
	return result, nil
}

func matchesFilter(ticket *domain.Ticket, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if ticket.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Requester != nil && ticket.Requester != *filter.Requester {
		return false
	}
	if filter.Assignee != nil {
		if ticket.Assignee == nil || *ticket.Assignee != *filter.Assignee {
			return false
		}
	}
	if filter.OpenedFrom != nil && ticket.OpenedAt.Before(*filter.OpenedFrom) {
		return false
	}
	if filter.OpenedTo != nil && ticket.OpenedAt.After(*filter.OpenedTo) {
		return false
	}
	return true
}

func paginate(tickets []domain.Ticket, limit, offset int) []domain.Ticket {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(tickets) {
		return nil
	}
	tickets = tickets[offset:]
	if limit > 0 && limit < len(tickets) {
		tickets = tickets[:limit]
	}
	return tickets
}

func sortByDeadline(tickets []domain.Ticket) {
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].SLADeadline.Before(tickets[j].SLADeadline)
	})
}

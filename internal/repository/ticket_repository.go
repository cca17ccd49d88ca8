package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/service-desk/internal/domain"
	apperrors "github.com/spec-kit/service-desk/pkg/errorutil"
)

// TicketFilter captures reporting query parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Requester  *string
	Assignee   *string
	OpenedFrom *time.Time
	OpenedTo   *time.Time
	Limit      int
	Offset     int
}

// Mutator runs against a consistent snapshot of a single ticket inside an
// atomic read-modify-write. Returning an error aborts without persisting.
type Mutator func(*domain.Ticket) error

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCorrelationRef(ctx context.Context, ref string) (*domain.Ticket, error)
	Update(ctx context.Context, id string, mutate Mutator) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	ListSLABreachCandidates(ctx context.Context, now time.Time) ([]domain.Ticket, error)
	ListBreached(ctx context.Context) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, correlation_ref, ticket_type, contract_type, tenant_name, occupants,
       property_id, unit_label, move_in_date, move_out_date, rent_value::text, requester,
       assignee, status, opened_at, captured_at, closed_at, cancel_reason,
       sla_deadline, sla_state, reopen_events, edit_log, last_editor, last_edited_at, version`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, correlation_ref, ticket_type, contract_type, tenant_name, occupants,
            property_id, unit_label, move_in_date, move_out_date, rent_value, requester,
            assignee, status, opened_at, captured_at, closed_at, cancel_reason,
            sla_deadline, sla_state, reopen_events, edit_log, last_editor, last_edited_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`
	reopenJSON, editJSON, err := marshalHistory(ticket)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.CorrelationRef,
		ticket.TicketType,
		ticket.ContractType,
		ticket.TenantName,
		ticket.Occupants,
		ticket.PropertyID,
		ticket.UnitLabel,
		ticket.MoveInDate,
		ticket.MoveOutDate,
		ticket.RentValue.String(),
		ticket.Requester,
		ticket.Assignee,
		ticket.Status,
		ticket.OpenedAt,
		ticket.CapturedAt,
		ticket.ClosedAt,
		ticket.CancelReason,
		ticket.SLADeadline,
		ticket.SLAState,
		reopenJSON,
		editJSON,
		ticket.LastEditor,
		ticket.LastEditedAt,
		ticket.Version,
	)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, r.pool, query, id)
}

func (r *ticketRepository) GetByCorrelationRef(ctx context.Context, ref string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE correlation_ref=$1`, ticketColumns)
	return r.fetchSingle(ctx, r.pool, query, ref)
}

// Update runs mutate against a row locked for the duration of the
// transaction. The version guard on the final UPDATE turns any interleaved
// writer into a CONFLICT instead of a silent lost update.
func (r *ticketRepository) Update(ctx context.Context, id string, mutate Mutator) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 FOR UPDATE`, ticketColumns)
	ticket, err := r.fetchSingle(ctx, tx, query, id)
	if err != nil {
		return nil, err
	}

	snapshotVersion := ticket.Version
	if err := mutate(ticket); err != nil {
		return nil, err
	}
	ticket.Version = snapshotVersion + 1

	reopenJSON, editJSON, err := marshalHistory(ticket)
	if err != nil {
		return nil, err
	}

	const updateQuery = `
        UPDATE tickets SET ticket_type=$1, contract_type=$2, tenant_name=$3, occupants=$4,
            property_id=$5, unit_label=$6, move_in_date=$7, move_out_date=$8, rent_value=$9,
            assignee=$10, status=$11, captured_at=$12, closed_at=$13, cancel_reason=$14,
            sla_deadline=$15, sla_state=$16, reopen_events=$17, edit_log=$18,
            last_editor=$19, last_edited_at=$20, version=$21
        WHERE id=$22 AND version=$23`
	cmd, err := tx.Exec(ctx, updateQuery,
		ticket.TicketType,
		ticket.ContractType,
		ticket.TenantName,
		ticket.Occupants,
		ticket.PropertyID,
		ticket.UnitLabel,
		ticket.MoveInDate,
		ticket.MoveOutDate,
		ticket.RentValue.String(),
		ticket.Assignee,
		ticket.Status,
		ticket.CapturedAt,
		ticket.ClosedAt,
		ticket.CancelReason,
		ticket.SLADeadline,
		ticket.SLAState,
		reopenJSON,
		editJSON,
		ticket.LastEditor,
		ticket.LastEditedAt,
		ticket.Version,
		ticket.ID,
		snapshotVersion,
	)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, apperrors.NewConflict("concurrent update detected", map[string]any{"ticket_id": id})
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Requester != nil {
		args = append(args, *filter.Requester)
		clauses = append(clauses, fmt.Sprintf("requester=$%d", len(args)))
	}
	if filter.Assignee != nil {
		args = append(args, *filter.Assignee)
		clauses = append(clauses, fmt.Sprintf("assignee=$%d", len(args)))
	}
	if filter.OpenedFrom != nil {
		args = append(args, *filter.OpenedFrom)
		clauses = append(clauses, fmt.Sprintf("opened_at >= $%d", len(args)))
	}
	if filter.OpenedTo != nil {
		args = append(args, *filter.OpenedTo)
		clauses = append(clauses, fmt.Sprintf("opened_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY opened_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListSLABreachCandidates(ctx context.Context, now time.Time) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE status IN ($1,$2) AND sla_state=$3 AND sla_deadline < $4
        ORDER BY sla_deadline ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query,
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.SLAStateOnTime, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListBreached(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets
        WHERE status IN ($1,$2) AND sla_state=$3
        ORDER BY sla_deadline ASC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query,
		domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.SLAStateBreached)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *ticketRepository) fetchSingle(ctx context.Context, q rowQuerier, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"key": arg})
		}
		return nil, err
	}
	return ticket, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		rentText   string
		reopenJSON []byte
		editJSON   []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CorrelationRef,
		&ticket.TicketType,
		&ticket.ContractType,
		&ticket.TenantName,
		&ticket.Occupants,
		&ticket.PropertyID,
		&ticket.UnitLabel,
		&ticket.MoveInDate,
		&ticket.MoveOutDate,
		&rentText,
		&ticket.Requester,
		&ticket.Assignee,
		&ticket.Status,
		&ticket.OpenedAt,
		&ticket.CapturedAt,
		&ticket.ClosedAt,
		&ticket.CancelReason,
		&ticket.SLADeadline,
		&ticket.SLAState,
		&reopenJSON,
		&editJSON,
		&ticket.LastEditor,
		&ticket.LastEditedAt,
		&ticket.Version,
	); err != nil {
		return nil, err
	}

	rent, err := decimal.NewFromString(rentText)
	if err != nil {
		return nil, fmt.Errorf("decode rent_value: %w", err)
	}
	ticket.RentValue = rent

	if len(reopenJSON) > 0 {
		if err := json.Unmarshal(reopenJSON, &ticket.ReopenEvents); err != nil {
			return nil, fmt.Errorf("decode reopen_events: %w", err)
		}
	}
	if len(editJSON) > 0 {
		if err := json.Unmarshal(editJSON, &ticket.EditLog); err != nil {
			return nil, fmt.Errorf("decode edit_log: %w", err)
		}
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func marshalHistory(ticket *domain.Ticket) ([]byte, []byte, error) {
	reopenEvents := ticket.ReopenEvents
	if reopenEvents == nil {
		reopenEvents = []domain.ReopenEvent{}
	}
	editLog := ticket.EditLog
	if editLog == nil {
		editLog = []domain.EditEntry{}
	}
	reopenJSON, err := json.Marshal(reopenEvents)
	if err != nil {
		return nil, nil, fmt.Errorf("encode reopen_events: %w", err)
	}
	editJSON, err := json.Marshal(editLog)
	if err != nil {
		return nil, nil, fmt.Errorf("encode edit_log: %w", err)
	}
	return reopenJSON, editJSON, nil
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/repository"
)

// SLAMonitor sweeps the store on a fixed period and flips tickets whose
// deadline has passed to BREACHED. It shares the store's atomic update
// contract with the lifecycle, so a sweep cannot race a concurrent operation
// destructively. Deadline comparisons are against absolute time; a missed
// cycle is caught by the next one.
type SLAMonitor struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	interval   time.Duration
	renotify   bool
	now        func() time.Time
}

// SLAMonitorDependencies bundles collaborators for the monitor.
type SLAMonitorDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Interval   time.Duration
	Renotify   bool
	Now        func() time.Time
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(deps SLAMonitorDependencies) *SLAMonitor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SLAMonitor{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		interval:   deps.Interval,
		renotify:   deps.Renotify,
		now:        now,
	}
}

// Run sweeps until ctx is canceled. Intended to run on its own goroutine.
func (m *SLAMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("sla monitor started",
		zap.Duration("interval", m.interval),
		zap.Bool("renotify", m.renotify))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep evaluates deadlines once against the current wall clock. Exported so
// an operator endpoint or test can trigger an immediate pass.
func (m *SLAMonitor) Sweep(ctx context.Context) {
	now := m.now()

	candidates, err := m.tickets.ListSLABreachCandidates(ctx, now)
	if err != nil {
		m.logger.Error("sla sweep: list candidates", zap.Error(err))
		return
	}

	flipped := make(map[string]struct{})
	for i := range candidates {
		if m.flip(ctx, &candidates[i], now) {
			flipped[candidates[i].ID] = struct{}{}
		}
	}
	if len(flipped) > 0 {
		m.logger.Info("sla sweep flipped tickets", zap.Int("count", len(flipped)))
	}

	if m.renotify {
		m.remind(ctx, flipped)
	}
}

// flip transitions one ticket to BREACHED. The mutator re-checks the
// conditions against the locked snapshot: a ticket finalized or reopened
// between the scan and the update is skipped, never double-flipped.
func (m *SLAMonitor) flip(ctx context.Context, candidate *domain.Ticket, now time.Time) bool {
	breached := false
	_, err := m.tickets.Update(ctx, candidate.ID, func(t *domain.Ticket) error {
		if !t.Active() || t.SLAState != domain.SLAStateOnTime || !t.SLADeadline.Before(now) {
			return nil
		}
		t.SLAState = domain.SLAStateBreached
		breached = true
		return nil
	})
	if err != nil {
		m.logger.Error("sla sweep: flip ticket", zap.String("ticket_id", candidate.ID), zap.Error(err))
		return false
	}
	if !breached {
		return false
	}
	m.publish(ctx, events.Event{
		Type:           events.EventSLABreached,
		TicketID:       candidate.ID,
		CorrelationRef: candidate.CorrelationRef,
		Payload: events.SLABreachedPayload{
			SLADeadline: candidate.SLADeadline,
			TenantName:  candidate.TenantName,
		},
	})
	return true
}

// remind re-announces tickets that were already breached before this sweep.
// A ticket flipped in the current pass got its breach notification moments
// ago; its first reminder waits for the next sweep.
func (m *SLAMonitor) remind(ctx context.Context, justFlipped map[string]struct{}) {
	breached, err := m.tickets.ListBreached(ctx)
	if err != nil {
		m.logger.Error("sla sweep: list breached", zap.Error(err))
		return
	}
	for i := range breached {
		if _, ok := justFlipped[breached[i].ID]; ok {
			continue
		}
		m.publish(ctx, events.Event{
			Type:           events.EventSLAReminder,
			TicketID:       breached[i].ID,
			CorrelationRef: breached[i].CorrelationRef,
			Payload: events.SLABreachedPayload{
				SLADeadline: breached[i].SLADeadline,
				TenantName:  breached[i].TenantName,
			},
		})
	}
}

func (m *SLAMonitor) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = m.now()
	_ = m.dispatcher.Publish(ctx, event)
}

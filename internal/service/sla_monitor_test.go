package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/repository"
)

func newTestMonitor(t *testing.T, renotify bool) (*SLAMonitor, *LifecycleService, *testClock, *eventRecorder) {
	t.Helper()
	clock := newTestClock()
	repo := repository.NewMemoryTicketRepository()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	recorder := &eventRecorder{}
	recorder.subscribeAll(dispatcher)

	lifecycle := NewLifecycleService(LifecycleDependencies{
		TicketRepo: repo,
		Dispatcher: dispatcher,
		SLAWindow:  testSLAWindow,
		Now:        clock.Now,
	})
	monitor := NewSLAMonitor(SLAMonitorDependencies{
		TicketRepo: repo,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Interval:   time.Hour,
		Renotify:   renotify,
		Now:        clock.Now,
	})
	return monitor, lifecycle, clock, recorder
}

func TestSweep_FlipsOverdueTicketAndNotifiesOnce(t *testing.T) {
	t.Parallel()

	monitor, lifecycle, clock, recorder := newTestMonitor(t, false)
	ctx := context.Background()

	ticket, err := lifecycle.Create(ctx, createInput("ref-1"))
	require.NoError(t, err)

	// Sweep at T+25h with a 24h window.
	clock.Advance(25 * time.Hour)
	monitor.Sweep(ctx)

	after, err := lifecycle.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStateBreached, after.SLAState)
	assert.Equal(t, 1, recorder.countOf(events.EventSLABreached))

	// Subsequent sweeps neither re-flip nor re-notify.
	clock.Advance(time.Hour)
	monitor.Sweep(ctx)
	assert.Equal(t, 1, recorder.countOf(events.EventSLABreached))
	assert.Zero(t, recorder.countOf(events.EventSLAReminder))
}

func TestSweep_LeavesTicketsWithinWindowAlone(t *testing.T) {
	t.Parallel()

	monitor, lifecycle, clock, recorder := newTestMonitor(t, false)
	ctx := context.Background()

	ticket, err := lifecycle.Create(ctx, createInput("ref-1"))
	require.NoError(t, err)

	clock.Advance(23 * time.Hour)
	monitor.Sweep(ctx)

	after, err := lifecycle.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStateOnTime, after.SLAState)
	assert.Zero(t, recorder.countOf(events.EventSLABreached))
}

func TestSweep_IgnoresClosedAndCanceledTickets(t *testing.T) {
	t.Parallel()

	monitor, lifecycle, clock, recorder := newTestMonitor(t, false)
	ctx := context.Background()

	closed, err := lifecycle.Create(ctx, createInput("ref-closed"))
	require.NoError(t, err)
	_, err = lifecycle.Finalize(ctx, closed.ID, "A")
	require.NoError(t, err)

	canceled, err := lifecycle.Create(ctx, createInput("ref-canceled"))
	require.NoError(t, err)
	_, err = lifecycle.Cancel(ctx, canceled.ID, "A", "duplicate")
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	monitor.Sweep(ctx)

	for _, id := range []string{closed.ID, canceled.ID} {
		after, err := lifecycle.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SLAStateOnTime, after.SLAState)
	}
	assert.Zero(t, recorder.countOf(events.EventSLABreached))
}

func TestSweep_RenotifyRepeatsWhileBreached(t *testing.T) {
	t.Parallel()

	monitor, lifecycle, clock, recorder := newTestMonitor(t, true)
	ctx := context.Background()

	ticket, err := lifecycle.Create(ctx, createInput("ref-1"))
	require.NoError(t, err)
	_, err = lifecycle.Capture(ctx, ticket.ID, "A")
	require.NoError(t, err)

	// The flip sweep posts the breach notification only; reminders start on
	// the next sweep.
	clock.Advance(25 * time.Hour)
	monitor.Sweep(ctx)
	assert.Equal(t, 1, recorder.countOf(events.EventSLABreached))
	assert.Zero(t, recorder.countOf(events.EventSLAReminder))

	clock.Advance(time.Hour)
	monitor.Sweep(ctx)
	assert.Equal(t, 1, recorder.countOf(events.EventSLABreached))
	assert.Equal(t, 1, recorder.countOf(events.EventSLAReminder))

	clock.Advance(time.Hour)
	monitor.Sweep(ctx)
	assert.Equal(t, 2, recorder.countOf(events.EventSLAReminder))

	// Finalizing stops the reminders.
	_, err = lifecycle.Finalize(ctx, ticket.ID, "A")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	monitor.Sweep(ctx)
	assert.Equal(t, 2, recorder.countOf(events.EventSLAReminder))
}

func TestSweep_ReopenAfterBreachRestartsClock(t *testing.T) {
	t.Parallel()

	monitor, lifecycle, clock, recorder := newTestMonitor(t, false)
	ctx := context.Background()

	ticket, err := lifecycle.Create(ctx, createInput("ref-1"))
	require.NoError(t, err)
	_, err = lifecycle.Finalize(ctx, ticket.ID, "A")
	require.NoError(t, err)

	clock.Advance(30 * time.Hour)
	reopened, err := lifecycle.Reopen(ctx, ticket.ID, "B", "Aditivo")
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStateOnTime, reopened.SLAState)

	// Within the fresh window nothing breaches.
	clock.Advance(time.Hour)
	monitor.Sweep(ctx)
	assert.Zero(t, recorder.countOf(events.EventSLABreached))

	// Past the fresh window it breaches exactly once.
	clock.Advance(24 * time.Hour)
	monitor.Sweep(ctx)
	assert.Equal(t, 1, recorder.countOf(events.EventSLABreached))
}

func TestMonitorRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	monitor, _, _, _ := newTestMonitor(t, false)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop on context cancel")
	}
}

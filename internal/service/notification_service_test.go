package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/events"
)

// fakeGateway records posted messages and can be told to fail.
type fakeGateway struct {
	mu       sync.Mutex
	posted   []string
	refs     []string
	failNext bool
}

func (g *fakeGateway) PostEvent(ctx context.Context, correlationRef, message string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext {
		g.failNext = false
		return "", errors.New("channel unavailable")
	}
	g.posted = append(g.posted, message)
	g.refs = append(g.refs, correlationRef)
	return "delivery-1", nil
}

func (g *fakeGateway) ResolveDisplayName(ctx context.Context, actorRef string) (string, error) {
	return "Display " + actorRef, nil
}

func (g *fakeGateway) messages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.posted...)
}

func TestNotificationService_PostsThreadedByCorrelationRef(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	gateway := &fakeGateway{}
	svc := NewNotificationService(dispatcher, gateway, zap.NewNop(), nil, 0)
	svc.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:           events.EventTicketCaptured,
		TicketID:       "t-1",
		CorrelationRef: "thread-42",
		Actor:          "U001",
		Payload:        events.TicketCapturedPayload{Assignee: "U001"},
	})
	require.NoError(t, err)

	msgs := gateway.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Display U001")
	assert.Equal(t, []string{"thread-42"}, gateway.refs)
}

func TestNotificationService_DeliveryFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	gateway := &fakeGateway{failNext: true}
	svc := NewNotificationService(dispatcher, gateway, zap.NewNop(), nil, 0)
	svc.RegisterHandlers()

	// The publisher must never observe a gateway failure.
	err := dispatcher.Publish(context.Background(), events.Event{
		Type:           events.EventTicketFinalized,
		TicketID:       "t-1",
		CorrelationRef: "thread-42",
		Actor:          "U001",
	})
	require.NoError(t, err)
	assert.Empty(t, gateway.messages())

	// The next delivery goes through.
	err = dispatcher.Publish(context.Background(), events.Event{
		Type:           events.EventTicketFinalized,
		TicketID:       "t-1",
		CorrelationRef: "thread-42",
		Actor:          "U001",
	})
	require.NoError(t, err)
	assert.Len(t, gateway.messages(), 1)
}

func TestNotificationService_CancelMessageIncludesReason(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	gateway := &fakeGateway{}
	svc := NewNotificationService(dispatcher, gateway, zap.NewNop(), nil, 0)
	svc.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:           events.EventTicketCanceled,
		TicketID:       "t-1",
		CorrelationRef: "thread-42",
		Actor:          "U001",
		Payload:        events.TicketCanceledPayload{Reason: "duplicate"},
	})
	require.NoError(t, err)

	msgs := gateway.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "duplicate")
}

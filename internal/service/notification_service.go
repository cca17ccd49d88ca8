package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/notify"
)

// NotificationService renders lifecycle and SLA events into chat messages and
// posts them through the gateway. Delivery is best effort: failures are
// logged for operators and never surface to the publisher.
type NotificationService struct {
	dispatcher  events.Dispatcher
	gateway     notify.Gateway
	logger      *zap.Logger
	redis       *redis.Client
	reminderTTL time.Duration
}

// NewNotificationService creates the service. redisClient may be nil; it is
// only used to lease SLA reminders so multiple replicas sweeping the same
// store do not spam the thread.
func NewNotificationService(dispatcher events.Dispatcher, gateway notify.Gateway, logger *zap.Logger, redisClient *redis.Client, reminderTTL time.Duration) *NotificationService {
	return &NotificationService{
		dispatcher:  dispatcher,
		gateway:     gateway,
		logger:      logger,
		redis:       redisClient,
		reminderTTL: reminderTTL,
	}
}

// RegisterHandlers subscribes to lifecycle and SLA events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleCreated)
	n.dispatcher.Subscribe(events.EventTicketCaptured, n.handleCaptured)
	n.dispatcher.Subscribe(events.EventTicketFinalized, n.handleFinalized)
	n.dispatcher.Subscribe(events.EventTicketCanceled, n.handleCanceled)
	n.dispatcher.Subscribe(events.EventTicketReopened, n.handleReopened)
	n.dispatcher.Subscribe(events.EventTicketEdited, n.handleEdited)
	n.dispatcher.Subscribe(events.EventSLABreached, n.handleSLABreached)
	n.dispatcher.Subscribe(events.EventSLAReminder, n.handleSLAReminder)
}

func (n *NotificationService) handleCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("New ticket (%s) opened by %s: %s",
		payload.TenantName, n.displayName(ctx, event.Actor), payload.TicketType)
	n.post(ctx, event, msg)
	return nil
}

func (n *NotificationService) handleCaptured(ctx context.Context, event events.Event) error {
	msg := fmt.Sprintf("Ticket captured by %s", n.displayName(ctx, event.Actor))
	n.post(ctx, event, msg)
	return nil
}

func (n *NotificationService) handleFinalized(ctx context.Context, event events.Event) error {
	msg := fmt.Sprintf("Ticket finalized by %s", n.displayName(ctx, event.Actor))
	n.post(ctx, event, msg)
	return nil
}

func (n *NotificationService) handleCanceled(ctx context.Context, event events.Event) error {
	reason := ""
	if payload, ok := event.Payload.(events.TicketCanceledPayload); ok {
		reason = payload.Reason
	}
	msg := fmt.Sprintf("Ticket canceled by %s. Reason: %s", n.displayName(ctx, event.Actor), reason)
	n.post(ctx, event, msg)
	return nil
}

func (n *NotificationService) handleReopened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReopenedPayload)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("Ticket reopened by %s as %s, response due %s",
		n.displayName(ctx, event.Actor), payload.TicketType,
		payload.SLADeadline.Format(time.RFC3339))
	n.post(ctx, event, msg)
	return nil
}

func (n *NotificationService) handleEdited(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketEditedPayload)
	if !ok {
		return nil
	}
	parts := make([]string, 0, len(payload.Changes))
	for _, change := range payload.Changes {
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", change.Field, change.Before, change.After))
	}
	msg := fmt.Sprintf("Ticket edited by %s (%s)",
		n.displayName(ctx, event.Actor), strings.Join(parts, "; "))
	n.post(ctx, event, msg)
	return nil
}

func (n *NotificationService) handleSLABreached(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLABreachedPayload)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("SLA breached for ticket of %s, response was due %s",
		payload.TenantName, payload.SLADeadline.Format(time.RFC3339))
	n.post(ctx, event, msg)
	return nil
}

func (n *NotificationService) handleSLAReminder(ctx context.Context, event events.Event) error {
	if !n.acquireReminderLease(ctx, event.TicketID) {
		return nil
	}
	payload, ok := event.Payload.(events.SLABreachedPayload)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("Reminder: ticket of %s is still past its SLA (due %s)",
		payload.TenantName, payload.SLADeadline.Format(time.RFC3339))
	n.post(ctx, event, msg)
	return nil
}

// acquireReminderLease claims the reminder for one sweep period across
// replicas. Without Redis the reminder posts unconditionally.
func (n *NotificationService) acquireReminderLease(ctx context.Context, ticketID string) bool {
	if n.redis == nil || n.reminderTTL <= 0 {
		return true
	}
	key := "sla:reminder:" + ticketID
	ok, err := n.redis.SetNX(ctx, key, time.Now().Unix(), n.reminderTTL).Result()
	if err != nil {
		n.logger.Warn("reminder lease unavailable; sending anyway",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return true
	}
	return ok
}

func (n *NotificationService) post(ctx context.Context, event events.Event, message string) {
	deliveryRef, err := n.gateway.PostEvent(ctx, event.CorrelationRef, message)
	if err != nil {
		n.logger.Error("notification delivery failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return
	}
	n.logger.Debug("notification delivered",
		zap.String("ticket_id", event.TicketID),
		zap.String("delivery_ref", deliveryRef))
}

func (n *NotificationService) displayName(ctx context.Context, actorRef string) string {
	if actorRef == "" {
		return "unknown"
	}
	name, err := n.gateway.ResolveDisplayName(ctx, actorRef)
	if err != nil || name == "" {
		return actorRef
	}
	return name
}

package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway abstracts the host chat platform. The engine only consumes this
// interface; the real implementation lives with the platform integration.
type Gateway interface {
	// PostEvent posts a message into the thread identified by correlationRef
	// and returns the platform's delivery reference.
	PostEvent(ctx context.Context, correlationRef, message string) (string, error)
	// ResolveDisplayName maps a raw actor reference to a human-readable name.
	ResolveDisplayName(ctx context.Context, actorRef string) (string, error)
}

// logGateway writes would-be deliveries to the service log. It backs local
// runs and environments without a chat integration.
type logGateway struct {
	logger *zap.Logger
}

// NewLogGateway creates a gateway that only logs.
func NewLogGateway(logger *zap.Logger) Gateway {
	return &logGateway{logger: logger}
}

func (g *logGateway) PostEvent(ctx context.Context, correlationRef, message string) (string, error) {
	g.logger.Info("notification",
		zap.String("correlation_ref", correlationRef),
		zap.String("message", message))
	return uuid.NewString(), nil
}

func (g *logGateway) ResolveDisplayName(ctx context.Context, actorRef string) (string, error) {
	return actorRef, nil
}

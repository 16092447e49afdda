package messaging

import (
	"context"
	"log/slog"

	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

// LogPublisher writes events to the process log instead of a broker.
type LogPublisher struct{}

var _ ports.EventPublisher = LogPublisher{}

func (LogPublisher) Publish(ctx context.Context, event ports.Event) error {
	slog.InfoContext(ctx, "event published", "routing_key", event.RoutingKey, "payload", event.Payload)
	return nil
}

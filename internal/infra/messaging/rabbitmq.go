// Package messaging publishes ordering events to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

const Exchange = "orders_topic"

// Publisher sends events to the topic exchange. amqp channels are not safe
// for concurrent use, so publishes are serialized.
type Publisher struct {
	conn    *amqp091.Connection
	mu      sync.Mutex
	channel *amqp091.Channel
}

var _ ports.EventPublisher = (*Publisher)(nil)

// Dial connects to the broker, retrying a few times while it starts up, and
// declares the exchange.
func Dial(ctx context.Context, url string) (*Publisher, error) {
	const maxRetries = 5

	var (
		conn *amqp091.Connection
		err  error
	)
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp091.Dial(url)
		if err == nil {
			break
		}
		wait := time.Duration(i+1) * 2 * time.Second
		slog.WarnContext(ctx, "rabbitmq connection failed, retrying", "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("messaging: connect after %d attempts: %w", maxRetries, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("messaging: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("messaging: declare %s: %w", Exchange, err)
	}

	return &Publisher{conn: conn, channel: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, event ports.Event) error {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("messaging: marshal %s: %w", event.RoutingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		Exchange,         // exchange
		event.RoutingKey, // routing key
		false,            // mandatory
		false,            // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("messaging: publish %s: %w", event.RoutingKey, err)
	}

	slog.DebugContext(ctx, "event published", "routing_key", event.RoutingKey)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	return p.conn.Close()
}

package messaging

import (
	"context"
	"sync"

	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []ports.Event
}

var _ ports.EventPublisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, event ports.Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []ports.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.Event, len(r.events))
	copy(out, r.events)
	return out
}

// RoutingKeys lists the keys in publish order.
func (r *Recorder) RoutingKeys() []string {
	events := r.Events()
	keys := make([]string, len(events))
	for i, e := range events {
		keys[i] = e.RoutingKey
	}
	return keys
}

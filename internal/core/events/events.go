// Package events names the messages the ordering core publishes after a
// state change commits. Routing keys follow the topic exchange convention
// <aggregate>.<what>.
package events

import (
	"strings"
	"time"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

const (
	OrderCreated     = "order.created"
	OrderCancelled   = "order.cancelled"
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
	PaymentCancelled = "payment.cancelled"
)

// OrderStatusChanged is the routing key for a status move, e.g.
// order.status.delivered.
func OrderStatusChanged(status domain.OrderStatus) string {
	return "order.status." + strings.ToLower(string(status))
}

type OrderPayload struct {
	OrderID      string    `json:"order_id"`
	UserID       string    `json:"user_id"`
	RestaurantID string    `json:"restaurant_id"`
	Status       string    `json:"status"`
	TotalAmount  int64     `json:"total_amount"`
	DeliveryFee  int64     `json:"delivery_fee"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type PaymentPayload struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func ForOrder(key string, o *domain.Order, at time.Time) ports.Event {
	return ports.Event{
		RoutingKey: key,
		Payload: OrderPayload{
			OrderID:      o.ID,
			UserID:       o.UserID,
			RestaurantID: o.RestaurantID,
			Status:       string(o.Status),
			TotalAmount:  o.TotalAmount,
			DeliveryFee:  o.DeliveryFee,
			Reason:       o.CancelReason,
			OccurredAt:   at,
		},
	}
}

func ForPayment(key string, p *domain.Payment, at time.Time) ports.Event {
	reason := p.FailureReason
	if p.Status == domain.PaymentCancelled {
		reason = p.CancelReason
	}
	return ports.Event{
		RoutingKey: key,
		Payload: PaymentPayload{
			PaymentID:     p.ID,
			OrderID:       p.OrderID,
			Amount:        p.Amount,
			Method:        string(p.Method),
			Status:        string(p.Status),
			TransactionID: p.TransactionID,
			Reason:        reason,
			OccurredAt:    at,
		},
	}
}

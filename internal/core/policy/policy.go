// Package policy holds the authorization rules of the ordering core. Every
// rule returns a Decision instead of comparing roles, so callers can report
// the reason when access is denied.
package policy

import (
	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

// Decision is the outcome of a rule, with the reason when denied.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denied decision into a FORBIDDEN error.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return domain.Errorf(domain.KindForbidden, "%s", d.Reason)
}

// CanViewOrder lets the customer and the restaurant owner read an order.
func CanViewOrder(actorID string, order *domain.Order, restaurant *domain.Restaurant) Decision {
	if order.IsOwnedBy(actorID) {
		return allow()
	}
	if restaurant != nil && restaurant.IsOwnedBy(actorID) {
		return allow()
	}
	return deny("only the ordering user or the restaurant owner can view this order")
}

// CanAdvanceOrderStatus lets only the restaurant owner move an order forward.
func CanAdvanceOrderStatus(actorID string, restaurant *domain.Restaurant) Decision {
	if restaurant != nil && restaurant.IsOwnedBy(actorID) {
		return allow()
	}
	return deny("only the restaurant owner can change the order status")
}

// CanCancelOrder lets only the ordering user cancel an order.
func CanCancelOrder(actorID string, order *domain.Order) Decision {
	if order.IsOwnedBy(actorID) {
		return allow()
	}
	return deny("only the ordering user can cancel this order")
}

// CanPayOrder lets only the ordering user pay for an order.
func CanPayOrder(actorID string, order *domain.Order) Decision {
	if order.IsOwnedBy(actorID) {
		return allow()
	}
	return deny("only the ordering user can pay for this order")
}

// CanCancelPayment lets either party of the order void its payment.
func CanCancelPayment(actorID string, order *domain.Order, restaurant *domain.Restaurant) Decision {
	if order.IsOwnedBy(actorID) {
		return allow()
	}
	if restaurant != nil && restaurant.IsOwnedBy(actorID) {
		return allow()
	}
	return deny("only the ordering user or the restaurant owner can cancel this payment")
}

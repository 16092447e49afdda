package domain

import "time"

type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderPreparing  OrderStatus = "PREPARING"
	OrderReady      OrderStatus = "READY"
	OrderDelivering OrderStatus = "DELIVERING"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// orderSequence is the forward path of an order. CANCELLED sits outside it.
var orderSequence = []OrderStatus{
	OrderPending,
	OrderConfirmed,
	OrderPreparing,
	OrderReady,
	OrderDelivering,
	OrderDelivered,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	if st == OrderCancelled {
		return st, true
	}
	for _, known := range orderSequence {
		if st == known {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) position() int {
	for i, st := range orderSequence {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Cancellable reports whether the order is still before kitchen preparation.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// CanTransitionTo reports whether from → to is allowed: the next state of
// the sequence, or CANCELLED while still cancellable.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if to == OrderCancelled {
		return s.Cancellable()
	}
	from, next := s.position(), to.position()
	if from < 0 || next < 0 {
		return false
	}
	return next == from+1
}

// Order is an immutable-priced snapshot of what the customer bought.
type Order struct {
	ID              string
	UserID          string
	RestaurantID    string
	Lines           []OrderLine
	DeliveryAddress string
	PhoneNumber     string
	Note            string
	TotalAmount     int64
	DeliveryFee     int64
	Status          OrderStatus
	OrderedAt       time.Time
	CompletedAt     *time.Time
	CancelReason    string
}

// OrderLine freezes the unit price charged at order time.
type OrderLine struct {
	MenuItemID           string
	MenuItemName         string
	Quantity             int
	UnitPriceAtOrderTime int64
}

func (l OrderLine) Subtotal() int64 {
	return l.UnitPriceAtOrderTime * int64(l.Quantity)
}

// PayableAmount is what the customer is charged: items plus delivery.
func (o *Order) PayableAmount() int64 {
	return o.TotalAmount + o.DeliveryFee
}

func (o *Order) IsOwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

// Transition moves the order to next, stamping completedAt on terminal states.
func (o *Order) Transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return Errorf(KindInvalidStatusTransition, "order %s cannot move from %s to %s", o.ID, o.Status, next)
	}
	o.Status = next
	if next.IsTerminal() {
		o.CompletedAt = &now
	}
	return nil
}

// Cancel is the customer-initiated cancellation.
func (o *Order) Cancel(reason string, now time.Time) error {
	if !o.Status.Cancellable() {
		return Errorf(KindCancelWindowClosed, "order %s is %s and can no longer be cancelled", o.ID, o.Status)
	}
	o.Status = OrderCancelled
	o.CancelReason = reason
	o.CompletedAt = &now
	return nil
}

// ForceCancel cancels regardless of kitchen progress. Used when the payment
// backing the order has been voided.
func (o *Order) ForceCancel(reason string, now time.Time) error {
	switch o.Status {
	case OrderCancelled:
		return nil
	case OrderDelivered:
		return Errorf(KindInvalidStatusTransition, "order %s is already delivered", o.ID)
	}
	o.Status = OrderCancelled
	o.CancelReason = reason
	o.CompletedAt = &now
	return nil
}

// Package order owns order creation and the order status state machine.
package order

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jcmexdev/food-ordering/internal/app/cart"
	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/events"
	"github.com/jcmexdev/food-ordering/internal/core/policy"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

const DefaultCancelReason = "customer request"

// Service is the order engine.
type Service struct {
	store     ports.Store
	catalog   ports.Catalog
	carts     *cart.Service
	publisher ports.EventPublisher
	ids       ports.IDGenerator
	clock     ports.Clock
}

// NewService initializes the order engine. publisher may be nil.
func NewService(store ports.Store, catalog ports.Catalog, carts *cart.Service, publisher ports.EventPublisher) *Service {
	if publisher == nil {
		publisher = ports.NopPublisher{}
	}
	return &Service{
		store:     store,
		catalog:   catalog,
		carts:     carts,
		publisher: publisher,
		ids:       ports.UUIDGenerator{},
		clock:     ports.SystemClock{},
	}
}

// LineInput is one requested menu item and its quantity.
type LineInput struct {
	MenuItemID string
	Quantity   int
}

// CreateInput carries a direct order request.
type CreateInput struct {
	UserID          string
	RestaurantID    string
	Lines           []LineInput
	DeliveryAddress string
	PhoneNumber     string
	Note            string
}

func (in CreateInput) validate() error {
	if in.UserID == "" {
		return domain.Errorf(domain.KindInvalidInput, "user id is required")
	}
	if in.RestaurantID == "" {
		return domain.Errorf(domain.KindInvalidInput, "restaurant id is required")
	}
	if len(in.Lines) == 0 {
		return domain.Errorf(domain.KindInvalidInput, "order must contain at least one item")
	}
	for _, l := range in.Lines {
		if l.MenuItemID == "" {
			return domain.Errorf(domain.KindInvalidInput, "menu item id is required")
		}
		if l.Quantity < 1 || l.Quantity > domain.MaxLineQuantity {
			return domain.Errorf(domain.KindInvalidInput, "quantity of %s must be between 1 and %d", l.MenuItemID, domain.MaxLineQuantity)
		}
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return domain.Errorf(domain.KindInvalidInput, "delivery address is required")
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return domain.Errorf(domain.KindInvalidInput, "phone number is required")
	}
	return nil
}

// Create validates every line against the live catalog and stores a PENDING
// order with the current prices frozen into its lines. Any failing line
// rejects the whole order.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	restaurant, err := s.catalog.GetRestaurant(ctx, in.RestaurantID)
	if err != nil {
		return nil, err
	}

	items := make([]*domain.MenuItem, len(in.Lines))
	for i, l := range in.Lines {
		item, err := s.catalog.GetMenuItem(ctx, l.MenuItemID)
		if err != nil {
			return nil, err
		}
		if item.RestaurantID != restaurant.ID {
			return nil, domain.Errorf(domain.KindCrossRestaurantOrder,
				"menu item %q does not belong to restaurant %s", item.Name, restaurant.ID)
		}
		items[i] = item
	}

	var total int64
	lines := make([]domain.OrderLine, len(in.Lines))
	for i, item := range items {
		if !item.IsAvailable() {
			return nil, domain.Errorf(domain.KindItemUnavailable, "menu item %q is not available", item.Name)
		}
		lines[i] = domain.OrderLine{
			MenuItemID:           item.ID,
			MenuItemName:         item.Name,
			Quantity:             in.Lines[i].Quantity,
			UnitPriceAtOrderTime: item.Price,
		}
		total += lines[i].Subtotal()
	}

	if total < restaurant.MinimumOrderAmount {
		return nil, domain.Errorf(domain.KindBelowMinimum, "%s",
			cart.BelowMinimumReason(restaurant.MinimumOrderAmount, total))
	}

	order := &domain.Order{
		ID:              s.ids.NewID(),
		UserID:          in.UserID,
		RestaurantID:    restaurant.ID,
		Lines:           lines,
		DeliveryAddress: in.DeliveryAddress,
		PhoneNumber:     in.PhoneNumber,
		Note:            in.Note,
		TotalAmount:     total,
		DeliveryFee:     restaurant.DeliveryFee,
		Status:          domain.OrderPending,
		OrderedAt:       s.clock.Now(),
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"user_id", order.UserID,
		"restaurant_id", order.RestaurantID,
		"total_amount", order.TotalAmount,
	)
	s.publish(ctx, events.ForOrder(events.OrderCreated, order, order.OrderedAt))
	return order, nil
}

// CreateFromCart checks out the user's cart: stale lines are pruned, the
// order is created from the draft and the cart is cleared.
func (s *Service) CreateFromCart(ctx context.Context, userID, note string) (*domain.Order, error) {
	var created *domain.Order
	err := s.carts.Checkout(ctx, userID, func(ctx context.Context, draft *cart.Draft) error {
		lines := make([]LineInput, len(draft.Lines))
		for i, l := range draft.Lines {
			lines[i] = LineInput{MenuItemID: l.MenuItemID, Quantity: l.Quantity}
		}
		o, err := s.Create(ctx, CreateInput{
			UserID:          userID,
			RestaurantID:    draft.RestaurantID,
			Lines:           lines,
			DeliveryAddress: draft.DeliveryAddress,
			PhoneNumber:     draft.PhoneNumber,
			Note:            note,
		})
		created = o
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AdvanceStatus is the restaurant owner moving an order forward.
func (s *Service) AdvanceStatus(ctx context.Context, orderID, actorID string, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.catalog.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanAdvanceOrderStatus(actorID, restaurant).Err(); err != nil {
		return nil, err
	}

	prev := order.Status
	now := s.clock.Now()
	if err := order.Transition(next, now); err != nil {
		return nil, err
	}
	if next == domain.OrderCancelled && order.CancelReason == "" {
		order.CancelReason = "cancelled by restaurant"
	}
	if err := s.store.Orders().UpdateStatus(ctx, order, prev); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order status changed", "order_id", order.ID, "from", string(prev), "to", string(next))
	s.publish(ctx, events.ForOrder(events.OrderStatusChanged(next), order, now))
	if next == domain.OrderCancelled {
		s.publish(ctx, events.ForOrder(events.OrderCancelled, order, now))
	}
	return order, nil
}

// Cancel is the customer cancelling before the kitchen starts. The payment,
// if any, is left to the payment engine.
func (s *Service) Cancel(ctx context.Context, orderID, actorID, reason string) (*domain.Order, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanCancelOrder(actorID, order).Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultCancelReason
	}

	prev := order.Status
	now := s.clock.Now()
	if err := order.Cancel(reason, now); err != nil {
		return nil, err
	}
	if err := s.store.Orders().UpdateStatus(ctx, order, prev); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order cancelled", "order_id", order.ID, "reason", reason)
	s.publish(ctx, events.ForOrder(events.OrderStatusChanged(domain.OrderCancelled), order, now))
	s.publish(ctx, events.ForOrder(events.OrderCancelled, order, now))
	return order, nil
}

// Get returns an order visible to actorID.
func (s *Service) Get(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsOwnedBy(actorID) {
		return order, nil
	}
	restaurant, err := s.catalog.GetRestaurant(ctx, order.RestaurantID)
	if err != nil && !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}
	if err := policy.CanViewOrder(actorID, order, restaurant).Err(); err != nil {
		return nil, err
	}
	return order, nil
}

// ListMine lists the user's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, page ports.Page) ([]*domain.Order, error) {
	return s.store.Orders().ListByUser(ctx, userID, page)
}

// publish is best effort: the state change is already committed.
func (s *Service) publish(ctx context.Context, ev ports.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "event publish failed", "routing_key", ev.RoutingKey, "error", err)
	}
}

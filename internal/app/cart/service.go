// Package cart implements the per-user shopping cart: adding and updating
// lines, the single-restaurant rule, and the checkout draft.
package cart

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
	"github.com/jcmexdev/food-ordering/internal/pkg/keylock"
)

const reasonEmpty = "cart is empty"

// Service is the cart engine. Writes for one user are serialized by locks.
type Service struct {
	store   ports.Store
	catalog ports.Catalog
	users   ports.UserDirectory
	locks   *keylock.Locker
	ids     ports.IDGenerator
	clock   ports.Clock
}

// NewService initializes the cart engine; a nil locker gets a fresh one.
func NewService(store ports.Store, catalog ports.Catalog, users ports.UserDirectory, locks *keylock.Locker) *Service {
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		users:   users,
		locks:   locks,
		ids:     ports.UUIDGenerator{},
		clock:   ports.SystemClock{},
	}
}

// ItemView is one cart line priced at the current menu price.
type ItemView struct {
	MenuItemID string
	Name       string
	UnitPrice  int64
	Quantity   int
	Subtotal   int64
	Available  bool
}

// View is the read model returned by Snapshot.
type View struct {
	CartID             string
	UserID             string
	RestaurantID       string
	RestaurantName     string
	Items              []ItemView
	TotalAmount        int64
	TotalQuantity      int
	MinimumOrderAmount int64
	DeliveryFee        int64
	CanOrder           bool
	Reason             string
}

// Draft is what checkout hands to the order engine.
type Draft struct {
	UserID          string
	RestaurantID    string
	Lines           []domain.CartLine
	DeliveryAddress string
	PhoneNumber     string
}

func (s *Service) lock(userID string) func() {
	return s.locks.Lock("cart:" + userID)
}

// AddItem puts qty of a menu item in the user's cart, creating the cart on
// first use. An item from another restaurant empties the cart first.
func (s *Service) AddItem(ctx context.Context, userID, menuItemID string, qty int) (*View, error) {
	if qty < 1 || qty > domain.MaxLineQuantity {
		return nil, domain.Errorf(domain.KindInvalidInput, "quantity must be between 1 and %d", domain.MaxLineQuantity)
	}
	if menuItemID == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "menu item id is required")
	}

	item, err := s.catalog.GetMenuItem(ctx, menuItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable() {
		return nil, domain.Errorf(domain.KindItemUnavailable, "menu item %q is not available", item.Name)
	}

	unlock := s.lock(userID)
	defer unlock()

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		cart, err := s.loadOrNew(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cart.RestaurantID != "" && cart.RestaurantID != item.RestaurantID {
			slog.InfoContext(ctx, "cart restaurant switched, clearing",
				"user_id", userID, "from", cart.RestaurantID, "to", item.RestaurantID)
		}
		if cart.RestaurantID == item.RestaurantID && cart.QuantityOf(item.ID)+qty > domain.MaxLineQuantity {
			return domain.Errorf(domain.KindInvalidInput, "at most %d of %q fit in the cart", domain.MaxLineQuantity, item.Name)
		}
		cart.Add(*item, qty)
		cart.UpdatedAt = s.clock.Now()
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.Snapshot(ctx, userID)
}

// UpdateItemQuantity replaces a line's quantity. Zero removes the line.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID, menuItemID string, qty int) (*View, error) {
	if qty < 0 || qty > domain.MaxLineQuantity {
		return nil, domain.Errorf(domain.KindInvalidInput, "quantity must be between 0 and %d", domain.MaxLineQuantity)
	}

	unlock := s.lock(userID)
	defer unlock()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		if !cart.SetQuantity(menuItemID, qty) {
			return domain.Errorf(domain.KindItemNotInCart, "menu item %s is not in the cart", menuItemID)
		}
		cart.UpdatedAt = s.clock.Now()
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.Snapshot(ctx, userID)
}

// RemoveItem drops a line. Removing an absent item is a no-op.
func (s *Service) RemoveItem(ctx context.Context, userID, menuItemID string) (*View, error) {
	unlock := s.lock(userID)
	defer unlock()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if domain.IsKind(err, domain.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !cart.Has(menuItemID) {
			return nil
		}
		cart.Remove(menuItemID)
		cart.UpdatedAt = s.clock.Now()
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return nil, err
	}
	return s.Snapshot(ctx, userID)
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	unlock := s.lock(userID)
	defer unlock()
	return s.clear(ctx, userID)
}

func (s *Service) clear(ctx context.Context, userID string) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if domain.IsKind(err, domain.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cart.Clear()
		cart.UpdatedAt = s.clock.Now()
		return tx.Carts().Save(ctx, cart)
	})
}

// ValidateItems silently drops lines whose menu item is gone or no longer
// available. It returns the number of dropped lines.
func (s *Service) ValidateItems(ctx context.Context, userID string) (int, error) {
	unlock := s.lock(userID)
	defer unlock()
	return s.validate(ctx, userID)
}

func (s *Service) validate(ctx context.Context, userID string) (int, error) {
	cart, err := s.store.Carts().GetByUser(ctx, userID)
	if domain.IsKind(err, domain.KindNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	// catalog lookups happen outside the transaction
	var stale []string
	for _, line := range cart.Lines {
		item, err := s.catalog.GetMenuItem(ctx, line.MenuItemID)
		switch {
		case domain.IsKind(err, domain.KindNotFound):
			stale = append(stale, line.MenuItemID)
		case err != nil:
			return 0, err
		case !item.IsAvailable():
			stale = append(stale, line.MenuItemID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range stale {
			cart.Remove(id)
		}
		cart.UpdatedAt = s.clock.Now()
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "dropped unavailable cart lines", "user_id", userID, "count", len(stale))
	return len(stale), nil
}

// ToOrderDraft turns the cart into order input, copying the delivery details
// from the user's profile.
func (s *Service) ToOrderDraft(ctx context.Context, userID string) (*Draft, error) {
	cart, err := s.store.Carts().GetByUser(ctx, userID)
	if domain.IsKind(err, domain.KindNotFound) {
		return nil, domain.Errorf(domain.KindEmptyCart, reasonEmpty)
	}
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.Errorf(domain.KindEmptyCart, reasonEmpty)
	}

	profile, err := s.users.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, len(cart.Lines))
	copy(lines, cart.Lines)
	return &Draft{
		UserID:          userID,
		RestaurantID:    cart.RestaurantID,
		Lines:           lines,
		DeliveryAddress: profile.Address,
		PhoneNumber:     profile.PhoneNumber,
	}, nil
}

// Checkout validates the cart, builds the draft and hands it to place while
// holding the cart lock. The cart is cleared only if place succeeds.
func (s *Service) Checkout(ctx context.Context, userID string, place func(ctx context.Context, draft *Draft) error) error {
	unlock := s.lock(userID)
	defer unlock()

	if _, err := s.validate(ctx, userID); err != nil {
		return err
	}
	draft, err := s.ToOrderDraft(ctx, userID)
	if err != nil {
		return err
	}
	if err := place(ctx, draft); err != nil {
		return err
	}
	return s.clear(ctx, userID)
}

// Snapshot prices the cart at current menu prices and reports whether it
// meets the restaurant's minimum order amount.
func (s *Service) Snapshot(ctx context.Context, userID string) (*View, error) {
	view := &View{UserID: userID, Items: []ItemView{}}

	cart, err := s.store.Carts().GetByUser(ctx, userID)
	if domain.IsKind(err, domain.KindNotFound) {
		view.Reason = reasonEmpty
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	view.CartID = cart.ID
	view.RestaurantID = cart.RestaurantID

	for _, line := range cart.Lines {
		iv := ItemView{MenuItemID: line.MenuItemID, Quantity: line.Quantity}
		item, err := s.catalog.GetMenuItem(ctx, line.MenuItemID)
		switch {
		case domain.IsKind(err, domain.KindNotFound):
		case err != nil:
			return nil, err
		default:
			iv.Name = item.Name
			iv.UnitPrice = item.Price
			iv.Subtotal = item.Price * int64(line.Quantity)
			iv.Available = item.IsAvailable()
		}
		view.Items = append(view.Items, iv)
		view.TotalAmount += iv.Subtotal
		view.TotalQuantity += line.Quantity
	}

	if cart.IsEmpty() {
		view.Reason = reasonEmpty
		return view, nil
	}

	restaurant, err := s.catalog.GetRestaurant(ctx, cart.RestaurantID)
	if err != nil {
		return nil, err
	}
	view.RestaurantName = restaurant.Name
	view.MinimumOrderAmount = restaurant.MinimumOrderAmount
	view.DeliveryFee = restaurant.DeliveryFee

	if view.TotalAmount < restaurant.MinimumOrderAmount {
		view.Reason = BelowMinimumReason(restaurant.MinimumOrderAmount, view.TotalAmount)
		return view, nil
	}
	view.CanOrder = true
	return view, nil
}

// Count returns the total quantity of items in the cart.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	cart, err := s.store.Carts().GetByUser(ctx, userID)
	if domain.IsKind(err, domain.KindNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cart.TotalQuantity(), nil
}

// BelowMinimumReason is shared with the order engine so both report the
// same message.
func BelowMinimumReason(minimum, total int64) string {
	return fmt.Sprintf("minimum order amount of %s not met (current total: %s)",
		domain.FormatAmount(minimum), domain.FormatAmount(total))
}

func (s *Service) loadOrNew(ctx context.Context, tx ports.Store, userID string) (*domain.Cart, error) {
	cart, err := tx.Carts().GetByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}
	now := s.clock.Now()
	return &domain.Cart{ID: s.ids.NewID(), UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

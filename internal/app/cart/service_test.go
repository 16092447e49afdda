package cart_test

import (
	"context"
	"strings"
	"testing"

	"github.com/jcmexdev/food-ordering/internal/app/apptest"
	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	view, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Fried, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if view.TotalAmount != 18000 || view.TotalQuantity != 1 {
		t.Fatalf("unexpected totals %d/%d", view.TotalAmount, view.TotalQuantity)
	}
	if !view.CanOrder {
		t.Fatalf("18,000 meets a 15,000 minimum, reason: %q", view.Reason)
	}

	view, err = env.Carts.AddItem(ctx, apptest.Customer, apptest.Fried, 2)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 3 {
		t.Fatalf("same item must accumulate, got %+v", view.Items)
	}
}

func TestAddItemRejects(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	tests := []struct {
		name string
		item string
		qty  int
		want domain.Kind
	}{
		{"zero quantity", apptest.Fried, 0, domain.KindInvalidInput},
		{"quantity over the line cap", apptest.Fried, domain.MaxLineQuantity + 1, domain.KindInvalidInput},
		{"missing item id", "", 1, domain.KindInvalidInput},
		{"unknown item", "menu_nope", 1, domain.KindNotFound},
		{"sold out", apptest.Wings, 1, domain.KindItemUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Carts.AddItem(ctx, apptest.Customer, tt.item, tt.qty)
			if got := domain.KindOf(err); got != tt.want {
				t.Fatalf("kind = %s, want %s (err: %v)", got, tt.want, err)
			}
		})
	}

	if n, _ := env.Carts.Count(ctx, apptest.Customer); n != 0 {
		t.Fatalf("rejected adds must not touch the cart, count = %d", n)
	}
}

func TestCartTotals(t *testing.T) {
	type line struct {
		item string
		qty  int
	}
	tests := []struct {
		name         string
		friedPrice   int64
		lines        []line
		wantAmount   int64
		wantQuantity int
		wantOrder    bool
	}{
		{"two mains and three drinks", 20000, []line{{apptest.Fried, 2}, {apptest.Cola, 3}}, 46000, 5, true},
		{"drinks only", 18000, []line{{apptest.Cola, 3}}, 6000, 3, false},
		{"merged lines", 18000, []line{{apptest.Fried, 1}, {apptest.Cola, 1}, {apptest.Fried, 1}}, 38000, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := apptest.New(t)
			env.Catalog.SetPrice(apptest.Fried, tt.friedPrice)

			for _, l := range tt.lines {
				if _, err := env.Carts.AddItem(ctx, apptest.Customer, l.item, l.qty); err != nil {
					t.Fatalf("add %s: %v", l.item, err)
				}
			}
			view, err := env.Carts.Snapshot(ctx, apptest.Customer)
			if err != nil {
				t.Fatal(err)
			}
			if view.TotalAmount != tt.wantAmount || view.TotalQuantity != tt.wantQuantity {
				t.Fatalf("totals = %d/%d, want %d/%d", view.TotalAmount, view.TotalQuantity, tt.wantAmount, tt.wantQuantity)
			}
			if view.CanOrder != tt.wantOrder {
				t.Fatalf("CanOrder = %v, want %v (reason %q)", view.CanOrder, tt.wantOrder, view.Reason)
			}
		})
	}
}

func TestLineQuantityCap(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Cola, domain.MaxLineQuantity); err != nil {
		t.Fatalf("add up to the cap: %v", err)
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{"merge past the cap", func() error {
			_, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Cola, 1)
			return err
		}},
		{"update past the cap", func() error {
			_, err := env.Carts.UpdateItemQuantity(ctx, apptest.Customer, apptest.Cola, domain.MaxLineQuantity+1)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !domain.IsKind(err, domain.KindInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
		})
	}

	view, err := env.Carts.Snapshot(ctx, apptest.Customer)
	if err != nil {
		t.Fatal(err)
	}
	if view.TotalQuantity != domain.MaxLineQuantity {
		t.Fatalf("rejected changes must not touch the cart, quantity = %d", view.TotalQuantity)
	}
}

func TestAddItemFromAnotherRestaurantReplacesCart(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Fried, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Cola, 2); err != nil {
		t.Fatal(err)
	}

	view, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Pepperoni, 1)
	if err != nil {
		t.Fatalf("add pizza: %v", err)
	}
	if view.RestaurantID != apptest.Pizza {
		t.Fatalf("restaurant = %s, want %s", view.RestaurantID, apptest.Pizza)
	}
	if len(view.Items) != 1 || view.Items[0].MenuItemID != apptest.Pepperoni {
		t.Fatalf("previous restaurant's lines must be gone, got %+v", view.Items)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Fried, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Cola, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Carts.UpdateItemQuantity(ctx, apptest.Customer, apptest.Spicy, 2); !domain.IsKind(err, domain.KindItemNotInCart) {
		t.Fatalf("expected ITEM_NOT_IN_CART, got %v", err)
	}
	if _, err := env.Carts.UpdateItemQuantity(ctx, apptest.Customer, apptest.Cola, -1); !domain.IsKind(err, domain.KindInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}

	view, err := env.Carts.UpdateItemQuantity(ctx, apptest.Customer, apptest.Cola, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.TotalAmount != 18000+4*2000 {
		t.Fatalf("total = %d", view.TotalAmount)
	}

	view, err = env.Carts.UpdateItemQuantity(ctx, apptest.Customer, apptest.Cola, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("zero quantity must remove the line, got %+v", view.Items)
	}

	// absent item is a no-op
	if _, err := env.Carts.RemoveItem(ctx, apptest.Customer, apptest.Spicy); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	view, err = env.Carts.RemoveItem(ctx, apptest.Customer, apptest.Fried)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(view.Items) != 0 || view.CanOrder || view.Reason == "" {
		t.Fatalf("empty cart view expected, got %+v", view)
	}
}

func TestSnapshotBelowMinimum(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	view, err := env.Carts.Snapshot(ctx, apptest.Customer)
	if err != nil {
		t.Fatalf("snapshot of missing cart: %v", err)
	}
	if view.CanOrder || view.Reason == "" {
		t.Fatalf("missing cart must not be orderable: %+v", view)
	}

	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Cola, 3); err != nil {
		t.Fatal(err)
	}
	view, err = env.Carts.Snapshot(ctx, apptest.Customer)
	if err != nil {
		t.Fatal(err)
	}
	if view.CanOrder {
		t.Fatal("6,000 is below the 15,000 minimum")
	}
	if !strings.Contains(view.Reason, "15,000") || !strings.Contains(view.Reason, "6,000") {
		t.Fatalf("reason should name both amounts: %q", view.Reason)
	}
	if view.DeliveryFee != 3000 || view.RestaurantName != "Crispy Chicken" {
		t.Fatalf("restaurant details missing: %+v", view)
	}
}

func TestSnapshotUsesCurrentPrices(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Fried, 1); err != nil {
		t.Fatal(err)
	}
	env.Catalog.SetPrice(apptest.Fried, 20000)

	view, err := env.Carts.Snapshot(ctx, apptest.Customer)
	if err != nil {
		t.Fatal(err)
	}
	if view.TotalAmount != 20000 {
		t.Fatalf("cart must reprice at read time, total = %d", view.TotalAmount)
	}
}

func TestValidateItemsDropsUnavailable(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	for _, id := range []string{apptest.Fried, apptest.Spicy, apptest.Cola} {
		if _, err := env.Carts.AddItem(ctx, apptest.Customer, id, 1); err != nil {
			t.Fatal(err)
		}
	}
	env.Catalog.SetAvailability(apptest.Spicy, domain.SoldOut)
	env.Catalog.SetAvailability(apptest.Cola, domain.Unavailable)

	dropped, err := env.Carts.ValidateItems(ctx, apptest.Customer)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if dropped != 2 {
		t.Fatalf("dropped = %d, want 2", dropped)
	}
	if n, _ := env.Carts.Count(ctx, apptest.Customer); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}

	dropped, err = env.Carts.ValidateItems(ctx, apptest.Customer)
	if err != nil || dropped != 0 {
		t.Fatalf("second validate = %d, %v", dropped, err)
	}
}

func TestToOrderDraft(t *testing.T) {
	ctx := context.Background()
	env := apptest.New(t)

	if _, err := env.Carts.ToOrderDraft(ctx, apptest.Customer); !domain.IsKind(err, domain.KindEmptyCart) {
		t.Fatalf("expected EMPTY_CART, got %v", err)
	}

	if _, err := env.Carts.AddItem(ctx, apptest.Customer, apptest.Fried, 2); err != nil {
		t.Fatal(err)
	}
	draft, err := env.Carts.ToOrderDraft(ctx, apptest.Customer)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if draft.RestaurantID != apptest.Chicken || len(draft.Lines) != 1 || draft.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if draft.DeliveryAddress == "" || draft.PhoneNumber == "" {
		t.Fatalf("draft must copy the profile's delivery details: %+v", draft)
	}

	if err := env.Carts.Clear(ctx, apptest.Customer); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := env.Carts.ToOrderDraft(ctx, apptest.Customer); !domain.IsKind(err, domain.KindEmptyCart) {
		t.Fatalf("cleared cart must be EMPTY_CART, got %v", err)
	}
}

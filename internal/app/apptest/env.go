// Package apptest builds a wired set of engines over a throwaway SQLite file
// for the app package tests.
package apptest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jcmexdev/food-ordering/internal/app/cart"
	"github.com/jcmexdev/food-ordering/internal/app/order"
	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/infra/catalog/memcatalog"
	"github.com/jcmexdev/food-ordering/internal/infra/messaging"
	"github.com/jcmexdev/food-ordering/internal/infra/storage/sqlstore"
	"github.com/jcmexdev/food-ordering/internal/pkg/keylock"
)

const (
	Customer      = "user_1"
	OtherCustomer = "user_2"
	ChickenOwner  = "owner_1"
	PizzaOwner    = "owner_2"

	Chicken = "rest_chicken"
	Pizza   = "rest_pizza"

	Fried     = "menu_fried"     // 18,000
	Spicy     = "menu_spicy"     // 19,000
	Cola      = "menu_cola"      // 2,000
	Wings     = "menu_wings"     // sold out
	Pepperoni = "menu_pepperoni" // 22,000
)

type Env struct {
	Store   *sqlstore.Store
	Catalog *memcatalog.Catalog
	Events  *messaging.Recorder
	Carts   *cart.Service
	Orders  *order.Service
}

func New(t *testing.T) *Env {
	t.Helper()

	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "ordering.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	catalog := memcatalog.New()
	catalog.PutRestaurant(domain.Restaurant{ID: Chicken, Name: "Crispy Chicken", OwnerID: ChickenOwner, MinimumOrderAmount: 15000, DeliveryFee: 3000})
	catalog.PutRestaurant(domain.Restaurant{ID: Pizza, Name: "Pizza House", OwnerID: PizzaOwner, MinimumOrderAmount: 20000, DeliveryFee: 2000})
	catalog.PutMenuItem(domain.MenuItem{ID: Fried, RestaurantID: Chicken, Name: "Fried Chicken", Price: 18000, Availability: domain.Available})
	catalog.PutMenuItem(domain.MenuItem{ID: Spicy, RestaurantID: Chicken, Name: "Spicy Chicken", Price: 19000, Availability: domain.Available})
	catalog.PutMenuItem(domain.MenuItem{ID: Cola, RestaurantID: Chicken, Name: "Cola", Price: 2000, Availability: domain.Available})
	catalog.PutMenuItem(domain.MenuItem{ID: Wings, RestaurantID: Chicken, Name: "Wings", Price: 12000, Availability: domain.SoldOut})
	catalog.PutMenuItem(domain.MenuItem{ID: Pepperoni, RestaurantID: Pizza, Name: "Pepperoni Pizza", Price: 22000, Availability: domain.Available})
	catalog.PutUser(domain.UserProfile{ID: Customer, Address: "123 Teheran-ro", PhoneNumber: "010-1234-5678"})
	catalog.PutUser(domain.UserProfile{ID: OtherCustomer, Address: "45 Sejong-daero", PhoneNumber: "010-9876-5432"})

	events := &messaging.Recorder{}
	carts := cart.NewService(store, catalog, catalog, keylock.New())
	return &Env{
		Store:   store,
		Catalog: catalog,
		Events:  events,
		Carts:   carts,
		Orders:  order.NewService(store, catalog, carts, events),
	}
}

// PlaceOrder creates a PENDING chicken order worth 36,000 plus delivery.
func (e *Env) PlaceOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := e.Orders.Create(context.Background(), order.CreateInput{
		UserID:          Customer,
		RestaurantID:    Chicken,
		Lines:           []order.LineInput{{MenuItemID: Fried, Quantity: 2}},
		DeliveryAddress: "123 Teheran-ro",
		PhoneNumber:     "010-1234-5678",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

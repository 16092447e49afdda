package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedOrder(t *testing.T, s *Store, id string) *domain.Order {
	t.Helper()
	o := &domain.Order{
		ID:              id,
		UserID:          "user_1",
		RestaurantID:    "rest_1",
		DeliveryAddress: "addr",
		PhoneNumber:     "010",
		TotalAmount:     20000,
		DeliveryFee:     3000,
		Status:          domain.OrderPending,
		OrderedAt:       time.Now().UTC(),
		Lines: []domain.OrderLine{
			{MenuItemID: "m1", MenuItemName: "Pizza", Quantity: 1, UnitPriceAtOrderTime: 20000},
		},
	}
	if err := s.Orders().Create(context.Background(), o); err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

func TestCartRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Carts().GetByUser(ctx, "user_1"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}

	now := time.Now().UTC()
	cart := &domain.Cart{ID: "c1", UserID: "user_1", RestaurantID: "rest_1", CreatedAt: now, UpdatedAt: now,
		Lines: []domain.CartLine{{MenuItemID: "m2", Quantity: 2}, {MenuItemID: "m1", Quantity: 1}}}

	err := s.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		return tx.Carts().Save(ctx, cart)
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Carts().GetByUser(ctx, "user_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Lines) != 2 || got.Lines[0].MenuItemID != "m2" || got.Lines[1].Quantity != 1 {
		t.Fatalf("lines not preserved in order: %+v", got.Lines)
	}

	cart.Clear()
	if err := s.Carts().Save(ctx, cart); err != nil {
		t.Fatalf("save cleared: %v", err)
	}
	got, _ = s.Carts().GetByUser(ctx, "user_1")
	if !got.IsEmpty() || got.RestaurantID != "" {
		t.Fatalf("expected cleared cart, got %+v", got)
	}
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx ports.Store) error {
		seedOrder(t, tx.(*Store), "o1")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Orders().Get(ctx, "o1"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected order to be rolled back, got %v", err)
	}
}

func TestOrderGuardedStatusUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	o := seedOrder(t, s, "o1")

	o.Status = domain.OrderConfirmed
	if err := s.Orders().UpdateStatus(ctx, o, domain.OrderPending); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// a second writer still believing the order is PENDING must lose
	stale := *o
	stale.Status = domain.OrderCancelled
	err := s.Orders().UpdateStatus(ctx, &stale, domain.OrderPending)
	if !domain.IsKind(err, domain.KindInvalidStatusTransition) {
		t.Fatalf("expected INVALID_STATUS_TRANSITION, got %v", err)
	}

	got, err := s.Orders().Get(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.OrderConfirmed || len(got.Lines) != 1 || got.Lines[0].UnitPriceAtOrderTime != 20000 {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestPaymentUniquePerOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedOrder(t, s, "o1")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		kinds  []domain.Kind
		starts = make(chan struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-starts
			now := time.Now().UTC()
			p := &domain.Payment{
				ID: "p" + string(rune('a'+i)), OrderID: "o1", Amount: 23000,
				Method: domain.MethodCreditCard, Status: domain.PaymentPending,
				CreatedAt: now, UpdatedAt: now,
			}
			err := s.Payments().Create(ctx, p)
			mu.Lock()
			kinds = append(kinds, domain.KindOf(err))
			mu.Unlock()
		}(i)
	}
	close(starts)
	wg.Wait()

	created := 0
	for _, k := range kinds {
		switch k {
		case "":
			created++
		case domain.KindAlreadyPaid:
		default:
			t.Fatalf("unexpected kind %q", k)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one payment, got %d", created)
	}
}

func TestPaymentHistoryAndStale(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"o1", "o2", "o3"} {
		seedOrder(t, s, id)
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		p := &domain.Payment{
			ID: "p_" + id, OrderID: id, Amount: 23000, Method: domain.MethodCash,
			Status: domain.PaymentProcessing, CreatedAt: at, UpdatedAt: at,
		}
		if err := s.Payments().Create(ctx, p); err != nil {
			t.Fatalf("create payment: %v", err)
		}
	}

	got, err := s.Payments().History(ctx, ports.PaymentQuery{
		UserID: "user_1",
		From:   base.Add(12 * time.Hour),
		To:     base.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p_o3" || got[1].ID != "p_o2" {
		t.Fatalf("unexpected history: %+v", got)
	}

	none, err := s.Payments().History(ctx, ports.PaymentQuery{UserID: "someone_else"})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty history, got %v %v", none, err)
	}

	stale, err := s.Payments().ListStale(ctx, domain.PaymentProcessing, base.Add(36*time.Hour), 10)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if len(stale) != 2 || stale[0].ID != "p_o1" {
		t.Fatalf("unexpected stale payments: %+v", stale)
	}
}

func TestPaymentGuardedUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedOrder(t, s, "o1")

	now := time.Now().UTC()
	p := &domain.Payment{ID: "p1", OrderID: "o1", Amount: 23000, Method: domain.MethodCreditCard,
		Status: domain.PaymentPending, CreatedAt: now, UpdatedAt: now}
	if err := s.Payments().Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	_ = p.StartProcessing(now)
	if err := s.Payments().Update(ctx, p, domain.PaymentPending); err != nil {
		t.Fatalf("update: %v", err)
	}
	_ = p.Complete("txn_1", "**** **** **** 1234", now)
	if err := s.Payments().Update(ctx, p, domain.PaymentPending); !domain.IsKind(err, domain.KindInvalidStatusTransition) {
		t.Fatalf("expected guard failure, got %v", err)
	}
	if err := s.Payments().Update(ctx, p, domain.PaymentProcessing); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Payments().GetByOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.PaymentSuccess || got.TransactionID != "txn_1" || got.PaidAt == nil {
		t.Fatalf("unexpected payment: %+v", got)
	}
}

func TestCatalogAndSeed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	c := s.Catalog()

	if err := Seed(ctx, c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// seeding twice is harmless
	if err := Seed(ctx, c); err != nil {
		t.Fatalf("reseed: %v", err)
	}

	item, err := c.GetMenuItem(ctx, "menu_wings")
	if err != nil {
		t.Fatalf("menu item: %v", err)
	}
	if item.IsAvailable() {
		t.Fatal("wings are seeded sold out")
	}
	r, err := c.GetRestaurant(ctx, "rest_chicken")
	if err != nil || r.MinimumOrderAmount != 15000 {
		t.Fatalf("restaurant: %+v %v", r, err)
	}
	if _, err := c.GetUserProfile(ctx, "nobody"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	got := s.rebind("SELECT * FROM t WHERE a = ? AND b = ?")
	if got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if q := "a = ?"; lite.rebind(q) != q {
		t.Fatal("sqlite queries must be left untouched")
	}
}

package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/food-ordering/internal/app/apptest"
	"github.com/jcmexdev/food-ordering/internal/app/payment"
	"github.com/jcmexdev/food-ordering/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/infra/gateway/mockpg"
	"github.com/jcmexdev/food-ordering/internal/infra/httpx"
	"github.com/jcmexdev/food-ordering/internal/pkg/auth"
	"github.com/jcmexdev/food-ordering/internal/pkg/cache"
	"github.com/jcmexdev/food-ordering/internal/pkg/interceptors"
)

const secret = "test-secret"

type server struct {
	*apptest.Env
	handler  http.Handler
	verifier *auth.Verifier
}

func newServer(t *testing.T) *server {
	t.Helper()
	env := apptest.New(t)

	journal, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })

	payments := payment.NewService(env.Store, env.Catalog, mockpg.New(mockpg.Config{}), journal, env.Events,
		payment.Config{AllowRetry: true})
	verifier := auth.NewVerifier(secret)
	h := httpx.NewRouter(httpx.NewHandler(env.Carts, env.Orders, payments), httpx.RouterOptions{
		Verifier: verifier,
		Cache:    cache.NewMemoryCache("test"),
	})
	return &server{Env: env, handler: h, verifier: verifier}
}

type call struct {
	method string
	path   string
	user   string
	body   any
	header map[string]string
}

func (s *server) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&body).Encode(c.body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		token, err := s.verifier.Sign(c.user, time.Hour)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/healthz"})
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("x-request-id") == "" {
		t.Error("request id not echoed")
	}
}

func TestAuthentication(t *testing.T) {
	s := newServer(t)

	other, err := auth.NewVerifier("another-secret").Sign(apptest.Customer, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name   string
		header map[string]string
	}{
		{"no header", nil},
		{"not bearer", map[string]string{"Authorization": "Basic abc"}},
		{"garbage", map[string]string{"Authorization": "Bearer not-a-jwt"}},
		{"wrong key", map[string]string{"Authorization": "Bearer " + other}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, call{method: http.MethodGet, path: "/api/cart", header: tt.header})
			expectStatus(t, rec, http.StatusUnauthorized)
			if got := decode[httpx.ErrorResponse](t, rec); got.Error != string(domain.KindUnauthorized) {
				t.Errorf("error = %q", got.Error)
			}
		})
	}
}

func TestCartEndpoints(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, call{method: http.MethodPost, path: "/api/cart/items", user: apptest.Customer,
		body: httpx.AddCartItemRequest{MenuItemID: apptest.Fried, Quantity: 1}})
	expectStatus(t, rec, http.StatusOK)
	if c := decode[httpx.CartResponse](t, rec); !c.CanOrder || c.RestaurantID != apptest.Chicken {
		t.Errorf("cart = %+v", c)
	}

	rec = s.do(t, call{method: http.MethodPut, path: "/api/cart/items/" + apptest.Fried, user: apptest.Customer,
		body: httpx.UpdateCartItemRequest{Quantity: 3}})
	expectStatus(t, rec, http.StatusOK)
	c := decode[httpx.CartResponse](t, rec)
	if c.TotalAmount != 54000 || c.TotalQuantity != 3 {
		t.Errorf("cart = %+v", c)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/api/cart/count", user: apptest.Customer})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[httpx.CountResponse](t, rec); got.Count != 3 {
		t.Errorf("count = %d, want 3", got.Count)
	}

	rec = s.do(t, call{method: http.MethodPut, path: "/api/cart/items/" + apptest.Cola, user: apptest.Customer,
		body: httpx.UpdateCartItemRequest{Quantity: 2}})
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(t, call{method: http.MethodDelete, path: "/api/cart/items/" + apptest.Cola, user: apptest.Customer})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, call{method: http.MethodDelete, path: "/api/cart", user: apptest.Customer})
	expectStatus(t, rec, http.StatusNoContent)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/cart", user: apptest.Customer})
	expectStatus(t, rec, http.StatusOK)
	if c := decode[httpx.CartResponse](t, rec); len(c.Items) != 0 || c.CanOrder {
		t.Errorf("cleared cart = %+v", c)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name string
		call call
		want int
		kind domain.Kind
	}{
		{
			name: "unknown field",
			call: call{method: http.MethodPost, path: "/api/cart/items", user: apptest.Customer,
				body: map[string]any{"menu_item_id": apptest.Fried, "quantity": 1, "extra": true}},
			want: http.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "sold out",
			call: call{method: http.MethodPost, path: "/api/cart/items", user: apptest.Customer,
				body: httpx.AddCartItemRequest{MenuItemID: apptest.Wings, Quantity: 1}},
			want: http.StatusBadRequest, kind: domain.KindItemUnavailable,
		},
		{
			name: "unknown menu item",
			call: call{method: http.MethodPost, path: "/api/cart/items", user: apptest.Customer,
				body: httpx.AddCartItemRequest{MenuItemID: "menu_nope", Quantity: 1}},
			want: http.StatusNotFound, kind: domain.KindNotFound,
		},
		{
			name: "empty cart checkout",
			call: call{method: http.MethodPost, path: "/api/orders/from-cart", user: apptest.Customer},
			want: http.StatusBadRequest, kind: domain.KindEmptyCart,
		},
		{
			name: "unknown order status",
			call: call{method: http.MethodPatch, path: "/api/orders/whatever/status", user: apptest.ChickenOwner,
				body: httpx.UpdateOrderStatusRequest{Status: "TELEPORTED"}},
			want: http.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "unsupported method",
			call: call{method: http.MethodPost, path: "/api/payments", user: apptest.Customer,
				body: httpx.ChargeRequest{OrderID: "x", Method: "BITCOIN"}},
			want: http.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "bad history range",
			call: call{method: http.MethodGet, path: "/api/payments/history?from=yesterday", user: apptest.Customer},
			want: http.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "quantity over the line cap",
			call: call{method: http.MethodPost, path: "/api/cart/items", user: apptest.Customer,
				body: httpx.AddCartItemRequest{MenuItemID: apptest.Fried, Quantity: domain.MaxLineQuantity + 1}},
			want: http.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "page past the last",
			call: call{method: http.MethodGet, path: "/api/orders/my?page=100001", user: apptest.Customer},
			want: http.StatusBadRequest, kind: domain.KindInvalidInput,
		},
		{
			name: "missing payment",
			call: call{method: http.MethodGet, path: "/api/payments/pay_missing", user: apptest.Customer},
			want: http.StatusNotFound, kind: domain.KindNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.call)
			expectStatus(t, rec, tt.want)
			if got := decode[httpx.ErrorResponse](t, rec); got.Error != string(tt.kind) {
				t.Errorf("error = %q, want %q", got.Error, tt.kind)
			}
		})
	}
}

func TestOrderAndPaymentFlow(t *testing.T) {
	s := newServer(t)

	for _, item := range []string{apptest.Fried, apptest.Spicy} {
		rec := s.do(t, call{method: http.MethodPost, path: "/api/cart/items", user: apptest.Customer,
			body: httpx.AddCartItemRequest{MenuItemID: item, Quantity: 1}})
		expectStatus(t, rec, http.StatusOK)
	}

	rec := s.do(t, call{method: http.MethodPost, path: "/api/orders/from-cart", user: apptest.Customer,
		body: httpx.OrderFromCartRequest{Note: "no pickles"}})
	expectStatus(t, rec, http.StatusCreated)
	o := decode[httpx.OrderResponse](t, rec)
	if o.Status != string(domain.OrderPending) || o.TotalAmount != 37000 || o.PayableAmount != 40000 {
		t.Fatalf("order = %+v", o)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/api/orders/" + o.ID, user: apptest.OtherCustomer})
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/payments", user: apptest.Customer,
		body: httpx.ChargeRequest{OrderID: o.ID, Method: "credit_card", CardNumber: "4111111111111111", CardCVC: "123", CardExpiry: "12/30"}})
	expectStatus(t, rec, http.StatusCreated)
	p := decode[httpx.PaymentResponse](t, rec)
	if p.Status != string(domain.PaymentSuccess) || p.Amount != 40000 || strings.Contains(p.MaskedInstrument, "41111111") {
		t.Fatalf("payment = %+v", p)
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/api/payments", user: apptest.Customer,
		body: httpx.ChargeRequest{OrderID: o.ID, Method: "CASH"}})
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/payments/orders/" + o.ID, user: apptest.ChickenOwner})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, call{method: http.MethodGet, path: "/api/orders/my?page=0&size=5", user: apptest.Customer})
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]httpx.OrderResponse](t, rec); len(list) != 1 || list[0].Status != string(domain.OrderConfirmed) {
		t.Fatalf("my orders = %+v", list)
	}

	rec = s.do(t, call{method: http.MethodPatch, path: "/api/orders/" + o.ID + "/status", user: apptest.ChickenOwner,
		body: httpx.UpdateOrderStatusRequest{Status: "preparing"}})
	expectStatus(t, rec, http.StatusOK)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/orders/" + o.ID + "/cancel", user: apptest.Customer})
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(t, call{method: http.MethodPost, path: "/api/payments/" + p.ID + "/cancel", user: apptest.ChickenOwner,
		body: httpx.CancelRequest{Reason: "out of chicken"}})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[httpx.PaymentResponse](t, rec); got.Status != string(domain.PaymentCancelled) || got.CancelReason != "out of chicken" {
		t.Fatalf("cancelled payment = %+v", got)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/api/orders/" + o.ID, user: apptest.Customer})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[httpx.OrderResponse](t, rec); got.Status != string(domain.OrderCancelled) {
		t.Fatalf("order status = %s, want CANCELLED", got.Status)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/api/payments/history?from=2000-01-01", user: apptest.Customer})
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]httpx.PaymentResponse](t, rec); len(list) != 1 || list[0].ID != p.ID {
		t.Fatalf("history = %+v", list)
	}
}

func TestIdempotentReplay(t *testing.T) {
	s := newServer(t)
	o := s.PlaceOrder(t)

	charge := call{
		method: http.MethodPost,
		path:   "/api/payments",
		user:   apptest.Customer,
		body:   httpx.ChargeRequest{OrderID: o.ID, Method: "CASH"},
		header: map[string]string{"X-Idempotency-Key": "charge-1"},
	}

	first := s.do(t, charge)
	expectStatus(t, first, http.StatusCreated)
	if first.Header().Get("Idempotent-Replayed") != "" {
		t.Fatal("first response marked as replay")
	}

	second := s.do(t, charge)
	expectStatus(t, second, http.StatusCreated)
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("second response not replayed")
	}
	a := decode[httpx.PaymentResponse](t, first)
	b := decode[httpx.PaymentResponse](t, second)
	if a.ID != b.ID {
		t.Fatalf("replayed payment %s, want %s", b.ID, a.ID)
	}

	// the same key from another caller is a different request
	charge.user = apptest.OtherCustomer
	rec := s.do(t, charge)
	expectStatus(t, rec, http.StatusForbidden)

	// a new key reaches the service again
	charge.user = apptest.Customer
	charge.header = map[string]string{"X-Idempotency-Key": "charge-2"}
	rec = s.do(t, charge)
	expectStatus(t, rec, http.StatusConflict)
}

func TestIdempotentInFlight(t *testing.T) {
	c := cache.NewMemoryCache("test")
	ctx := context.Background()

	var reached bool
	h := httpx.Idempotent(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	key := c.GenerateKey("idempotency", ":/api/payments:k1")
	if _, err := c.SetNX(ctx, key, "in-flight", time.Minute); err != nil {
		t.Fatalf("setnx: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
	req = req.WithContext(interceptors.WithRequestMetadata(req.Context(), "", "k1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusConflict)
	if reached {
		t.Error("handler ran while the key was in flight")
	}
}

func TestIdempotentReleasesKey(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCalls int
	}{
		{
			name:      "handler panics",
			handler:   func(w http.ResponseWriter, r *http.Request) { panic("boom") },
			wantCalls: 2,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"INTERNAL"}`))
			},
			wantCalls: 2,
		},
		{
			name: "stored success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"id":"pay_1"}`))
			},
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			h := middleware.Recoverer(httpx.Idempotent(cache.NewMemoryCache("test"))(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls++
					tt.handler(w, r)
				})))

			for i := 0; i < 2; i++ {
				req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
				req = req.WithContext(interceptors.WithRequestMetadata(req.Context(), "", "k1"))
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code == http.StatusConflict {
					t.Fatalf("request %d: key still held after the first request finished", i)
				}
			}
			if calls != tt.wantCalls {
				t.Fatalf("handler ran %d times, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		want int
	}{
		{domain.KindBelowMinimum, http.StatusBadRequest},
		{domain.KindPaymentDeclined, http.StatusBadRequest},
		{domain.KindItemNotInCart, http.StatusNotFound},
		{domain.KindCancelWindowClosed, http.StatusConflict},
		{domain.KindOrderNotPayable, http.StatusConflict},
		{domain.KindCancelFailed, http.StatusBadGateway},
		{domain.KindInternal, http.StatusInternalServerError},
		{domain.Kind("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := httpx.StatusFor(tt.kind); got != tt.want {
			t.Errorf("StatusFor(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

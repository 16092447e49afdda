// Package httpx exposes the cart, order and payment engines over JSON/HTTP.
package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/food-ordering/internal/app/cart"
	"github.com/jcmexdev/food-ordering/internal/app/order"
	"github.com/jcmexdev/food-ordering/internal/app/payment"
	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

// Handler handles the cart, order and payment endpoints.
type Handler struct {
	carts    *cart.Service
	orders   *order.Service
	payments *payment.Service
}

// NewHandler initializes a Handler over the three engines.
func NewHandler(carts *cart.Service, orders *order.Service, payments *payment.Service) *Handler {
	return &Handler{carts: carts, orders: orders, payments: payments}
}

// --- cart ---

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	view, err := h.carts.AddItem(r.Context(), userID, req.MenuItemID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(view))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	view, err := h.carts.Snapshot(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(view))
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	view, err := h.carts.UpdateItemQuantity(r.Context(), userID, chi.URLParam(r, "menuId"), req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(view))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	view, err := h.carts.RemoveItem(r.Context(), userID, chi.URLParam(r, "menuId"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(view))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CartCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	n, err := h.carts.Count(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	removed, err := h.carts.ValidateItems(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	view, err := h.carts.Snapshot(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateCartResponse{Removed: removed, Cart: mapCart(view)})
}

// --- orders ---

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	lines := make([]order.LineInput, len(req.Items))
	for i, it := range req.Items {
		lines[i] = order.LineInput{MenuItemID: it.MenuItemID, Quantity: it.Quantity}
	}
	o, err := h.orders.Create(r.Context(), order.CreateInput{
		UserID:          userID,
		RestaurantID:    req.RestaurantID,
		Lines:           lines,
		DeliveryAddress: req.DeliveryAddress,
		PhoneNumber:     req.PhoneNumber,
		Note:            req.Note,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(o))
}

func (h *Handler) CreateOrderFromCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req OrderFromCartRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	o, err := h.orders.CreateFromCart(r.Context(), userID, req.Note)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(o))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(o))
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	orders, err := h.orders.ListMine(r.Context(), userID, page)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrders(orders))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	next, valid := domain.ParseOrderStatus(req.Status)
	if !valid {
		writeDomainError(w, r, domain.Errorf(domain.KindInvalidInput, "unknown order status %q", req.Status))
		return
	}
	o, err := h.orders.AdvanceStatus(r.Context(), chi.URLParam(r, "id"), userID, next)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(o))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), userID, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(o))
}

// --- payments ---

// Charge answers 201 once settled and 202 while the gateway outcome is
// still unknown.
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req ChargeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	method, valid := domain.ParsePaymentMethod(req.Method)
	if !valid {
		writeDomainError(w, r, domain.Errorf(domain.KindInvalidInput, "unsupported payment method %q", req.Method))
		return
	}

	p, err := h.payments.Charge(r.Context(), payment.ChargeInput{
		OrderID: req.OrderID,
		ActorID: userID,
		Method:  method,
		Details: domain.InstrumentDetails{
			CardNumber:    req.CardNumber,
			CardCVC:       req.CardCVC,
			CardExpiry:    req.CardExpiry,
			BankCode:      req.BankCode,
			AccountNumber: req.AccountNumber,
			EasyPayToken:  req.EasyPayToken,
		},
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	status := http.StatusCreated
	if p.Status == domain.PaymentProcessing {
		status = http.StatusAccepted
	}
	writeJSON(w, status, mapPayment(p))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	p, err := h.payments.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPayment(p))
}

func (h *Handler) GetPaymentByOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	p, err := h.payments.GetByOrder(r.Context(), chi.URLParam(r, "orderId"), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPayment(p))
}

func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	p, err := h.payments.Cancel(r.Context(), chi.URLParam(r, "id"), userID, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPayment(p))
}

func (h *Handler) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	paymentID := chi.URLParam(r, "id")
	// reconciliation itself is actor-free; the caller must still be allowed to see the payment
	if _, err := h.payments.Get(r.Context(), paymentID, userID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := h.payments.Reconcile(r.Context(), paymentID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPayment(p))
}

func (h *Handler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	payments, err := h.payments.History(r.Context(), userID, from, to, page)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapPayments(payments))
}

func parsePage(r *http.Request) (ports.Page, error) {
	var page ports.Page
	for name, dst := range map[string]*int{"page": &page.Number, "size": &page.Size} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return ports.Page{}, domain.Errorf(domain.KindInvalidInput, "%s must be a non-negative integer", name)
		}
		if name == "page" && n > ports.MaxPageNumber {
			return ports.Page{}, domain.Errorf(domain.KindInvalidInput, "page must not exceed %d", ports.MaxPageNumber)
		}
		*dst = n
	}
	return page.Normalize(), nil
}

// parseTimeParam accepts RFC 3339 or a bare date, read as midnight UTC.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, domain.Errorf(domain.KindInvalidInput, "%s must be RFC 3339 or YYYY-MM-DD", name)
}

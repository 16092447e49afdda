package httpx

import (
	"time"

	"github.com/jcmexdev/food-ordering/internal/app/cart"
	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

type AddCartItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type CartItemResponse struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	Subtotal   int64  `json:"subtotal"`
	Available  bool   `json:"available"`
}

type CartResponse struct {
	CartID             string             `json:"cart_id,omitempty"`
	RestaurantID       string             `json:"restaurant_id,omitempty"`
	RestaurantName     string             `json:"restaurant_name,omitempty"`
	Items              []CartItemResponse `json:"items"`
	TotalAmount        int64              `json:"total_amount"`
	TotalQuantity      int                `json:"total_quantity"`
	MinimumOrderAmount int64              `json:"minimum_order_amount"`
	DeliveryFee        int64              `json:"delivery_fee"`
	CanOrder           bool               `json:"can_order"`
	Reason             string             `json:"reason,omitempty"`
}

type ValidateCartResponse struct {
	Removed int          `json:"removed"`
	Cart    CartResponse `json:"cart"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type CreateOrderRequest struct {
	RestaurantID    string                   `json:"restaurant_id"`
	Items           []CreateOrderItemRequest `json:"items"`
	DeliveryAddress string                   `json:"delivery_address"`
	PhoneNumber     string                   `json:"phone_number"`
	Note            string                   `json:"note"`
}

type CreateOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type OrderFromCartRequest struct {
	Note string `json:"note"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type OrderItemResponse struct {
	MenuItemID string `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Subtotal   int64  `json:"subtotal"`
}

type OrderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	RestaurantID    string              `json:"restaurant_id"`
	Status          string              `json:"status"`
	Items           []OrderItemResponse `json:"items"`
	TotalAmount     int64               `json:"total_amount"`
	DeliveryFee     int64               `json:"delivery_fee"`
	PayableAmount   int64               `json:"payable_amount"`
	DeliveryAddress string              `json:"delivery_address"`
	PhoneNumber     string              `json:"phone_number"`
	Note            string              `json:"note,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	OrderedAt       string              `json:"ordered_at"`
	CompletedAt     string              `json:"completed_at,omitempty"`
}

type ChargeRequest struct {
	OrderID       string `json:"order_id"`
	Method        string `json:"method"`
	CardNumber    string `json:"card_number,omitempty"`
	CardCVC       string `json:"card_cvc,omitempty"`
	CardExpiry    string `json:"card_expiry,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	EasyPayToken  string `json:"easy_pay_token,omitempty"`
}

type PaymentResponse struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Method           string `json:"method"`
	Status           string `json:"status"`
	Attempts         int    `json:"attempts"`
	TransactionID    string `json:"transaction_id,omitempty"`
	MaskedInstrument string `json:"masked_instrument,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	CancelReason     string `json:"cancel_reason,omitempty"`
	PaidAt           string `json:"paid_at,omitempty"`
	CancelledAt      string `json:"cancelled_at,omitempty"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapCart(v *cart.View) CartResponse {
	items := make([]CartItemResponse, len(v.Items))
	for i, it := range v.Items {
		items[i] = CartItemResponse{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			Subtotal:   it.Subtotal,
			Available:  it.Available,
		}
	}
	return CartResponse{
		CartID:             v.CartID,
		RestaurantID:       v.RestaurantID,
		RestaurantName:     v.RestaurantName,
		Items:              items,
		TotalAmount:        v.TotalAmount,
		TotalQuantity:      v.TotalQuantity,
		MinimumOrderAmount: v.MinimumOrderAmount,
		DeliveryFee:        v.DeliveryFee,
		CanOrder:           v.CanOrder,
		Reason:             v.Reason,
	}
}

func mapOrder(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = OrderItemResponse{
			MenuItemID: l.MenuItemID,
			Name:       l.MenuItemName,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPriceAtOrderTime,
			Subtotal:   l.Subtotal(),
		}
	}
	return OrderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		RestaurantID:    o.RestaurantID,
		Status:          string(o.Status),
		Items:           items,
		TotalAmount:     o.TotalAmount,
		DeliveryFee:     o.DeliveryFee,
		PayableAmount:   o.PayableAmount(),
		DeliveryAddress: o.DeliveryAddress,
		PhoneNumber:     o.PhoneNumber,
		Note:            o.Note,
		CancelReason:    o.CancelReason,
		OrderedAt:       formatTime(o.OrderedAt),
		CompletedAt:     formatOptionalTime(o.CompletedAt),
	}
}

func mapOrders(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrder(o)
	}
	return out
}

func mapPayment(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Amount:           p.Amount,
		Method:           string(p.Method),
		Status:           string(p.Status),
		Attempts:         p.Attempts,
		TransactionID:    p.TransactionID,
		MaskedInstrument: p.MaskedInstrument,
		FailureReason:    p.FailureReason,
		CancelReason:     p.CancelReason,
		PaidAt:           formatOptionalTime(p.PaidAt),
		CancelledAt:      formatOptionalTime(p.CancelledAt),
		CreatedAt:        formatTime(p.CreatedAt),
		UpdatedAt:        formatTime(p.UpdatedAt),
	}
}

func mapPayments(payments []*domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = mapPayment(p)
	}
	return out
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

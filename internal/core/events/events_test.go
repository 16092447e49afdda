package events

import (
	"testing"
	"time"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

func TestOrderStatusChanged(t *testing.T) {
	if got := OrderStatusChanged(domain.OrderDelivered); got != "order.status.delivered" {
		t.Fatalf("got %q", got)
	}
}

func TestForPaymentReason(t *testing.T) {
	now := time.Now()
	failed := &domain.Payment{ID: "p1", Status: domain.PaymentFailed, FailureReason: "card limit exceeded"}
	cancelled := &domain.Payment{ID: "p2", Status: domain.PaymentCancelled, FailureReason: "old", CancelReason: "customer request"}

	if r := ForPayment(PaymentFailed, failed, now).Payload.(PaymentPayload).Reason; r != "card limit exceeded" {
		t.Fatalf("failed reason = %q", r)
	}
	if r := ForPayment(PaymentCancelled, cancelled, now).Payload.(PaymentPayload).Reason; r != "customer request" {
		t.Fatalf("cancel reason = %q", r)
	}
}

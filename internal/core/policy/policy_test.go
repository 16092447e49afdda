package policy

import (
	"testing"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

func TestOrderPolicies(t *testing.T) {
	order := &domain.Order{ID: "o1", UserID: "customer", RestaurantID: "r1"}
	restaurant := &domain.Restaurant{ID: "r1", OwnerID: "owner"}

	tests := []struct {
		name  string
		check func(actor string) Decision
		allow map[string]bool
	}{
		{
			name:  "view",
			check: func(a string) Decision { return CanViewOrder(a, order, restaurant) },
			allow: map[string]bool{"customer": true, "owner": true},
		},
		{
			name:  "advance",
			check: func(a string) Decision { return CanAdvanceOrderStatus(a, restaurant) },
			allow: map[string]bool{"owner": true},
		},
		{
			name:  "cancel order",
			check: func(a string) Decision { return CanCancelOrder(a, order) },
			allow: map[string]bool{"customer": true},
		},
		{
			name:  "pay",
			check: func(a string) Decision { return CanPayOrder(a, order) },
			allow: map[string]bool{"customer": true},
		},
		{
			name:  "cancel payment",
			check: func(a string) Decision { return CanCancelPayment(a, order, restaurant) },
			allow: map[string]bool{"customer": true, "owner": true},
		},
	}

	for _, tt := range tests {
		for _, actor := range []string{"customer", "owner", "stranger", ""} {
			t.Run(tt.name+"/"+actor, func(t *testing.T) {
				d := tt.check(actor)
				if d.Allowed != tt.allow[actor] {
					t.Fatalf("Allowed = %v, want %v", d.Allowed, tt.allow[actor])
				}
				if !d.Allowed {
					if d.Reason == "" {
						t.Fatal("denied decision must carry a reason")
					}
					if !domain.IsKind(d.Err(), domain.KindForbidden) {
						t.Fatalf("expected FORBIDDEN, got %v", d.Err())
					}
				}
			})
		}
	}
}

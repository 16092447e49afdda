package domain

// Availability of a menu item as reported by the catalog.
type Availability string

const (
	Available   Availability = "AVAILABLE"
	SoldOut     Availability = "SOLD_OUT"
	Unavailable Availability = "UNAVAILABLE"
)

// MenuItem is the catalog view the core needs: price and availability.
type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	Price        int64
	Availability Availability
}

func (m MenuItem) IsAvailable() bool {
	return m.Availability == Available
}

// Restaurant is the catalog view of a restaurant.
type Restaurant struct {
	ID                 string
	Name               string
	OwnerID            string
	MinimumOrderAmount int64
	DeliveryFee        int64
}

func (r Restaurant) IsOwnedBy(userID string) bool {
	return userID != "" && r.OwnerID == userID
}

// UserProfile holds the delivery details copied into an order draft.
type UserProfile struct {
	ID          string
	Address     string
	PhoneNumber string
}

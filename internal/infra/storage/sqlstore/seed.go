package sqlstore

import (
	"context"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
)

// Seed loads a small demo catalog for local development.
func Seed(ctx context.Context, c *Catalog) error {
	restaurants := []domain.Restaurant{
		{ID: "rest_chicken", Name: "Crispy Chicken", OwnerID: "owner_1", MinimumOrderAmount: 15000, DeliveryFee: 3000},
		{ID: "rest_pizza", Name: "Pizza House", OwnerID: "owner_2", MinimumOrderAmount: 20000, DeliveryFee: 2000},
	}
	items := []domain.MenuItem{
		{ID: "menu_fried", RestaurantID: "rest_chicken", Name: "Fried Chicken", Price: 18000, Availability: domain.Available},
		{ID: "menu_spicy", RestaurantID: "rest_chicken", Name: "Spicy Chicken", Price: 19000, Availability: domain.Available},
		{ID: "menu_cola", RestaurantID: "rest_chicken", Name: "Cola", Price: 2000, Availability: domain.Available},
		{ID: "menu_wings", RestaurantID: "rest_chicken", Name: "Wings", Price: 12000, Availability: domain.SoldOut},
		{ID: "menu_pepperoni", RestaurantID: "rest_pizza", Name: "Pepperoni Pizza", Price: 22000, Availability: domain.Available},
		{ID: "menu_cheese", RestaurantID: "rest_pizza", Name: "Cheese Pizza", Price: 20000, Availability: domain.Available},
	}
	users := []domain.UserProfile{
		{ID: "user_1", Address: "123 Teheran-ro, Gangnam-gu, Seoul", PhoneNumber: "010-1234-5678"},
		{ID: "user_2", Address: "45 Sejong-daero, Jung-gu, Seoul", PhoneNumber: "010-9876-5432"},
	}

	for _, r := range restaurants {
		if err := c.SaveRestaurant(ctx, r); err != nil {
			return err
		}
	}
	for _, m := range items {
		if err := c.SaveMenuItem(ctx, m); err != nil {
			return err
		}
	}
	for _, u := range users {
		if err := c.SaveUserProfile(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

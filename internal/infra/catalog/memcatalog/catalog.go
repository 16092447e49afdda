// Package memcatalog is an in-memory Catalog and UserDirectory.
package memcatalog

import (
	"context"
	"sync"

	"github.com/jcmexdev/food-ordering/internal/core/domain"
	"github.com/jcmexdev/food-ordering/internal/core/ports"
)

type Catalog struct {
	mu          sync.RWMutex
	restaurants map[string]domain.Restaurant
	items       map[string]domain.MenuItem
	users       map[string]domain.UserProfile
}

var (
	_ ports.Catalog       = (*Catalog)(nil)
	_ ports.UserDirectory = (*Catalog)(nil)
)

func New() *Catalog {
	return &Catalog{
		restaurants: make(map[string]domain.Restaurant),
		items:       make(map[string]domain.MenuItem),
		users:       make(map[string]domain.UserProfile),
	}
}

func (c *Catalog) PutRestaurant(r domain.Restaurant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restaurants[r.ID] = r
}

func (c *Catalog) PutMenuItem(m domain.MenuItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[m.ID] = m
}

func (c *Catalog) PutUser(u domain.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
}

// SetPrice changes a menu price in place, as the restaurant owner would.
func (c *Catalog) SetPrice(menuItemID string, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.items[menuItemID]; ok {
		m.Price = price
		c.items[menuItemID] = m
	}
}

func (c *Catalog) SetAvailability(menuItemID string, a domain.Availability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.items[menuItemID]; ok {
		m.Availability = a
		c.items[menuItemID] = m
	}
}

func (c *Catalog) GetMenuItem(_ context.Context, menuItemID string) (*domain.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.items[menuItemID]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "menu item %s not found", menuItemID)
	}
	return &m, nil
}

func (c *Catalog) GetRestaurant(_ context.Context, restaurantID string) (*domain.Restaurant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.restaurants[restaurantID]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "restaurant %s not found", restaurantID)
	}
	return &r, nil
}

func (c *Catalog) GetUserProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[userID]
	if !ok {
		return nil, domain.Errorf(domain.KindNotFound, "user %s not found", userID)
	}
	return &u, nil
}

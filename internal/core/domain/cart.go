package domain

import "time"

// MaxLineQuantity is the largest quantity a cart or order line may hold.
const MaxLineQuantity = 999

// Cart is a user's single-restaurant shopping cart.
// Lines are only mutated through the methods below; the repository persists
// them as child rows of the cart.
type Cart struct {
	ID           string
	UserID       string
	RestaurantID string
	Lines        []CartLine
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CartLine is one (menu item, quantity) pair. Prices are looked up live.
type CartLine struct {
	MenuItemID string
	Quantity   int
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Add puts qty of item into the cart. Items from another restaurant replace
// the whole cart first; an existing line for the same item accumulates.
func (c *Cart) Add(item MenuItem, qty int) {
	if c.RestaurantID != "" && c.RestaurantID != item.RestaurantID {
		c.Clear()
	}
	c.RestaurantID = item.RestaurantID

	if i := c.indexOf(item.ID); i >= 0 {
		c.Lines[i].Quantity += qty
		return
	}
	c.Lines = append(c.Lines, CartLine{MenuItemID: item.ID, Quantity: qty})
}

// QuantityOf reports the quantity of menuItemID, zero when absent.
func (c *Cart) QuantityOf(menuItemID string) int {
	if i := c.indexOf(menuItemID); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

// SetQuantity replaces the quantity of an existing line; zero removes it.
// It reports false when the item is not in the cart.
func (c *Cart) SetQuantity(menuItemID string, qty int) bool {
	i := c.indexOf(menuItemID)
	if i < 0 {
		return false
	}
	if qty <= 0 {
		c.Remove(menuItemID)
		return true
	}
	c.Lines[i].Quantity = qty
	return true
}

// Remove drops the line for menuItemID if present.
func (c *Cart) Remove(menuItemID string) {
	i := c.indexOf(menuItemID)
	if i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
	if len(c.Lines) == 0 {
		c.RestaurantID = ""
	}
}

func (c *Cart) Clear() {
	c.Lines = nil
	c.RestaurantID = ""
}

func (c *Cart) Has(menuItemID string) bool {
	return c.indexOf(menuItemID) >= 0
}

func (c *Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

func (c *Cart) indexOf(menuItemID string) int {
	for i, l := range c.Lines {
		if l.MenuItemID == menuItemID {
			return i
		}
	}
	return -1
}

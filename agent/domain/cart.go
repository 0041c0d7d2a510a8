package domain

import (
	"fmt"
	"time"

	moneyx "github.com/tanpawarit/chative-retail/pkg/money"
)

type CartItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Size     *string `json:"size,omitempty"`
	Color    *string `json:"color,omitempty"`
	Image    string  `json:"image,omitempty"`
}

func (i CartItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// sameVariant compares the (sku, size, color) identity key exactly.
func (i CartItem) sameVariant(sku string, size, color *string) bool {
	return i.SKU == sku && equalOptional(i.Size, size) && equalOptional(i.Color, color)
}

// matches treats a nil size or color as a wildcard.
func (i CartItem) matches(sku string, size, color *string) bool {
	if i.SKU != sku {
		return false
	}
	if size != nil && !equalOptional(i.Size, size) {
		return false
	}
	if color != nil && !equalOptional(i.Color, color) {
		return false
	}
	return true
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Cart is the shopping cart carried in a session. Lines keep insertion order.
type Cart struct {
	CustomerID string     `json:"customer_id"`
	Items      []CartItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func NewCart(customerID string, now time.Time) *Cart {
	now = now.UTC()
	return &Cart{
		CustomerID: customerID,
		Items:      []CartItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Add merges item into an existing line with the same identity key, or appends it.
func (c *Cart) Add(item CartItem, now time.Time) error {
	if item.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be >= 1", ErrInvalidQuantity)
	}
	for idx := range c.Items {
		if c.Items[idx].sameVariant(item.SKU, item.Size, item.Color) {
			c.Items[idx].Quantity += item.Quantity
			c.touch(now)
			return nil
		}
	}
	c.Items = append(c.Items, item)
	c.touch(now)
	return nil
}

// Remove drops every line matching sku and returns how many lines were removed.
func (c *Cart) Remove(sku string, size, color *string, now time.Time) int {
	kept := c.Items[:0]
	removed := 0
	for _, item := range c.Items {
		if item.matches(sku, size, color) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	if removed > 0 {
		c.touch(now)
	}
	return removed
}

// UpdateQuantity sets the quantity of every matching line. A quantity <= 0
// removes the matching lines. It reports whether any line matched.
func (c *Cart) UpdateQuantity(sku string, quantity int, size, color *string, now time.Time) bool {
	if quantity <= 0 {
		return c.Remove(sku, size, color, now) > 0
	}
	found := false
	for idx := range c.Items {
		if c.Items[idx].matches(sku, size, color) {
			c.Items[idx].Quantity = quantity
			found = true
		}
	}
	if found {
		c.touch(now)
	}
	return found
}

// Line returns the line with exactly this identity key.
func (c *Cart) Line(sku string, size, color *string) (CartItem, bool) {
	for _, item := range c.Items {
		if item.sameVariant(sku, size, color) {
			return item, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) Subtotal() float64 {
	total := 0.0
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Categories returns the distinct categories of the lines in first-seen order.
// SKUs the lookup does not know are skipped.
func (c *Cart) Categories(categoryOf func(sku string) (string, bool)) []string {
	if c == nil || categoryOf == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, item := range c.Items {
		cat, ok := categoryOf(item.SKU)
		if !ok || cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	return out
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) Clear(now time.Time) {
	c.Items = []CartItem{}
	c.touch(now)
}

// Summary renders "N items, Total: ₹X".
func (c *Cart) Summary(symbol string) string {
	if c.IsEmpty() {
		return "Cart is empty"
	}
	return fmt.Sprintf("%d items, Total: %s", c.ItemCount(), moneyx.Format(symbol, c.Subtotal()))
}

// Clone returns a deep copy; orders keep one so later cart edits do not leak into them.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = CloneItems(c.Items)
	return &out
}

func CloneItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	for idx, item := range items {
		out[idx] = item
		if item.Size != nil {
			size := *item.Size
			out[idx].Size = &size
		}
		if item.Color != nil {
			color := *item.Color
			out[idx].Color = &color
		}
	}
	return out
}

func (c *Cart) touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

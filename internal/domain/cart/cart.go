// Package cart implements the session-held shopping cart.
//
// A Cart is a plain value owned by a single session. It has no locking and
// no persistence; callers mutate it from one goroutine and discard it once
// the order is submitted.
package cart

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/bakery-storefront/internal/domain/pricing"
)

var (
	// ErrInvalidQuantity is returned when an item is added with quantity below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrInvalidPrice is returned when an item carries a negative unit price.
	ErrInvalidPrice = errors.New("unit price must not be negative")
	// ErrQuantityTooLarge is returned when a line would exceed
	// pricing.MaxLineQuantity units.
	ErrQuantityTooLarge = errors.Errorf("quantity must be at most %d", pricing.MaxLineQuantity)
	// ErrPriceTooLarge is returned when a unit price exceeds
	// pricing.MaxUnitPriceCents.
	ErrPriceTooLarge = errors.Errorf("unit price must be at most %d cents", pricing.MaxUnitPriceCents)
)

// BelowMinimumError is returned by Checkout when the cart holds fewer units
// than pricing.MinimumOrderQuantity.
type BelowMinimumError struct {
	Quantity int
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum order is %d macarons, cart has %d", pricing.MinimumOrderQuantity, e.Quantity)
}

// Key identifies a cart entry: the product plus its exact variant selections.
type Key string

// KeyOf builds the identity key for a product and its variant selections.
// Selections are sorted by aspect so map iteration order never matters.
func KeyOf(productID string, variants map[string]string) Key {
	if len(variants) == 0 {
		return Key(productID)
	}
	var b strings.Builder
	b.WriteString(productID)
	for _, aspect := range slices.Sorted(maps.Keys(variants)) {
		b.WriteByte('|')
		b.WriteString(aspect)
		b.WriteByte('=')
		b.WriteString(variants[aspect])
	}
	return Key(b.String())
}

// Item is a single cart entry. UnitPriceCents is captured when the item is
// added and is never re-read from the catalog.
type Item struct {
	ProductID      string
	DisplayName    string
	UnitPriceCents int64
	Quantity       int
	Variants       map[string]string
}

// Key returns the identity key of the item.
func (i Item) Key() Key {
	return KeyOf(i.ProductID, i.Variants)
}

// PricingLine implements pricing.Pricer.
func (i Item) PricingLine() pricing.Line {
	return pricing.Line{UnitPriceCents: i.UnitPriceCents, Quantity: i.Quantity}
}

// LineTotalCents returns the undiscounted price of the entry.
func (i Item) LineTotalCents() int64 {
	return pricing.LineTotal(i.UnitPriceCents, i.Quantity)
}

func (i Item) clone() Item {
	i.Variants = maps.Clone(i.Variants)
	return i
}

// Cart is an ordered collection of items with unique keys.
type Cart struct {
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add merges item into the cart. An entry with the same key has its quantity
// increased; otherwise the item is appended.
func (c *Cart) Add(item Item) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if item.Quantity > pricing.MaxLineQuantity {
		return ErrQuantityTooLarge
	}
	if item.UnitPriceCents < 0 {
		return ErrInvalidPrice
	}
	if item.UnitPriceCents > pricing.MaxUnitPriceCents {
		return ErrPriceTooLarge
	}

	if i := c.indexOf(item.Key()); i >= 0 {
		if c.items[i].Quantity+item.Quantity > pricing.MaxLineQuantity {
			return ErrQuantityTooLarge
		}
		c.items[i].Quantity += item.Quantity
		return nil
	}
	c.items = append(c.items, item.clone())
	return nil
}

// UpdateQuantity sets the quantity of the entry with the given key. A
// quantity of zero or less removes the entry, larger values are capped at
// pricing.MaxLineQuantity. Unknown keys are ignored.
func (c *Cart) UpdateQuantity(key Key, quantity int) {
	if quantity <= 0 {
		c.Remove(key)
		return
	}
	quantity = min(quantity, pricing.MaxLineQuantity)
	if i := c.indexOf(key); i >= 0 {
		c.items[i].Quantity = quantity
	}
}

// Remove deletes the entry with the given key, if present.
func (c *Cart) Remove(key Key) {
	if i := c.indexOf(key); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Len returns the number of distinct entries.
func (c *Cart) Len() int {
	return len(c.items)
}

// Contains reports whether an entry with the given key exists.
func (c *Cart) Contains(key Key) bool {
	return c.indexOf(key) >= 0
}

// Items returns a copy of the entries in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	for i, item := range c.items {
		out[i] = item.clone()
	}
	return out
}

// Totals prices the current entries.
func (c *Cart) Totals() pricing.Totals {
	return pricing.Aggregate(pricing.Lines(c.items))
}

// Checkout returns a snapshot of the entries if the cart meets the minimum
// order quantity. The cart itself is left untouched; clear it once the order
// has been accepted.
func (c *Cart) Checkout() ([]Item, error) {
	if t := c.Totals(); !pricing.MeetsMinimum(t.TotalQuantity) {
		return nil, &BelowMinimumError{Quantity: t.TotalQuantity}
	}
	return c.Items(), nil
}

func (c *Cart) indexOf(key Key) int {
	return slices.IndexFunc(c.items, func(item Item) bool {
		return item.Key() == key
	})
}

package order

import (
	"context"
	"maps"
	"time"

	"github.com/xenking/bakery-storefront/internal/domain/pricing"
)

// Mode is the fulfillment mode of an order.
type Mode string

// Fulfillment modes.
const (
	ModePickup   Mode = "pickup"
	ModeDelivery Mode = "delivery"
)

// Customer holds the contact details captured at checkout.
type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// FullName returns "First Last".
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Fulfillment describes how the order reaches the customer. Pickup date and
// time are free-form strings as entered; delivery orders may leave them empty.
type Fulfillment struct {
	Mode               Mode   `json:"deliveryOption"`
	PickupDate         string `json:"pickupDate,omitempty"`
	PickupTime         string `json:"pickupTime,omitempty"`
	DeliveryAddress    string `json:"deliveryAddress,omitempty"`
	DeliveryCity       string `json:"deliveryCity,omitempty"`
	DeliveryPostalCode string `json:"deliveryPostalCode,omitempty"`
}

// Item is an immutable line of an order snapshot.
type Item struct {
	ProductID      string            `json:"productId"`
	Name           string            `json:"name"`
	UnitPriceCents int64             `json:"price"`
	Quantity       int               `json:"quantity"`
	Variants       map[string]string `json:"variantSelections,omitempty"`
}

// PricingLine implements pricing.Pricer.
func (i Item) PricingLine() pricing.Line {
	return pricing.Line{UnitPriceCents: i.UnitPriceCents, Quantity: i.Quantity}
}

// LineTotalCents returns the undiscounted price of the line.
func (i Item) LineTotalCents() int64 {
	return pricing.LineTotal(i.UnitPriceCents, i.Quantity)
}

// Order represents a persisted customer order. Orders are never mutated after
// creation.
type Order struct {
	Number              string      `json:"orderNumber"`
	Customer            Customer    `json:"customer"`
	Fulfillment         Fulfillment `json:"fulfillment"`
	Items               []Item      `json:"items"`
	TotalCents          int64       `json:"totalCents"`
	SpecialInstructions string      `json:"specialInstructions,omitempty"`
	CreatedAt           time.Time   `json:"createdAt"`
}

// Totals re-derives the pricing breakdown of the stored snapshot.
func (o *Order) Totals() pricing.Totals {
	return pricing.Aggregate(pricing.Lines(o.Items))
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = CloneItems(o.Items)
	return &c
}

// Store persists orders. Insert must be atomic with respect to the order
// number: when the number is already present it returns ErrNumberTaken and
// leaves the existing order untouched.
type Store interface {
	Insert(ctx context.Context, o *Order) error
	GetByNumber(ctx context.Context, number string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
}

// CloneItems deep-copies a snapshot, including variant selections.
func CloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, item := range items {
		item.Variants = maps.Clone(item.Variants)
		out[i] = item
	}
	return out
}

// Package confirmation builds and sends order confirmation emails.
package confirmation

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/bakery-storefront/internal/domain/order"
)

const brand = "Simply Macarons"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Message is a rendered email ready for a Mailer.
type Message struct {
	To      string
	From    string
	ReplyTo string
	Subject string
	HTML    string
}

// Line is one row of the itemized table.
type Line struct {
	Name       string
	Annotation string
	Quantity   int
	UnitPrice  string
	LineTotal  string
}

// Summary is the data contract shared by the customer and business
// artifacts. All amounts are pre-formatted.
type Summary struct {
	OrderNumber         string
	CreatedDate         string
	Customer            order.Customer
	Lines               []Line
	Subtotal            string
	DiscountApplied     bool
	Discount            string
	Total               string
	Delivery            bool
	PickupWhen          string
	DeliveryAddress     string
	SpecialInstructions string
}

// Summarize derives the artifact data for o. The grand total is the stored
// order total, not a recomputation.
func Summarize(o *order.Order) Summary {
	totals := o.Totals()
	s := Summary{
		OrderNumber:         o.Number,
		CreatedDate:         FormatDate(o.CreatedAt),
		Customer:            o.Customer,
		Subtotal:            FormatCents(totals.SubtotalCents),
		DiscountApplied:     totals.DiscountApplied,
		Discount:            FormatCents(totals.SubtotalCents - o.TotalCents),
		Total:               FormatCents(o.TotalCents),
		Delivery:            o.Fulfillment.Mode == order.ModeDelivery,
		SpecialInstructions: strings.TrimSpace(o.SpecialInstructions),
	}

	s.Lines = make([]Line, len(o.Items))
	for i, item := range o.Items {
		s.Lines[i] = Line{
			Name:       item.Name,
			Annotation: FormatVariants(item.Variants),
			Quantity:   item.Quantity,
			UnitPrice:  FormatCents(item.UnitPriceCents),
			LineTotal:  FormatCents(item.LineTotalCents()),
		}
	}

	f := o.Fulfillment
	if s.Delivery {
		s.DeliveryAddress = FormatAddress(f.DeliveryAddress, f.DeliveryCity, f.DeliveryPostalCode)
	} else {
		s.PickupWhen = FormatPickup(f.PickupDate, f.PickupTime)
	}
	return s
}

// Composer renders the two confirmation artifacts of an order.
type Composer struct {
	From          string
	BusinessEmail string
}

// Customer renders the email sent to the person who placed the order.
func (c Composer) Customer(o *order.Order) (Message, error) {
	html, err := render("customer.html", Summarize(o))
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      o.Customer.Email,
		From:    c.From,
		ReplyTo: c.BusinessEmail,
		Subject: "Your " + brand + " Order #" + o.Number,
		HTML:    html,
	}, nil
}

// Business renders the notification sent to the bakery. Replies go to the
// customer.
func (c Composer) Business(o *order.Order) (Message, error) {
	html, err := render("business.html", Summarize(o))
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      c.BusinessEmail,
		From:    c.From,
		ReplyTo: o.Customer.Email,
		Subject: "New Order #" + o.Number + " - " + brand,
		HTML:    html,
	}, nil
}

func render(name string, s Summary) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, s); err != nil {
		return "", errors.Wrapf(err, "render %s", name)
	}
	return buf.String(), nil
}

package order

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/bakery-storefront/internal/domain/pricing"
)

// Submission is a candidate order as received from a client. Any total the
// client computed is deliberately absent.
type Submission struct {
	FirstName           string
	LastName            string
	Email               string
	Phone               string
	PickupDate          string
	PickupTime          string
	DeliveryOption      string
	DeliveryAddress     string
	DeliveryCity        string
	DeliveryPostalCode  string
	SpecialInstructions string
	Items               []Item
}

// Command is a validated, normalised order ready to be persisted.
type Command struct {
	Customer            Customer
	Fulfillment         Fulfillment
	Items               []Item
	SpecialInstructions string
}

// Totals prices the command's item snapshot.
func (c Command) Totals() pricing.Totals {
	return pricing.Aggregate(pricing.Lines(c.Items))
}

// contactFields mirrors the first validation step. Field names in errors come
// from the json tags so they match the request payload.
type contactFields struct {
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"required"`
	DeliveryOption string `json:"deliveryOption" validate:"oneof=pickup delivery"`
	PickupDate     string `json:"pickupDate" validate:"required_if=DeliveryOption pickup"`
	PickupTime     string `json:"pickupTime" validate:"required_if=DeliveryOption pickup"`
}

var flavorWord = regexp.MustCompile(`(?i)flavor`)

// Validator checks submissions in a fixed order; the first failing step
// determines the returned error.
type Validator struct {
	v *validator.Validate
}

// NewValidator constructs a Validator.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate normalises s and runs, in order: required contact and pickup
// fields, item sanity, the minimum order quantity, and delivery address
// fields. It returns *ValidationError or *MinimumOrderError on rejection.
func (v *Validator) Validate(s Submission) (Command, error) {
	s = normalize(s)

	if err := v.checkContact(s); err != nil {
		return Command{}, err
	}
	if err := checkItems(s.Items); err != nil {
		return Command{}, err
	}

	cmd := Command{
		Customer: Customer{
			FirstName: s.FirstName,
			LastName:  s.LastName,
			Email:     s.Email,
			Phone:     s.Phone,
		},
		Fulfillment: Fulfillment{
			Mode:       Mode(s.DeliveryOption),
			PickupDate: s.PickupDate,
			PickupTime: s.PickupTime,
		},
		Items:               s.Items,
		SpecialInstructions: s.SpecialInstructions,
	}

	if q := cmd.Totals().TotalQuantity; !pricing.MeetsMinimum(q) {
		return Command{}, &MinimumOrderError{Minimum: pricing.MinimumOrderQuantity, Quantity: q}
	}

	if cmd.Fulfillment.Mode == ModeDelivery {
		var fields []FieldError
		for _, f := range []struct{ name, value string }{
			{"deliveryAddress", s.DeliveryAddress},
			{"deliveryCity", s.DeliveryCity},
			{"deliveryPostalCode", s.DeliveryPostalCode},
		} {
			if f.value == "" {
				fields = append(fields, FieldError{Field: f.name, Reason: "is required for delivery orders"})
			}
		}
		if len(fields) > 0 {
			return Command{}, &ValidationError{Fields: fields}
		}
		cmd.Fulfillment.DeliveryAddress = s.DeliveryAddress
		cmd.Fulfillment.DeliveryCity = s.DeliveryCity
		cmd.Fulfillment.DeliveryPostalCode = s.DeliveryPostalCode
	}

	return cmd, nil
}

func (v *Validator) checkContact(s Submission) error {
	err := v.v.Struct(contactFields{
		FirstName:      s.FirstName,
		LastName:       s.LastName,
		Email:          s.Email,
		Phone:          s.Phone,
		DeliveryOption: s.DeliveryOption,
		PickupDate:     s.PickupDate,
		PickupTime:     s.PickupTime,
	})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate contact fields")
	}
	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{Field: fe.Field(), Reason: reasonFor(fe)}
	}
	return &ValidationError{Fields: fields}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "required_if":
		return "is required for pickup orders"
	default:
		return "is invalid"
	}
}

func checkItems(items []Item) error {
	if len(items) == 0 {
		return &ValidationError{Fields: []FieldError{{Field: "items", Reason: "must contain at least one item"}}}
	}

	var fields []FieldError
	for i, item := range items {
		switch {
		case item.Quantity < 1:
			fields = append(fields, FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be at least 1"})
		case item.Quantity > pricing.MaxLineQuantity:
			fields = append(fields, FieldError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: fmt.Sprintf("must be at most %d", pricing.MaxLineQuantity),
			})
		}
		switch {
		case item.UnitPriceCents < 0:
			fields = append(fields, FieldError{Field: fmt.Sprintf("items[%d].price", i), Reason: "must not be negative"})
		case item.UnitPriceCents > pricing.MaxUnitPriceCents:
			fields = append(fields, FieldError{
				Field:  fmt.Sprintf("items[%d].price", i),
				Reason: fmt.Sprintf("must be at most %d cents", pricing.MaxUnitPriceCents),
			})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func normalize(s Submission) Submission {
	for _, p := range []*string{
		&s.FirstName, &s.LastName, &s.Email, &s.Phone,
		&s.PickupDate, &s.PickupTime,
		&s.DeliveryAddress, &s.DeliveryCity, &s.DeliveryPostalCode,
		&s.SpecialInstructions,
	} {
		*p = strings.TrimSpace(*p)
	}

	s.DeliveryOption = strings.ToLower(strings.TrimSpace(s.DeliveryOption))
	if s.DeliveryOption == "" {
		s.DeliveryOption = string(ModePickup)
	}

	items := make([]Item, len(s.Items))
	for i, item := range s.Items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		item.Name = NormalizeName(item.Name)
		item.Variants = normalizeVariants(item.Variants)
		items[i] = item
	}
	s.Items = items
	return s
}

// NormalizeName trims name and spells "flavor" as "flavour", keeping the
// case of the surrounding letters.
func NormalizeName(name string) string {
	return flavorWord.ReplaceAllStringFunc(strings.TrimSpace(name), func(m string) string {
		u := "u"
		if m[5] == 'R' {
			u = "U"
		}
		return m[:5] + u + m[5:]
	})
}

func normalizeVariants(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

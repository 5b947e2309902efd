package product

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidID is returned for identifiers that are not positive integers.
	ErrInvalidID = errors.New("invalid product id")
)

// TagFeatured marks products highlighted on the storefront landing page.
const TagFeatured = "featured"

// Product represents a catalog item available for purchase.
type Product struct {
	ID             string
	Name           string
	Description    string
	UnitPriceCents int64
	ImageRef       string
	Available      bool
	Tags           []string
}

// HasTag reports whether the product carries the given label.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}

// ParseID validates a catalog identifier. Identifiers are positive integers
// carried as strings.
func ParseID(raw string) (string, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return "", errors.Wrapf(ErrInvalidID, "%q", raw)
	}
	return strconv.FormatInt(n, 10), nil
}

// ParseCatalog decodes a JSON array of catalog entries:
//
//	[{"id": 1, "name": "...", "description": "...", "priceCents": 200,
//	  "imageRef": "a.jpg", "available": true, "tags": ["featured"]}]
//
// Ids may be numbers or numeric strings. Missing "available" means true.
func ParseCatalog(data []byte) ([]Product, error) {
	var products []Product
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		p := Product{Available: true}
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			var err error
			switch string(key) {
			case "id":
				p.ID, err = decodeID(d)
			case "name":
				p.Name, err = d.Str()
			case "description":
				p.Description, err = d.Str()
			case "priceCents":
				p.UnitPriceCents, err = d.Int64()
			case "imageRef":
				p.ImageRef, err = d.Str()
			case "available":
				p.Available, err = d.Bool()
			case "tags":
				err = d.Arr(func(d *jx.Decoder) error {
					tag, err := d.Str()
					p.Tags = append(p.Tags, tag)
					return err
				})
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "product #%d", len(products))
		}
		if p.ID == "" || p.Name == "" {
			return errors.Errorf("product #%d: id and name are required", len(products))
		}
		if p.UnitPriceCents < 0 {
			return errors.Errorf("product %s: negative price", p.ID)
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return products, nil
}

func decodeID(d *jx.Decoder) (string, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return "", err
		}
		raw = strconv.FormatInt(n, 10)
	default:
		s, err := d.Str()
		if err != nil {
			return "", err
		}
		raw = s
	}
	return ParseID(raw)
}

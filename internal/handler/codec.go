package handler

import (
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/bakery-storefront/internal/domain/order"
)

// requestError is a malformed request body.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(prefix string, err error) error {
	return &requestError{status: http.StatusBadRequest, msg: prefix + ": " + err.Error()}
}

// readBody reads the limited request body and runs decode over it.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, decode func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestError{
				status: http.StatusRequestEntityTooLarge,
				msg:    "request body exceeds " + strconv.FormatInt(maxErr.Limit, 10) + " bytes",
			}
		}
		return badRequest("read body", err)
	}
	if len(body) == 0 {
		return &requestError{status: http.StatusBadRequest, msg: "request body is empty"}
	}
	if err := decode(jx.DecodeBytes(body)); err != nil {
		return badRequest("invalid request body", err)
	}
	return nil
}

// optString decodes a string that may be null.
func optString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

// decodeID accepts identifiers written as strings or integers.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case jx.Null:
		return "", d.Null()
	default:
		return "", errors.Errorf("unexpected %s for id", d.Next())
	}
}

// decodeVariants reads {"aspect": "option"}. Null values are dropped.
func decodeVariants(d *jx.Decoder, into map[string]string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := optString(d)
		if err != nil {
			return errors.Wrapf(err, "variant %q", key)
		}
		if v != "" {
			into[string(key)] = v
		}
		return nil
	})
}

// decodeColor reads a legacy {"name": "Pink", "value": "#ffc0cb"} selection
// and returns the name, falling back to the value.
func decodeColor(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	var name, value string
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			name, err = optString(d)
		case "value":
			value, err = optString(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	return value, nil
}

// decodeItem reads one line of an order or estimate body. The legacy
// flavorId, shellColor and fillingColor keys are folded into the generic
// shape.
func decodeItem(d *jx.Decoder) (order.Item, error) {
	var (
		item     order.Item
		variants = make(map[string]string)
	)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var (
			err error
			k   = string(key)
		)
		switch k {
		case "productId", "flavorId":
			var id string
			if id, err = decodeID(d); err == nil && id != "" {
				item.ProductID = id
			}
		case "name":
			item.Name, err = optString(d)
		case "price":
			item.UnitPriceCents, err = d.Int64()
		case "quantity":
			item.Quantity, err = d.Int()
		case "variantSelections":
			err = decodeVariants(d, variants)
		case "shellColor", "fillingColor":
			var v string
			if v, err = decodeColor(d); err == nil && v != "" {
				variants[k[:len(k)-len("Color")]] = v
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, k)
		}
		return nil
	}); err != nil {
		return order.Item{}, err
	}
	if len(variants) > 0 {
		item.Variants = variants
	}
	return item, nil
}

func decodeItems(d *jx.Decoder) ([]order.Item, error) {
	var items []order.Item
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		item, err := decodeItem(d)
		if err != nil {
			return errors.Wrapf(err, "item %d", len(items))
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// writeJSON writes an encoded body with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes {"code": status, "message": msg, "fields": [...]}.
func writeError(w http.ResponseWriter, status int, msg string, fields ...order.FieldError) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		if len(fields) == 0 {
			return
		}
		e.Field("fields", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, f := range fields {
					e.Obj(func(e *jx.Encoder) {
						e.Field("field", func(e *jx.Encoder) { e.Str(f.Field) })
						e.Field("reason", func(e *jx.Encoder) { e.Str(f.Reason) })
					})
				}
			})
		})
	})
	writeJSON(w, status, &e)
}

func encodeVariants(e *jx.Encoder, variants map[string]string) {
	e.Obj(func(e *jx.Encoder) {
		for _, aspect := range slices.Sorted(maps.Keys(variants)) {
			e.Field(aspect, func(e *jx.Encoder) { e.Str(variants[aspect]) })
		}
	})
}

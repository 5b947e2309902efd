package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bakery-storefront/internal/domain/order"
)

// placeOrder decodes a submission, delegates to the order service, and
// returns the persisted order with 201. Client supplied totals are ignored.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var sub order.Submission
	if err := h.readBody(w, r, func(d *jx.Decoder) error {
		return decodeSubmission(d, &sub)
	}); err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), sub)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

// getOrder returns a persisted order by its number.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	number := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
	o, err := h.orders.Get(r.Context(), number)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// writeOrderError maps domain errors to responses. Unexpected errors are
// logged and reported without detail.
func (h *Handler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr *requestError
		verr   *order.ValidationError
		merr   *order.MinimumOrderError
	)
	switch {
	case errors.As(err, &reqErr):
		writeError(w, reqErr.status, reqErr.msg)
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error(), verr.Fields...)
	case errors.As(err, &merr):
		writeError(w, http.StatusBadRequest, merr.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		zctx.From(r.Context()).Error("Order request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeSubmission(d *jx.Decoder, sub *order.Submission) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var (
			err error
			dst *string
		)
		switch k := string(key); k {
		case "firstName":
			dst = &sub.FirstName
		case "lastName":
			dst = &sub.LastName
		case "email":
			dst = &sub.Email
		case "phone":
			dst = &sub.Phone
		case "pickupDate":
			dst = &sub.PickupDate
		case "pickupTime":
			dst = &sub.PickupTime
		case "deliveryOption":
			dst = &sub.DeliveryOption
		case "deliveryAddress":
			dst = &sub.DeliveryAddress
		case "deliveryCity":
			dst = &sub.DeliveryCity
		case "deliveryPostalCode":
			dst = &sub.DeliveryPostalCode
		case "specialInstructions":
			dst = &sub.SpecialInstructions
		case "items":
			sub.Items, err = decodeItems(d)
		default:
			// Totals and anything else the client computed are ignored.
			err = d.Skip()
		}
		if dst != nil {
			*dst, err = optString(d)
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	totals := o.Totals()
	str := func(name, v string) {
		e.Field(name, func(e *jx.Encoder) { e.Str(v) })
	}

	e.ObjStart()
	str("orderNumber", o.Number)
	str("firstName", o.Customer.FirstName)
	str("lastName", o.Customer.LastName)
	str("email", o.Customer.Email)
	str("phone", o.Customer.Phone)
	str("deliveryOption", string(o.Fulfillment.Mode))
	str("pickupDate", o.Fulfillment.PickupDate)
	str("pickupTime", o.Fulfillment.PickupTime)
	if o.Fulfillment.Mode == order.ModeDelivery {
		str("deliveryAddress", o.Fulfillment.DeliveryAddress)
		str("deliveryCity", o.Fulfillment.DeliveryCity)
		str("deliveryPostalCode", o.Fulfillment.DeliveryPostalCode)
	}
	if o.SpecialInstructions != "" {
		str("specialInstructions", o.SpecialInstructions)
	}
	e.Field("items", func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, item := range o.Items {
				encodeLine(e, item)
			}
		})
	})
	e.Field("subtotalCents", func(e *jx.Encoder) { e.Int64(totals.SubtotalCents) })
	e.Field("discountApplied", func(e *jx.Encoder) { e.Bool(totals.DiscountApplied) })
	e.Field("totalQuantity", func(e *jx.Encoder) { e.Int(totals.TotalQuantity) })
	e.Field("totalCents", func(e *jx.Encoder) { e.Int64(o.TotalCents) })
	str("createdAt", o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}

func encodeLine(e *jx.Encoder, item order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Int64(item.UnitPriceCents) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("lineTotalCents", func(e *jx.Encoder) { e.Int64(item.LineTotalCents()) })
		if len(item.Variants) > 0 {
			e.Field("variantSelections", func(e *jx.Encoder) { encodeVariants(e, item.Variants) })
		}
	})
}

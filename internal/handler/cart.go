package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/bakery-storefront/internal/domain/cart"
	"github.com/xenking/bakery-storefront/internal/domain/order"
	"github.com/xenking/bakery-storefront/internal/domain/pricing"
)

// estimateCart merges the submitted lines into a transient cart and prices
// it with the same policy used for orders. Nothing is persisted.
func (h *Handler) estimateCart(w http.ResponseWriter, r *http.Request) {
	var items []order.Item
	if err := h.readBody(w, r, func(d *jx.Decoder) error {
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "items" {
				return d.Skip()
			}
			var err error
			if items, err = decodeItems(d); err != nil {
				return errors.Wrap(err, "items")
			}
			return nil
		})
	}); err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	c := cart.New()
	for i, item := range items {
		if err := c.Add(cart.Item{
			ProductID:      item.ProductID,
			DisplayName:    order.NormalizeName(item.Name),
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			Variants:       item.Variants,
		}); err != nil {
			writeError(w, http.StatusBadRequest, "item "+strconv.Itoa(i)+": "+err.Error())
			return
		}
	}

	totals := c.Totals()
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range c.Items() {
					encodeLine(e, order.Item{
						ProductID:      item.ProductID,
						Name:           item.DisplayName,
						UnitPriceCents: item.UnitPriceCents,
						Quantity:       item.Quantity,
						Variants:       item.Variants,
					})
				}
			})
		})
		e.Field("subtotalCents", func(e *jx.Encoder) { e.Int64(totals.SubtotalCents) })
		e.Field("totalQuantity", func(e *jx.Encoder) { e.Int(totals.TotalQuantity) })
		e.Field("discountApplied", func(e *jx.Encoder) { e.Bool(totals.DiscountApplied) })
		e.Field("totalCents", func(e *jx.Encoder) { e.Int64(totals.TotalCents) })
		e.Field("discountCents", func(e *jx.Encoder) { e.Int64(totals.DiscountCents()) })
		e.Field("meetsMinimum", func(e *jx.Encoder) { e.Bool(pricing.MeetsMinimum(totals.TotalQuantity)) })
		e.Field("minimumQuantity", func(e *jx.Encoder) { e.Int(pricing.MinimumOrderQuantity) })
		e.Field("bulkThreshold", func(e *jx.Encoder) { e.Int(pricing.BulkThreshold) })
	})
	writeJSON(w, http.StatusOK, &e)
}

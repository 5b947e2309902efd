// Package handler exposes the storefront over HTTP: catalog reads, order
// placement and lookup, and cart estimates.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/bakery-storefront/internal/domain/order"
	"github.com/xenking/bakery-storefront/internal/domain/product"
)

// OrderService is the order use case consumed by the HTTP layer.
type OrderService interface {
	PlaceOrder(ctx context.Context, sub order.Submission) (*order.Order, error)
	Get(ctx context.Context, number string) (*order.Order, error)
}

var _ OrderService = (*order.Service)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image references in product
	// responses. Absolute references are returned unchanged.
	ImageBaseURL string
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the storefront API.
type Handler struct {
	products     product.Repository
	orders       OrderService
	imageBaseURL string
	maxBodyBytes int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, products product.Repository, orders OrderService) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		products:     products,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Mount registers the API under /api on r.
func (h *Handler) Mount(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		// Flavour routes predate the generic catalog and are still linked
		// from printed menus.
		for _, base := range []string{"/products", "/flavours", "/flavors"} {
			r.Get(base, h.listProducts)
			r.Get(base+"/{id}", h.getProduct)
		}

		r.Post("/orders", h.placeOrder)
		r.Get("/orders/{orderNumber}", h.getOrder)

		r.Post("/cart/estimate", h.estimateCart)
	})
}

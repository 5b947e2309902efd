package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bakery-storefront/db"
	"github.com/xenking/bakery-storefront/internal/domain/order"
	"github.com/xenking/bakery-storefront/internal/domain/product"
	"github.com/xenking/bakery-storefront/internal/storage/memory"
)

// --- Mock implementations ---

type failingOrders struct {
	err error
}

func (f failingOrders) PlaceOrder(context.Context, order.Submission) (*order.Order, error) {
	return nil, f.err
}

func (f failingOrders) Get(context.Context, string) (*order.Order, error) {
	return nil, f.err
}

type failingProducts struct{}

func (failingProducts) List(context.Context) ([]product.Product, error) {
	return nil, errors.New("connection reset")
}

func (failingProducts) GetByID(context.Context, string) (*product.Product, error) {
	return nil, errors.New("connection reset")
}

// --- Helpers ---

type fixture struct {
	router http.Handler
	orders *memory.OrderStore
}

func newFixture(t *testing.T, cfg HandlerConfig) fixture {
	t.Helper()

	catalog, err := product.ParseCatalog(db.Products)
	require.NoError(t, err)

	store := memory.NewOrderStore()
	svc, err := order.NewService(order.NewRepository(store), nil)
	require.NoError(t, err)

	return fixture{
		router: newRouter(NewHandler(cfg, memory.NewProductRepository(catalog), svc)),
		orders: store,
	}
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

const pickupOrder = `{
	"firstName": "Ada",
	"lastName": "Lovelace",
	"email": "ada@example.com",
	"phone": "555-0100",
	"pickupDate": "2026-11-02",
	"pickupTime": "15:30",
	"deliveryOption": "pickup",
	"deliveryAddress": null,
	"totalCents": 1,
	"items": [{"productId": 1, "name": "Vanilla Bean", "price": 200, "quantity": %QTY%}]
}`

func orderBody(qty string) string {
	return strings.ReplaceAll(pickupOrder, "%QTY%", qty)
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	f := newFixture(t, HandlerConfig{ImageBaseURL: "https://cdn.example/img/"})

	for _, path := range []string{"/api/products", "/api/flavours", "/api/flavors"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)

			var products []map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
			require.Len(t, products, 6)
			assert.Equal(t, "1", products[0]["id"])
			assert.Equal(t, "Vanilla Bean", products[0]["name"])
			assert.Equal(t, float64(200), products[0]["price"])
			assert.Equal(t, "https://cdn.example/img/vanilla.jpg", products[0]["image"])
			assert.Equal(t, true, products[0]["featured"])
			assert.Equal(t, false, products[1]["featured"])
		})
	}
}

func TestListProducts_Error(t *testing.T) {
	h := newRouter(NewHandler(HandlerConfig{}, failingProducts{}, failingOrders{}))

	w, body := do(t, h, http.MethodGet, "/api/products", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["message"])
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	for _, tt := range []struct {
		path    string
		code    int
		name    string
		message string
	}{
		{path: "/api/products/2", code: http.StatusOK, name: "Raspberry"},
		{path: "/api/flavours/002", code: http.StatusOK, name: "Raspberry"},
		{path: "/api/products/99", code: http.StatusNotFound, message: "product not found"},
		{path: "/api/products/abc", code: http.StatusBadRequest, message: "invalid product id"},
		{path: "/api/flavors/-1", code: http.StatusBadRequest, message: "invalid product id"},
	} {
		t.Run(tt.path, func(t *testing.T) {
			w, body := do(t, f.router, http.MethodGet, tt.path, "")
			require.Equal(t, tt.code, w.Code)
			if tt.name != "" {
				assert.Equal(t, tt.name, body["name"])
				assert.Equal(t, "raspberry.jpg", body["image"])
				return
			}
			assert.Equal(t, float64(tt.code), body["code"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestPlaceOrder_MinimumBox(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	w, body := do(t, f.router, http.MethodPost, "/api/orders", orderBody("12"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Regexp(t, `^MAC-\d{5}$`, body["orderNumber"])
	assert.Equal(t, float64(2400), body["totalCents"], "client total is ignored")
	assert.Equal(t, false, body["discountApplied"])
	assert.Equal(t, "pickup", body["deliveryOption"])
	assert.NotEmpty(t, body["createdAt"])
	assert.NotContains(t, body, "deliveryAddress")

	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, "1", line["productId"])
	assert.Equal(t, float64(2400), line["lineTotalCents"])

	assert.Equal(t, 1, f.orders.Len())
}

func TestPlaceOrder_BulkDiscount(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	w, body := do(t, f.router, http.MethodPost, "/api/orders", orderBody("50"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(9000), body["totalCents"])
	assert.Equal(t, float64(10000), body["subtotalCents"])
	assert.Equal(t, true, body["discountApplied"])
}

func TestPlaceOrder_Rejected(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	t.Run("BelowMinimum", func(t *testing.T) {
		w, body := do(t, f.router, http.MethodPost, "/api/orders", orderBody("11"))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["message"], "minimum order not met")
		assert.NotContains(t, body, "fields")
	})
	t.Run("MissingFields", func(t *testing.T) {
		w, body := do(t, f.router, http.MethodPost, "/api/orders",
			`{"firstName": "Ada", "items": [{"productId": "1", "price": 200, "quantity": 12}]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var fields []string
		for _, raw := range body["fields"].([]any) {
			fields = append(fields, raw.(map[string]any)["field"].(string))
		}
		assert.Contains(t, fields, "lastName")
		assert.Contains(t, fields, "email")
		assert.NotContains(t, fields, "firstName")
	})
	t.Run("MalformedJSON", func(t *testing.T) {
		w, body := do(t, f.router, http.MethodPost, "/api/orders", `{"firstName": `)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["message"], "invalid request body")
	})
	t.Run("WrongType", func(t *testing.T) {
		w, body := do(t, f.router, http.MethodPost, "/api/orders",
			`{"items": [{"productId": "1", "price": "two dollars", "quantity": 12}]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["message"], "price")
	})
	t.Run("OversizedQuantity", func(t *testing.T) {
		w, body := do(t, f.router, http.MethodPost, "/api/orders", orderBody("4611686018427387904"))
		require.Equal(t, http.StatusBadRequest, w.Code)
		fields := body["fields"].([]any)
		require.Len(t, fields, 1)
		assert.Equal(t, "items[0].quantity", fields[0].(map[string]any)["field"])
	})
	t.Run("LegacyColorWrongType", func(t *testing.T) {
		w, body := do(t, f.router, http.MethodPost, "/api/orders",
			`{"items": [{"productId": "1", "price": 200, "quantity": 12, "shellColor": 7}]}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["message"], "shellColor")
	})
	t.Run("Empty", func(t *testing.T) {
		w, body := do(t, f.router, http.MethodPost, "/api/orders", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "request body is empty", body["message"])
	})

	assert.Zero(t, f.orders.Len())
}

func TestPlaceOrder_BodyLimit(t *testing.T) {
	catalog, err := product.ParseCatalog(db.Products)
	require.NoError(t, err)
	h := newRouter(NewHandler(HandlerConfig{MaxBodyBytes: 64}, memory.NewProductRepository(catalog), failingOrders{}))

	w, _ := do(t, h, http.MethodPost, "/api/orders", orderBody("12"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPlaceOrder_LegacyVariants(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	w, body := do(t, f.router, http.MethodPost, "/api/orders", `{
		"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com", "phone": "555",
		"deliveryOption": "Delivery",
		"deliveryAddress": "1 Main St", "deliveryCity": "Springfield", "deliveryPostalCode": "12345",
		"items": [{
			"flavorId": 3,
			"name": "Custom Flavor Box",
			"price": 250,
			"quantity": 12,
			"shellColor": {"name": "Pink", "value": "#ffc0cb"},
			"fillingColor": {"value": "#ffffff"},
			"variantSelections": {"dust": "Gold", "empty": null}
		}]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, "delivery", body["deliveryOption"])
	assert.Equal(t, "Springfield", body["deliveryCity"])
	line := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "3", line["productId"])
	assert.Equal(t, "Custom Flavour Box", line["name"])
	assert.Equal(t, map[string]any{
		"shell":   "Pink",
		"filling": "#ffffff",
		"dust":    "Gold",
	}, line["variantSelections"])
	assert.Equal(t, float64(3000), body["totalCents"])
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	_, created := do(t, f.router, http.MethodPost, "/api/orders", orderBody("24"))
	number := created["orderNumber"].(string)

	w, body := do(t, f.router, http.MethodGet, "/api/orders/"+number, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, number, body["orderNumber"])
	assert.Equal(t, float64(4800), body["totalCents"])
	assert.Equal(t, created["createdAt"], body["createdAt"])

	w, body = do(t, f.router, http.MethodGet, "/api/orders/MAC-00000", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order not found", body["message"])
}

func TestOrderErrors_Internal(t *testing.T) {
	err := &order.PersistenceError{Op: "insert", Err: errors.New("password authentication failed")}
	h := newRouter(NewHandler(HandlerConfig{}, failingProducts{}, failingOrders{err: err}))

	w, body := do(t, h, http.MethodPost, "/api/orders", orderBody("12"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, w.Body.String(), "password")

	w, _ = do(t, h, http.MethodGet, "/api/orders/MAC-12345", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEstimateCart(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	w, body := do(t, f.router, http.MethodPost, "/api/cart/estimate", `{"items": [
		{"productId": "1", "name": "Vanilla Bean", "price": 205, "quantity": 30},
		{"productId": 1, "name": "Vanilla Bean", "price": 205, "quantity": 10},
		{"productId": 1, "name": "Vanilla Bean", "price": 205, "quantity": 10, "variantSelections": {"shell": "Pink"}}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	items := body["items"].([]any)
	require.Len(t, items, 2, "identical keys merge, variants stay apart")
	assert.Equal(t, float64(40), items[0].(map[string]any)["quantity"])

	assert.Equal(t, float64(50), body["totalQuantity"])
	assert.Equal(t, float64(10250), body["subtotalCents"])
	// floor(205 * 0.9) = 184 per macaron.
	assert.Equal(t, float64(9200), body["totalCents"])
	assert.Equal(t, float64(1050), body["discountCents"])
	assert.Equal(t, true, body["discountApplied"])
	assert.Equal(t, true, body["meetsMinimum"])
	assert.Equal(t, float64(12), body["minimumQuantity"])
	assert.Equal(t, float64(50), body["bulkThreshold"])

	assert.Zero(t, f.orders.Len())
}

func TestEstimateCart_Invalid(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	w, body := do(t, f.router, http.MethodPost, "/api/cart/estimate",
		`{"items": [{"productId": "1", "price": 200, "quantity": 0}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "item 0: quantity must be at least 1", body["message"])

	w, body = do(t, f.router, http.MethodPost, "/api/cart/estimate", `{"items": []}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["totalCents"])
	assert.Equal(t, false, body["meetsMinimum"])
}

func TestRoutes_Fallbacks(t *testing.T) {
	f := newFixture(t, HandlerConfig{})

	w, body := do(t, f.router, http.MethodGet, "/api/coupons", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", body["message"])

	w, _ = do(t, f.router, http.MethodDelete, "/api/orders", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

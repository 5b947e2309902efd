// Package memory provides in-process implementations of the catalog and
// order stores. It is the default storage driver and is safe for concurrent
// use.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/bakery-storefront/internal/domain/order"
	"github.com/xenking/bakery-storefront/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository serves a fixed catalog.
type ProductRepository struct {
	products []product.Product
}

// NewProductRepository returns a repository seeded with products.
func NewProductRepository(products []product.Product) *ProductRepository {
	return &ProductRepository{products: cloneProducts(products)}
}

// List returns all products in seed order.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	return cloneProducts(r.products), nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	for _, p := range r.products {
		if p.ID == id {
			p.Tags = slices.Clone(p.Tags)
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func cloneProducts(in []product.Product) []product.Product {
	out := make([]product.Product, len(in))
	for i, p := range in {
		p.Tags = slices.Clone(p.Tags)
		out[i] = p
	}
	return out
}

var _ order.Store = (*OrderStore)(nil)

// OrderStore keeps orders in a map keyed by number plus an insertion-ordered
// index. Stored orders are copies; callers never share memory with the store.
type OrderStore struct {
	mu       sync.RWMutex
	byNumber map[string]*order.Order
	sequence []string
}

// NewOrderStore returns an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{byNumber: make(map[string]*order.Order)}
}

// Insert stores o unless its number is taken. The check and the write
// happen under one lock.
func (s *OrderStore) Insert(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNumber[o.Number]; ok {
		return order.ErrNumberTaken
	}
	s.byNumber[o.Number] = o.Clone()
	s.sequence = append(s.sequence, o.Number)
	return nil
}

// GetByNumber returns a copy of the order with the given number.
func (s *OrderStore) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byNumber[number]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

// List returns copies of all orders in insertion order.
func (s *OrderStore) List(_ context.Context) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]order.Order, len(s.sequence))
	for i, number := range s.sequence {
		out[i] = *s.byNumber[number].Clone()
	}
	return out, nil
}

// Len returns the number of stored orders.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sequence)
}

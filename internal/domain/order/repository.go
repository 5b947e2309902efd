package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// maxNumberAttempts bounds order number regeneration for a single order.
const maxNumberAttempts = 64

// Repository assigns order numbers and timestamps and persists orders
// through a Store.
type Repository struct {
	store   Store
	numbers NumberSource
	now     func() time.Time
}

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithNumberSource overrides the order number generator.
func WithNumberSource(src NumberSource) RepositoryOption {
	return func(r *Repository) { r.numbers = src }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) RepositoryOption {
	return func(r *Repository) { r.now = now }
}

// NewRepository returns a Repository backed by store.
func NewRepository(store Store, opts ...RepositoryOption) *Repository {
	r := &Repository{
		store:   store,
		numbers: NewNumberGenerator(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Warm feeds already stored order numbers to the number source so its
// prefilter survives restarts.
func (r *Repository) Warm(ctx context.Context) (int, error) {
	orders, err := r.store.List(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "list", Err: err}
	}
	for _, o := range orders {
		r.numbers.Issued(o.Number)
	}
	return len(orders), nil
}

// Create persists cmd as a new order. The total is priced from the item
// snapshot here and nowhere else. Number collisions reported by the store
// are retried with a fresh candidate; the existing order is never replaced.
func (r *Repository) Create(ctx context.Context, cmd Command) (*Order, error) {
	o := &Order{
		Customer:            cmd.Customer,
		Fulfillment:         cmd.Fulfillment,
		Items:               CloneItems(cmd.Items),
		TotalCents:          cmd.Totals().TotalCents,
		SpecialInstructions: cmd.SpecialInstructions,
		CreatedAt:           r.now().UTC(),
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o.Number = r.numbers.Next(attempt)

		err := r.store.Insert(ctx, o)
		switch {
		case err == nil:
			r.numbers.Issued(o.Number)
			return o, nil
		case errors.Is(err, ErrNumberTaken):
			r.numbers.Issued(o.Number)
			continue
		default:
			return nil, &PersistenceError{Op: "insert", Err: err}
		}
	}

	return nil, &PersistenceError{
		Op:  "assign number",
		Err: errors.Errorf("no free order number after %d attempts", maxNumberAttempts),
	}
}

// GetByOrderNumber returns the order with the exact number, or ErrNotFound.
func (r *Repository) GetByOrderNumber(ctx context.Context, number string) (*Order, error) {
	o, err := r.store.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "get", Err: err}
	}
	return o, nil
}

// ListAll returns every order in insertion order.
func (r *Repository) ListAll(ctx context.Context) ([]Order, error) {
	orders, err := r.store.List(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return orders, nil
}

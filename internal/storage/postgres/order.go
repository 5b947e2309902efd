package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bakery-storefront/internal/domain/order"
)

const (
	orderColumns = `order_number, first_name, last_name, email, phone,
		delivery_option, pickup_date, pickup_time,
		delivery_address, delivery_city, delivery_postal_code,
		special_instructions, items, total_cents, created_at`

	// The primary key makes the insert the uniqueness check; a conflicting
	// number inserts nothing.
	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (order_number) DO NOTHING`

	getOrderSQL   = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY seq`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Insert persists a new order. The item snapshot is serialized to JSON for
// storage in the JSONB column.
func (s *OrderStore) Insert(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	f := o.Fulfillment
	tag, err := s.pool.Exec(ctx, insertOrderSQL,
		o.Number, o.Customer.FirstName, o.Customer.LastName, o.Customer.Email, o.Customer.Phone,
		string(f.Mode), f.PickupDate, f.PickupTime,
		f.DeliveryAddress, f.DeliveryCity, f.DeliveryPostalCode,
		o.SpecialInstructions, itemsJSON, o.TotalCents, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.Number, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNumberTaken
	}
	return nil
}

// GetByNumber returns the order with the given number.
func (s *OrderStore) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	return &o, nil
}

// List returns all orders in insertion order.
func (s *OrderStore) List(ctx context.Context) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o     order.Order
		mode  string
		items []byte
	)
	f := &o.Fulfillment
	if err := row.Scan(
		&o.Number, &o.Customer.FirstName, &o.Customer.LastName, &o.Customer.Email, &o.Customer.Phone,
		&mode, &f.PickupDate, &f.PickupTime,
		&f.DeliveryAddress, &f.DeliveryCity, &f.DeliveryPostalCode,
		&o.SpecialInstructions, &items, &o.TotalCents, &o.CreatedAt,
	); err != nil {
		return o, err
	}
	f.Mode = order.Mode(mode)
	o.CreatedAt = o.CreatedAt.UTC()

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.Number, err)
	}
	return o, nil
}

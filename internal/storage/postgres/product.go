package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bakery-storefront/internal/domain/product"
)

const (
	productColumns = `id, name, description, price_cents, image_ref, available, tags`

	listProductsSQL   = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price_cents = EXCLUDED.price_cents,
			image_ref = EXCLUDED.image_ref,
			available = EXCLUDED.available,
			tags = EXCLUDED.tags`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier. Identifiers that are
// not integers cannot exist and report product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	key, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, product.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, getProductByIDSQL, key)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Upsert inserts or replaces the given products in a single batch.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		key, err := strconv.ParseInt(p.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("product %q: %w", p.ID, product.ErrInvalidID)
		}
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(upsertProductSQL,
			key, p.Name, p.Description, p.UnitPriceCents, p.ImageRef, p.Available, tags,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting products: %w", err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p  product.Product
		id int64
	)
	err := row.Scan(&id, &p.Name, &p.Description, &p.UnitPriceCents, &p.ImageRef, &p.Available, &p.Tags)
	p.ID = strconv.FormatInt(id, 10)
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	return p, err
}

// Command seed-db runs migrations and upserts the product catalog.
package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/bakery-storefront/db"
	"github.com/xenking/bakery-storefront/internal/domain/product"
	"github.com/xenking/bakery-storefront/internal/storage/postgres"
)

type config struct {
	DatabaseURL  string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	ProductsFile string `usage:"Catalog JSON file, optionally .gz; the bundled catalog when empty" flag:"products-file"`
	DryRun       bool   `usage:"Parse the catalog without touching the database" flag:"dry-run"`
}

func main() {
	lg, _ := zap.NewProduction()
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BAKERY_SEED",
		SkipFiles: true,
	}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" && !cfg.DryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	products, err := loadCatalog(cfg.ProductsFile)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}
	lg.Info("Catalog parsed", zap.Int("products", len(products)))
	if cfg.DryRun {
		for _, p := range products {
			lg.Info("Product",
				zap.String("id", p.ID),
				zap.String("name", p.Name),
				zap.Int64("price_cents", p.UnitPriceCents),
			)
		}
		return nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	lg.Info("Upserted products", zap.Int("count", len(products)))
	return nil
}

// loadCatalog reads path, transparently decompressing .gz files. An empty
// path selects the catalog compiled into the binary.
func loadCatalog(path string) ([]product.Product, error) {
	if path == "" {
		return product.ParseCatalog(db.Products)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, errors.Wrap(err, "read")
	}
	return product.ParseCatalog(buf.Bytes())
}

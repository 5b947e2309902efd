// Command order-export writes every persisted order as gzip-compressed
// newline delimited JSON, oldest first.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/bakery-storefront/internal/domain/order"
	"github.com/xenking/bakery-storefront/internal/storage/postgres"
)

type config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (or DATABASE_URL env)" flag:"database-url"`
	Out         string `default:"orders.ndjson.gz" usage:"Output file, - for stdout"`
	Since       string `usage:"Only export orders created on or after this date (2006-01-02)"`
}

func main() {
	lg, _ := zap.NewProduction()
	defer func() { _ = lg.Sync() }()

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BAKERY_EXPORT",
		SkipFiles: true,
	}).Load(); err != nil {
		lg.Fatal("Load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, cfg); err != nil {
		lg.Fatal("Export failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, cfg config) (rerr error) {
	var since time.Time
	if cfg.Since != "" {
		t, err := time.Parse(time.DateOnly, cfg.Since)
		if err != nil {
			return errors.Wrap(err, "parse since")
		}
		since = t
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	orders, err := order.NewRepository(postgres.NewOrderStore(pool)).ListAll(ctx)
	if err != nil {
		return errors.Wrap(err, "list orders")
	}

	var out io.Writer = os.Stdout
	if cfg.Out != "-" {
		f, err := os.Create(cfg.Out)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer func() {
			if err := f.Close(); err != nil && rerr == nil {
				rerr = errors.Wrap(err, "close output")
			}
		}()
		out = f
	}

	n, err := export(out, orders, since)
	if err != nil {
		return err
	}
	lg.Info("Exported orders",
		zap.Int("count", n),
		zap.Int("skipped", len(orders)-n),
		zap.String("out", cfg.Out),
	)
	return nil
}

// export writes orders created at or after since as gzip NDJSON and returns
// how many were written.
func export(w io.Writer, orders []order.Order, since time.Time) (int, error) {
	zw := pgzip.NewWriter(w)
	enc := json.NewEncoder(zw)

	var n int
	for i := range orders {
		if orders[i].CreatedAt.Before(since) {
			continue
		}
		if err := enc.Encode(&orders[i]); err != nil {
			_ = zw.Close()
			return n, errors.Wrapf(err, "encode order %s", orders[i].Number)
		}
		n++
	}
	if err := zw.Close(); err != nil {
		return n, errors.Wrap(err, "flush gzip")
	}
	return n, nil
}

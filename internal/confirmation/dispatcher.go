package confirmation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/bakery-storefront/internal/domain/order"
)

const (
	channelCustomer = "customer"
	channelBusiness = "business"

	// DefaultTimeout bounds the delivery of both artifacts of one order.
	DefaultTimeout = 30 * time.Second
)

// Mailer sends a rendered message. Implementations make a single attempt.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Options configures a Dispatcher.
type Options struct {
	Composer      Composer
	Timeout       time.Duration
	MeterProvider metric.MeterProvider
}

var _ order.Dispatcher = (*Dispatcher)(nil)

// Dispatcher sends confirmations in the background. Failures are logged and
// never reach the caller of Dispatch.
type Dispatcher struct {
	lg       *zap.Logger
	mailer   Mailer
	composer Composer
	timeout  time.Duration

	wg     sync.WaitGroup
	sent   metric.Int64Counter
	failed metric.Int64Counter
}

// NewDispatcher creates a Dispatcher. A nil mailer turns every Dispatch into
// a logged no-op.
func NewDispatcher(lg *zap.Logger, mailer Mailer, opts Options) (*Dispatcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	meter := opts.MeterProvider.Meter("github.com/xenking/bakery-storefront/internal/confirmation")

	d := &Dispatcher{
		lg:       lg,
		mailer:   mailer,
		composer: opts.Composer,
		timeout:  opts.Timeout,
	}

	var err error
	if d.sent, err = meter.Int64Counter("bakery.confirmations.sent"); err != nil {
		return nil, errors.Wrap(err, "create sent counter")
	}
	if d.failed, err = meter.Int64Counter("bakery.confirmations.failed"); err != nil {
		return nil, errors.Wrap(err, "create failed counter")
	}
	return d, nil
}

// Dispatch schedules both confirmation artifacts of o and returns
// immediately.
func (d *Dispatcher) Dispatch(o *order.Order) {
	if d.mailer == nil {
		d.lg.Warn("Email transport not configured, skipping confirmation",
			zap.String("order_number", o.Number),
		)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.deliver(ctx, o)
	}()
}

// Wait blocks until in-flight dispatches finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, o *order.Order) {
	lg := d.lg.With(zap.String("order_number", o.Number))

	if strings.Contains(o.Customer.Email, "@") {
		d.send(ctx, lg, o, channelCustomer, d.composer.Customer)
	} else {
		lg.Error("Customer email is not an address, skipping confirmation",
			zap.String("email", o.Customer.Email),
		)
	}

	if d.composer.BusinessEmail != "" {
		d.send(ctx, lg, o, channelBusiness, d.composer.Business)
	} else {
		lg.Warn("Business email not configured, skipping notification")
	}
}

func (d *Dispatcher) send(
	ctx context.Context,
	lg *zap.Logger,
	o *order.Order,
	channel string,
	compose func(*order.Order) (Message, error),
) {
	attrs := metric.WithAttributes(attribute.String("channel", channel))

	// A panicking composer or transport is reported like any other failure.
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("panic: %v", r)
			}
		}()

		m, err := compose(o)
		if err != nil {
			return err
		}
		return d.mailer.Send(ctx, m)
	}()
	if err != nil {
		d.failed.Add(ctx, 1, attrs)
		lg.Error("Confirmation dispatch failed",
			zap.Error(&order.DispatchError{OrderNumber: o.Number, Channel: channel, Err: err}),
		)
		return
	}

	d.sent.Add(ctx, 1, attrs)
	lg.Info("Confirmation sent", zap.String("channel", channel))
}

package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/bakery-storefront/internal/domain/order"

// Dispatcher hands a persisted order to the confirmation pipeline. Dispatch
// must not block on delivery.
type Dispatcher interface {
	Dispatch(o *Order)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTracerProvider sets the tracer provider used for order spans.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for order counters.
func WithMeterProvider(mp metric.MeterProvider) ServiceOption {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service encapsulates order placement business logic.
type Service struct {
	validator  *Validator
	repo       *Repository
	dispatcher Dispatcher

	tracer   trace.Tracer
	meter    metric.Meter
	placed   metric.Int64Counter
	rejected metric.Int64Counter
	revenue  metric.Int64Counter
}

// NewService creates an order Service. A nil dispatcher disables
// confirmations.
func NewService(repo *Repository, dispatcher Dispatcher, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		validator:  NewValidator(),
		repo:       repo,
		dispatcher: dispatcher,
		tracer:     tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:      metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("bakery.orders.placed",
		metric.WithDescription("Orders persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "create placed counter")
	}
	if s.rejected, err = s.meter.Int64Counter("bakery.orders.rejected",
		metric.WithDescription("Order submissions rejected by validation"),
	); err != nil {
		return nil, errors.Wrap(err, "create rejected counter")
	}
	if s.revenue, err = s.meter.Int64Counter("bakery.orders.revenue",
		metric.WithDescription("Order totals"),
		metric.WithUnit("{cent}"),
	); err != nil {
		return nil, errors.Wrap(err, "create revenue counter")
	}
	return s, nil
}

// PlaceOrder validates the submission, persists the order and schedules its
// confirmations. The returned order is never affected by dispatch outcome.
func (s *Service) PlaceOrder(ctx context.Context, sub Submission) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	cmd, err := s.validator.Validate(sub)
	if err != nil {
		s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
		return nil, err
	}

	o, err := s.repo.Create(ctx, cmd)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	mode := attribute.String("fulfillment", string(o.Fulfillment.Mode))
	span.SetAttributes(attribute.String("order.number", o.Number), mode)
	s.placed.Add(ctx, 1, metric.WithAttributes(mode))
	s.revenue.Add(ctx, o.TotalCents, metric.WithAttributes(mode))

	zctx.From(ctx).Info("Order placed",
		zap.String("order_number", o.Number),
		zap.Int64("total_cents", o.TotalCents),
		zap.Int("items", len(o.Items)),
		zap.String("fulfillment", string(o.Fulfillment.Mode)),
	)

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(o.Clone())
	}
	return o, nil
}

// Get returns a persisted order by number.
func (s *Service) Get(ctx context.Context, number string) (*Order, error) {
	return s.repo.GetByOrderNumber(ctx, number)
}

// List returns every persisted order.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.repo.ListAll(ctx)
}

func rejectReason(err error) string {
	var merr *MinimumOrderError
	if errors.As(err, &merr) {
		return "minimum_order"
	}
	return "validation"
}

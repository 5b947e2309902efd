package mail

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/xenking/bakery-storefront/internal/confirmation"
)

// BreakerConfig controls when the mail circuit opens.
type BreakerConfig struct {
	// ConsecutiveFailures opens the circuit.
	ConsecutiveFailures uint32
	// Cooldown is how long the circuit stays open before a probe.
	Cooldown time.Duration
}

var _ confirmation.Mailer = (*Breaker)(nil)

// Breaker stops calling a failing transport for a while. An open circuit
// fails sends immediately; nothing is queued or retried.
type Breaker struct {
	next confirmation.Mailer
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// WithBreaker wraps next in a circuit breaker.
func WithBreaker(lg *zap.Logger, next confirmation.Mailer, cfg BreakerConfig) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}

	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "mail",
			MaxRequests: 1,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				lg.Warn("Mail circuit state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
	}
}

// Send forwards m unless the circuit is open.
func (b *Breaker) Send(ctx context.Context, m confirmation.Message) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, m)
	})
	return err
}

// State reports the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

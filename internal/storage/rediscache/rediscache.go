// Package rediscache wraps an order store with a Redis read-through cache.
//
// Orders are immutable once inserted, so cached entries never go stale and
// the cache needs no invalidation; the TTL only bounds memory.
package rediscache

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/bakery-storefront/internal/domain/order"
)

const (
	// DefaultTTL is the base lifetime of a cached order.
	DefaultTTL = 24 * time.Hour

	keyPrefix = "bakery:order:"
)

var _ order.Store = (*Store)(nil)

// Store decorates an order.Store. Redis failures are logged and fall back
// to the underlying store; they never fail a request.
type Store struct {
	next   order.Store
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

// New returns a caching decorator around next.
func New(next order.Store, client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{next: next, client: client, ttl: ttl}
}

// Insert writes through to the underlying store and caches the order.
func (s *Store) Insert(ctx context.Context, o *order.Order) error {
	if err := s.next.Insert(ctx, o); err != nil {
		return err
	}
	s.set(ctx, o)
	return nil
}

// GetByNumber serves from Redis when possible. Concurrent misses for the same
// number share one lookup.
func (s *Store) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	cached, err := s.get(ctx, number)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, redis.Nil):
		zctx.From(ctx).Warn("Order cache read failed", zap.String("order_number", number), zap.Error(err))
	}

	v, err, _ := s.group.Do(number, func() (any, error) {
		o, err := s.next.GetByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		s.set(ctx, o)
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*order.Order).Clone(), nil
}

// List is served by the underlying store.
func (s *Store) List(ctx context.Context) ([]order.Order, error) {
	return s.next.List(ctx)
}

func (s *Store) get(ctx context.Context, number string) (*order.Order, error) {
	data, err := s.client.Get(ctx, cacheKey(number)).Bytes()
	if err != nil {
		return nil, err
	}
	var o order.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, errors.Wrap(err, "unmarshal cached order")
	}
	return &o, nil
}

func (s *Store) set(ctx context.Context, o *order.Order) {
	data, err := json.Marshal(o)
	if err == nil {
		err = s.client.Set(ctx, cacheKey(o.Number), data, s.jitteredTTL()).Err()
	}
	if err != nil {
		zctx.From(ctx).Warn("Order cache write failed", zap.String("order_number", o.Number), zap.Error(err))
	}
}

// jitteredTTL spreads expiry over an extra tenth of the base TTL.
func (s *Store) jitteredTTL() time.Duration {
	return s.ttl + rand.N(s.ttl/10+1)
}

func cacheKey(number string) string {
	return keyPrefix + number
}

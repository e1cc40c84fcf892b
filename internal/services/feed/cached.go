package feed

import (
	"context"
	"time"

	domrepo "MandiCast/internal/domain/repository"
	"MandiCast/pkg/cache"
	applogger "MandiCast/pkg/logger"
)

// Cached keeps successful live quotes for ttl. Failures are never cached.
type Cached struct {
	next  domrepo.PriceFeed
	cache cache.Service
	ttl   time.Duration
	log   *applogger.Logger
}

func NewCached(next domrepo.PriceFeed, c cache.Service, ttl time.Duration, l *applogger.Logger) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl, log: l}
}

func (c *Cached) CurrentPrice(ctx context.Context, crop, market string) (float64, error) {
	key := cache.GenerateKey("feed", crop, market)

	var price float64
	if err := c.cache.Get(ctx, key, &price); err == nil {
		return price, nil
	}

	price, err := c.next.CurrentPrice(ctx, crop, market)
	if err != nil {
		return 0, err
	}
	if err := c.cache.Set(ctx, key, price, c.ttl); err != nil && c.log != nil {
		c.log.Warn("feed cache set failed", applogger.String("key", key), applogger.Error(err))
	}
	return price, nil
}

var _ domrepo.PriceFeed = (*Cached)(nil)

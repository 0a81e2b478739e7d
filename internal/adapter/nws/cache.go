package nws

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
	"github.com/couchcryptid/weather-briefing-service/internal/observability"
)

// DefaultPointsTTL is how long a resolved grid point is reused. NWS grid
// assignments change rarely, so a day keeps the /points traffic to one
// lookup per anchor per day.
const DefaultPointsTTL = 24 * time.Hour

// CachedLocator wraps a GridLocator with an expiring in-memory cache.
type CachedLocator struct {
	inner   domain.GridLocator
	cache   *gocache.Cache
	metrics *observability.Metrics
}

// NewCachedLocator creates a cache decorator around a locator.
func NewCachedLocator(inner domain.GridLocator, ttl time.Duration, metrics *observability.Metrics) *CachedLocator {
	return &CachedLocator{
		inner:   inner,
		cache:   gocache.New(ttl, 2*ttl),
		metrics: metrics,
	}
}

func (c *CachedLocator) Locate(ctx context.Context, lat, lon float64) (domain.GridPoint, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.GridPointCache.WithLabelValues("hit").Inc()
		return v.(domain.GridPoint), nil
	}
	c.metrics.GridPointCache.WithLabelValues("miss").Inc()

	gp, err := c.inner.Locate(ctx, lat, lon)
	if err != nil {
		return gp, err
	}
	// Points without a forecast link are not cached so they are retried next run.
	if gp.ForecastURL != "" {
		c.cache.SetDefault(key, gp)
	}
	return gp, nil
}

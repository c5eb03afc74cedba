package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/golang/groupcache/singleflight"
)

const DefaultPriceTTL = 60 * time.Second

// PriceSource returns the current USD spot price of the chain's native coin.
type PriceSource interface {
	SpotPrice(ctx context.Context) (float64, error)
}

// PriceCache holds the last known native price for a fixed TTL. Writes are
// last-writer-wins.
type PriceCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	value     float64
	fetchedAt time.Time
}

func NewPriceCache(ttl time.Duration, now func() time.Time) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	if now == nil {
		now = time.Now
	}
	return &PriceCache{ttl: ttl, now: now}
}

func (c *PriceCache) Get() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value <= 0 || c.now().Sub(c.fetchedAt) >= c.ttl {
		return 0, false
	}
	return c.value, true
}

func (c *PriceCache) Set(value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	c.fetchedAt = c.now()
}

// PriceService resolves the native USD price through the cache. Failures
// degrade to 0 and are never returned to callers.
type PriceService struct {
	source PriceSource
	cache  *PriceCache
	group  singleflight.Group
}

func NewPriceService(source PriceSource, cache *PriceCache) *PriceService {
	if cache == nil {
		cache = NewPriceCache(DefaultPriceTTL, nil)
	}
	return &PriceService{source: source, cache: cache}
}

func (s *PriceService) NativeUSD(ctx context.Context) float64 {
	if value, ok := s.cache.Get(); ok {
		return value
	}
	if s.source == nil {
		return 0
	}
	result, err := s.group.Do("native-usd", func() (interface{}, error) {
		return s.source.SpotPrice(ctx)
	})
	if err != nil {
		slog.Warn("native price lookup failed", "err", err)
		return 0
	}
	price, _ := result.(float64)
	if price > 0 {
		s.cache.Set(price)
	}
	return price
}

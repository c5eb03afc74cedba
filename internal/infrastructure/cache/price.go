package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"walletfeed/internal/application"

	"github.com/redis/go-redis/v9"
)

const (
	nativePriceKey  = "walletfeed:price:native-usd"
	defaultPriceTTL = time.Minute
)

type Config struct {
	Addr string
	TTL  time.Duration
}

type store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// SharedPriceSource shares spot prices between replicas through Redis. Redis
// failures fall through to the wrapped source.
type SharedPriceSource struct {
	source application.PriceSource
	cache  store
	ttl    time.Duration
}

// NewSharedPriceSource returns source unchanged when no address is configured.
func NewSharedPriceSource(source application.PriceSource, cfg Config) (application.PriceSource, func() error, error) {
	if source == nil {
		return nil, nil, errors.New("price source is required")
	}
	noop := func() error { return nil }
	if strings.TrimSpace(cfg.Addr) == "" {
		return source, noop, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return newSharedPriceSource(source, client, cfg.TTL), client.Close, nil
}

func newSharedPriceSource(source application.PriceSource, cache store, ttl time.Duration) *SharedPriceSource {
	if ttl <= 0 {
		ttl = defaultPriceTTL
	}
	return &SharedPriceSource{source: source, cache: cache, ttl: ttl}
}

func (s *SharedPriceSource) SpotPrice(ctx context.Context) (float64, error) {
	cached, err := s.cache.Get(ctx, nativePriceKey).Result()
	if err == nil {
		if price, err := strconv.ParseFloat(cached, 64); err == nil && price > 0 {
			return price, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("price cache read failed", "err", err)
	}

	price, err := s.source.SpotPrice(ctx)
	if err != nil {
		return 0, err
	}
	if price > 0 {
		value := strconv.FormatFloat(price, 'f', -1, 64)
		if err := s.cache.Set(ctx, nativePriceKey, value, s.ttl).Err(); err != nil {
			slog.Warn("price cache write failed", "err", err)
		}
	}
	return price, nil
}

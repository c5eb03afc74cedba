package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePriceSource struct {
	calls atomic.Int32
	price float64
	err   error
	gate  chan struct{}
}

func (f *fakePriceSource) SpotPrice(ctx context.Context) (float64, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.price, f.err
}

func TestPriceCache_ExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	cache := NewPriceCache(60*time.Second, clock.Now)

	_, ok := cache.Get()
	require.False(t, ok)

	cache.Set(3200.5)
	value, ok := cache.Get()
	require.True(t, ok)
	require.Equal(t, 3200.5, value)

	clock.Advance(59 * time.Second)
	_, ok = cache.Get()
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = cache.Get()
	require.False(t, ok)
}

func TestPriceService_CachesWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	source := &fakePriceSource{price: 2500}
	service := NewPriceService(source, NewPriceCache(time.Minute, clock.Now))

	require.Equal(t, 2500.0, service.NativeUSD(context.Background()))
	require.Equal(t, 2500.0, service.NativeUSD(context.Background()))
	require.Equal(t, int32(1), source.calls.Load())

	clock.Advance(2 * time.Minute)
	source.price = 2600
	require.Equal(t, 2600.0, service.NativeUSD(context.Background()))
	require.Equal(t, int32(2), source.calls.Load())
}

func TestPriceService_FailureDegradesToZeroAndIsNotCached(t *testing.T) {
	source := &fakePriceSource{err: errors.New("coinbase down")}
	service := NewPriceService(source, NewPriceCache(time.Minute, nil))

	require.Zero(t, service.NativeUSD(context.Background()))
	source.err = nil
	source.price = 10
	require.Equal(t, 10.0, service.NativeUSD(context.Background()))
	require.Equal(t, int32(2), source.calls.Load())
}

func TestPriceService_CollapsesConcurrentMisses(t *testing.T) {
	source := &fakePriceSource{price: 1, gate: make(chan struct{})}
	service := NewPriceService(source, NewPriceCache(time.Minute, nil))

	var wg sync.WaitGroup
	results := make([]float64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = service.NativeUSD(context.Background())
		}(i)
	}
	require.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(source.gate)
	wg.Wait()

	for _, result := range results {
		require.Equal(t, 1.0, result)
	}
	require.LessOrEqual(t, source.calls.Load(), int32(8))
}

func TestPriceService_NilSource(t *testing.T) {
	service := NewPriceService(nil, nil)
	require.Zero(t, service.NativeUSD(context.Background()))
}

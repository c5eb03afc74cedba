package application

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"walletfeed/internal/domain"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxTransactions = 5000
	DefaultMaxTransfers    = 10000
)

// Snapshot is everything the feed pipeline needs from upstream for one wallet.
type Snapshot struct {
	Transactions []domain.RawTx
	Transfers    []domain.RawTransfer
	NativeUSD    float64

	// Degraded marks a snapshot whose crawl ended on an upstream error.
	Degraded bool
}

type SnapshotSource interface {
	Fetch(ctx context.Context, wallet string) Snapshot
}

type NativePriceSource interface {
	NativeUSD(ctx context.Context) float64
}

type FetcherConfig struct {
	MaxTransactions int
	MaxTransfers    int
}

// Fetcher crawls both explorer collections and looks up the native price
// concurrently. Each branch degrades to empty or zero on its own.
type Fetcher struct {
	crawler *Crawler
	prices  NativePriceSource
	cfg     FetcherConfig
}

func NewFetcher(crawler *Crawler, prices NativePriceSource, cfg FetcherConfig) *Fetcher {
	if cfg.MaxTransactions <= 0 {
		cfg.MaxTransactions = DefaultMaxTransactions
	}
	if cfg.MaxTransfers <= 0 {
		cfg.MaxTransfers = DefaultMaxTransfers
	}
	return &Fetcher{crawler: crawler, prices: prices, cfg: cfg}
}

func (f *Fetcher) Fetch(ctx context.Context, wallet string) Snapshot {
	ctx, span := otel.Tracer("walletfeed/fetcher").Start(ctx, "fetcher.fetch")
	defer span.End()

	var (
		g         errgroup.Group
		txItems   []Item
		trItems   []Item
		txErr     error
		trErr     error
		nativeUSD float64
	)
	escaped := url.PathEscape(wallet)
	g.Go(func() error {
		txItems, txErr = f.crawler.Crawl(ctx, fmt.Sprintf("/addresses/%s/transactions", escaped), f.cfg.MaxTransactions)
		return nil
	})
	g.Go(func() error {
		trItems, trErr = f.crawler.Crawl(ctx, fmt.Sprintf("/addresses/%s/token-transfers", escaped), f.cfg.MaxTransfers)
		return nil
	})
	g.Go(func() error {
		if f.prices != nil {
			nativeUSD = f.prices.NativeUSD(ctx)
		}
		return nil
	})
	_ = g.Wait()

	snapshot := Snapshot{
		Transactions: make([]domain.RawTx, 0, len(txItems)),
		Transfers:    make([]domain.RawTransfer, 0, len(trItems)),
		NativeUSD:    nativeUSD,
		Degraded:     txErr != nil || trErr != nil,
	}
	for _, item := range txItems {
		if tx, ok := ParseRawTx(item); ok {
			snapshot.Transactions = append(snapshot.Transactions, tx)
		}
	}
	for _, item := range trItems {
		if transfer, ok := ParseRawTransfer(item); ok {
			snapshot.Transfers = append(snapshot.Transfers, transfer)
		}
	}

	span.SetAttributes(
		attribute.Int("fetch.transactions", len(snapshot.Transactions)),
		attribute.Int("fetch.transfers", len(snapshot.Transfers)),
		attribute.Bool("fetch.degraded", snapshot.Degraded),
	)
	return snapshot
}

// CachedSnapshotSource keeps fetched snapshots per wallet for a short TTL so
// paging through one feed does not re-crawl the explorer. Degraded snapshots
// are never stored, so a recovered explorer is seen on the next request.
type CachedSnapshotSource struct {
	source SnapshotSource
	cache  *cache.Cache
}

func NewCachedSnapshotSource(source SnapshotSource, ttl time.Duration) SnapshotSource {
	if ttl <= 0 {
		return source
	}
	return &CachedSnapshotSource{source: source, cache: cache.New(ttl, 2*ttl)}
}

func (s *CachedSnapshotSource) Fetch(ctx context.Context, wallet string) Snapshot {
	key := strings.ToLower(wallet)
	if cached, ok := s.cache.Get(key); ok {
		if snapshot, ok := cached.(Snapshot); ok {
			return snapshot
		}
	}
	snapshot := s.source.Fetch(ctx, wallet)
	if !snapshot.Degraded {
		s.cache.SetDefault(key, snapshot)
	}
	return snapshot
}

package httpapi

import (
	"fmt"
	"io"
	"path"
	"sort"
	"sync"
	"time"
)

// Metrics implements the crawler and exporter observers and renders a
// Prometheus text snapshot.
type Metrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	feedRequests    uint64
	feedFallbacks   uint64
	feedItemsServed uint64
	feedLastLatency time.Duration
	feedMaxLatency  time.Duration
	walletsTracked  uint64
	crawlPages      map[string]uint64
	crawlItems      map[string]uint64
	crawlErrors     map[string]uint64
	exportedItems   uint64
	exportErrors    uint64
	lastExportAt    time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:   time.Now(),
		crawlPages:  make(map[string]uint64),
		crawlItems:  make(map[string]uint64),
		crawlErrors: make(map[string]uint64),
	}
}

func (m *Metrics) OnFeedServed(items int, latency time.Duration, fallback bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedRequests++
	m.feedItemsServed += uint64(items)
	if fallback {
		m.feedFallbacks++
	}
	m.feedLastLatency = latency
	if latency > m.feedMaxLatency {
		m.feedMaxLatency = latency
	}
}

func (m *Metrics) OnWalletTracked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walletsTracked++
}

func (m *Metrics) OnCrawlPage(endpoint string, items int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	collection := collectionOf(endpoint)
	m.crawlPages[collection]++
	m.crawlItems[collection] += uint64(items)
}

func (m *Metrics) OnCrawlError(endpoint string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crawlErrors[collectionOf(endpoint)]++
}

func (m *Metrics) OnWalletExported(wallet string, items int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportedItems += uint64(items)
	m.lastExportAt = time.Now()
}

func (m *Metrics) OnExportError(wallet string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportErrors++
}

// collectionOf keeps label cardinality bounded: /addresses/0x../transactions
// becomes "transactions".
func collectionOf(endpoint string) string {
	if endpoint == "" {
		return "unknown"
	}
	return path.Base(endpoint)
}

type Snapshot struct {
	StartTime       time.Time
	FeedRequests    uint64
	FeedFallbacks   uint64
	FeedItemsServed uint64
	FeedLastLatency time.Duration
	FeedMaxLatency  time.Duration
	WalletsTracked  uint64
	CrawlPages      map[string]uint64
	CrawlItems      map[string]uint64
	CrawlErrors     map[string]uint64
	ExportedItems   uint64
	ExportErrors    uint64
	LastExportAt    time.Time
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:       m.startTime,
		FeedRequests:    m.feedRequests,
		FeedFallbacks:   m.feedFallbacks,
		FeedItemsServed: m.feedItemsServed,
		FeedLastLatency: m.feedLastLatency,
		FeedMaxLatency:  m.feedMaxLatency,
		WalletsTracked:  m.walletsTracked,
		CrawlPages:      copyCounts(m.crawlPages),
		CrawlItems:      copyCounts(m.crawlItems),
		CrawlErrors:     copyCounts(m.crawlErrors),
		ExportedItems:   m.exportedItems,
		ExportErrors:    m.exportErrors,
		LastExportAt:    m.lastExportAt,
	}
}

func (s Snapshot) WriteText(w io.Writer) {
	fmt.Fprintf(w, "walletfeed_uptime_seconds %.0f\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(w, "walletfeed_feed_requests_total %d\n", s.FeedRequests)
	fmt.Fprintf(w, "walletfeed_feed_fallbacks_total %d\n", s.FeedFallbacks)
	fmt.Fprintf(w, "walletfeed_feed_items_served_total %d\n", s.FeedItemsServed)
	fmt.Fprintf(w, "walletfeed_feed_last_latency_seconds %.3f\n", s.FeedLastLatency.Seconds())
	fmt.Fprintf(w, "walletfeed_feed_max_latency_seconds %.3f\n", s.FeedMaxLatency.Seconds())
	fmt.Fprintf(w, "walletfeed_wallets_tracked_total %d\n", s.WalletsTracked)
	writeLabeled(w, "walletfeed_crawl_pages_total", s.CrawlPages)
	writeLabeled(w, "walletfeed_crawl_items_total", s.CrawlItems)
	writeLabeled(w, "walletfeed_crawl_errors_total", s.CrawlErrors)
	fmt.Fprintf(w, "walletfeed_exported_items_total %d\n", s.ExportedItems)
	fmt.Fprintf(w, "walletfeed_export_errors_total %d\n", s.ExportErrors)
	if !s.LastExportAt.IsZero() {
		fmt.Fprintf(w, "walletfeed_last_export_timestamp_seconds %d\n", s.LastExportAt.Unix())
	}
}

func writeLabeled(w io.Writer, name string, counts map[string]uint64) {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "%s{collection=%q} %d\n", name, key, counts[key])
	}
}

func copyCounts(source map[string]uint64) map[string]uint64 {
	clone := make(map[string]uint64, len(source))
	for key, value := range source {
		clone[key] = value
	}
	return clone
}

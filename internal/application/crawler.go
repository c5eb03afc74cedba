package application

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultCrawlPageSize = 50
	defaultCrawlSafety   = 50
	pageSizeParam        = "items_count"
	nextPageField        = "next_page_params"
)

// envelopeKeys lists the fields that may carry a page's items, in priority order.
var envelopeKeys = []string{"items", "transactions", "transfers", "token_transfers"}

// PageSource fetches one page of a paginated explorer collection and returns
// the decoded JSON payload.
type PageSource interface {
	FetchPage(ctx context.Context, path string, query url.Values) (any, error)
}

type CrawlObserver interface {
	OnCrawlPage(path string, items int)
	OnCrawlError(path string, err error)
}

type CrawlerConfig struct {
	PageSize int
	Safety   int
}

// Crawler walks a cursor-paginated collection until it is exhausted or a
// bound is hit. A page error ends the walk; the items so far are returned
// together with that error.
type Crawler struct {
	source   PageSource
	observer CrawlObserver
	cfg      CrawlerConfig
}

func NewCrawler(source PageSource, observer CrawlObserver, cfg CrawlerConfig) *Crawler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultCrawlPageSize
	}
	if cfg.Safety <= 0 {
		cfg.Safety = defaultCrawlSafety
	}
	return &Crawler{source: source, observer: observer, cfg: cfg}
}

func (c *Crawler) Crawl(ctx context.Context, path string, maxItems int) ([]Item, error) {
	ctx, span := otel.Tracer("walletfeed/crawler").Start(ctx, "crawler.crawl")
	defer span.End()

	pageSize := strconv.Itoa(c.cfg.PageSize)
	query := url.Values{pageSizeParam: []string{pageSize}}

	var (
		all      []Item
		pages    int
		crawlErr error
	)
	for pages < c.cfg.Safety && len(all) < maxItems {
		payload, err := c.source.FetchPage(ctx, path, query)
		if err != nil {
			slog.Warn("crawl page failed", "path", path, "page", pages+1, "err", err)
			if c.observer != nil {
				c.observer.OnCrawlError(path, err)
			}
			crawlErr = err
			break
		}
		pages++

		items := extractItems(payload)
		if c.observer != nil {
			c.observer.OnCrawlPage(path, len(items))
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		next, ok := nextPageQuery(payload)
		if !ok {
			break
		}
		if !next.Has(pageSizeParam) {
			next.Set(pageSizeParam, pageSize)
		}
		query = next
	}

	span.SetAttributes(
		attribute.String("crawl.path", path),
		attribute.Int("crawl.pages", pages),
		attribute.Int("crawl.items", len(all)),
	)
	if crawlErr != nil {
		span.RecordError(crawlErr)
	}
	return all, crawlErr
}

func extractItems(payload any) []Item {
	var raw []any
	switch v := payload.(type) {
	case map[string]any:
		for _, key := range envelopeKeys {
			if list, ok := v[key].([]any); ok {
				raw = list
				break
			}
		}
	case []any:
		raw = v
	}
	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		if obj, ok := entry.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	return items
}

// nextPageQuery turns the envelope cursor into the next request's query.
// A missing, empty or non-object cursor marks the end of the collection.
func nextPageQuery(payload any) (url.Values, bool) {
	envelope, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	cursor, ok := envelope[nextPageField].(map[string]any)
	if !ok || len(cursor) == 0 {
		return nil, false
	}
	query := url.Values{}
	for key, value := range cursor {
		if param := text(value); param != "" {
			query.Set(key, param)
		}
	}
	if len(query) == 0 {
		return nil, false
	}
	return query, true
}

package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"walletfeed/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type ActivityPublisher interface {
	PublishActivity(ctx context.Context, wallet string, items []domain.ActivityItem) error
}

type FeedBuilder interface {
	Build(ctx context.Context, wallet string) Feed
}

type ExporterObserver interface {
	OnWalletExported(wallet string, items int)
	OnExportError(wallet string, err error)
}

type ExporterConfig struct {
	Interval time.Duration
}

// Exporter periodically publishes new feed items of every tracked wallet.
type Exporter struct {
	wallets   WalletStore
	feeds     FeedBuilder
	publisher ActivityPublisher
	observer  ExporterObserver
	cfg       ExporterConfig
}

func NewExporter(wallets WalletStore, feeds FeedBuilder, publisher ActivityPublisher, observer ExporterObserver, cfg ExporterConfig) (*Exporter, error) {
	if wallets == nil || feeds == nil || publisher == nil {
		return nil, errors.New("exporter dependencies must not be nil")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Exporter{wallets: wallets, feeds: feeds, publisher: publisher, observer: observer, cfg: cfg}, nil
}

func (e *Exporter) Run(ctx context.Context) error {
	for {
		if err := e.ExportOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("export round failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.cfg.Interval):
		}
	}
}

// ExportOnce runs a single round. Only a failure to list wallets is returned;
// per-wallet failures are logged and skipped.
func (e *Exporter) ExportOnce(ctx context.Context) error {
	ctx, span := otel.Tracer("walletfeed/exporter").Start(ctx, "exporter.round")
	defer span.End()

	wallets, err := e.wallets.ListTrackedWallets(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("export.wallets", len(wallets)))
	for _, wallet := range wallets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		published, err := e.exportWallet(ctx, wallet)
		if err != nil {
			slog.Warn("export wallet failed", "wallet", wallet.Address, "err", err)
			if e.observer != nil {
				e.observer.OnExportError(wallet.Address, err)
			}
			continue
		}
		if e.observer != nil {
			e.observer.OnWalletExported(wallet.Address, published)
		}
	}
	return nil
}

func (e *Exporter) exportWallet(ctx context.Context, wallet domain.TrackedWallet) (int, error) {
	feed := e.feeds.Build(ctx, wallet.Address)
	fresh := itemsAfter(feed.Items, wallet.ExportedThrough, wallet.ExportedHashes)
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := e.publisher.PublishActivity(ctx, wallet.Address, fresh); err != nil {
		return 0, err
	}
	cursor, hashes := advanceCursor(wallet.ExportedThrough, wallet.ExportedHashes, fresh)
	if err := e.wallets.SetExportedThrough(ctx, wallet.Address, cursor, hashes); err != nil {
		return 0, err
	}
	slog.Info("exported wallet activity", "wallet", wallet.Address, "items", len(fresh), "through", cursor)
	return len(fresh), nil
}

// itemsAfter returns items not yet published, oldest first. Feed items are
// newest first. Timestamps have second resolution, so an item at the cursor
// itself is new unless its hash was already published there.
func itemsAfter(items []domain.ActivityItem, cursor int64, exported []string) []domain.ActivityItem {
	seen := make(map[string]struct{}, len(exported))
	for _, hash := range exported {
		seen[strings.ToLower(hash)] = struct{}{}
	}
	out := make([]domain.ActivityItem, 0)
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if item.Timestamp < cursor {
			continue
		}
		if item.Timestamp == cursor {
			if _, ok := seen[strings.ToLower(item.Hash)]; ok {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

// advanceCursor moves the cursor to the newest published timestamp and
// returns the hashes published at it.
func advanceCursor(cursor int64, exported []string, published []domain.ActivityItem) (int64, []string) {
	next := cursor
	for _, item := range published {
		next = max(next, item.Timestamp)
	}
	var hashes []string
	if next == cursor {
		hashes = append(hashes, exported...)
	}
	for _, item := range published {
		if item.Timestamp == next {
			hashes = append(hashes, strings.ToLower(item.Hash))
		}
	}
	return next, hashes
}

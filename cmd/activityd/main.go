package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"walletfeed/internal/application"
	"walletfeed/internal/config"
	"walletfeed/internal/infrastructure/cache"
	"walletfeed/internal/infrastructure/explorer"
	"walletfeed/internal/infrastructure/logging"
	"walletfeed/internal/infrastructure/pricefeed"
	"walletfeed/internal/infrastructure/storage"
	"walletfeed/internal/infrastructure/telemetry"
	"walletfeed/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Service:    "activityd",
	})
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.Config{
		ServiceName:    "walletfeed-activityd",
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
		SampleRatio:    cfg.OtelSampleRatio,
	})
	if err != nil {
		slog.Warn("tracing init failed", "err", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	store, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		fatal("db error", err)
	}
	defer store.Close()

	explorerClient, err := explorer.NewClient(explorer.Config{
		BaseURL:           cfg.ExplorerURL,
		RequestsPerSecond: cfg.ExplorerRPS,
		Burst:             cfg.ExplorerBurst,
		Timeout:           cfg.ExplorerTimeout,
	})
	if err != nil {
		fatal("explorer client error", err)
	}

	var priceSource application.PriceSource = pricefeed.NewClient(cfg.PriceURL, 10*time.Second)
	shared, closeCache, err := cache.NewSharedPriceSource(priceSource, cache.Config{Addr: cfg.RedisAddr, TTL: cfg.PriceTTL})
	if err != nil {
		slog.Warn("redis price cache disabled", "addr", cfg.RedisAddr, "err", err)
	} else {
		priceSource = shared
		defer closeCache()
	}

	rules, err := application.LoadRules(cfg.RulesFile)
	if err != nil {
		fatal("rules error", err)
	}

	metrics := httpapi.NewMetrics()
	crawler := application.NewCrawler(explorerClient, metrics, application.CrawlerConfig{})
	prices := application.NewPriceService(priceSource, application.NewPriceCache(cfg.PriceTTL, time.Now))
	fetcher := application.NewFetcher(crawler, prices, application.FetcherConfig{})
	snapshots := application.NewCachedSnapshotSource(fetcher, cfg.SnapshotCacheTTL)
	feeds := application.NewFeedService(snapshots, application.NewClassifier(rules))
	wallets := application.NewWalletRegistry(store, time.Now)

	httpServer, err := httpapi.NewServer(feeds, wallets, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		fatal("http server error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if logWriter != nil {
		defer logWriter.Close()
		hangup := make(chan os.Signal, 1)
		signal.Notify(hangup, syscall.SIGHUP)
		defer signal.Stop(hangup)
		go logWriter.RotateOn(ctx, hangup)
	}

	slog.Info("activityd starting",
		"explorer", cfg.ExplorerURL,
		"db_driver", store.Driver(),
		"snapshot_cache_ttl", cfg.SnapshotCacheTTL.String(),
		"rules", len(rules),
	)
	if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server stopped", "err", err)
	}
	slog.Info("activityd stopped")
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

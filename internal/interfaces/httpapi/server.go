package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"walletfeed/internal/application"
	"walletfeed/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type FeedQuerier interface {
	Query(ctx context.Context, q application.FeedQuery) domain.FeedPage
}

type WalletTracker interface {
	Track(ctx context.Context, raw string) (string, error)
	Ready(ctx context.Context) error
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	feeds     FeedQuerier
	wallets   WalletTracker
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(feeds FeedQuerier, wallets WalletTracker, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if feeds == nil || wallets == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{feeds: feeds, wallets: wallets, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/version", s.handleVersion)
	r.Get("/transactions", s.handleTransactions)
	r.Post("/tracked-wallet", s.handleTrackWallet)
	return r
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("http server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.wallets.Ready(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleTransactions always answers 200 with the feed page shape. A missing
// wallet and an internal fault both produce an empty page.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query := parseFeedQuery(r)
	ctx, span := otel.Tracer("walletfeed/httpapi").Start(r.Context(), "http.transactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("wallet", query.Wallet),
		attribute.Int("page", query.Page),
		attribute.String("token", query.Token),
	)

	started := time.Now()
	page, ok := s.queryFeed(ctx, query)
	s.metrics.OnFeedServed(len(page.Txs), time.Since(started), !ok)
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) queryFeed(ctx context.Context, query application.FeedQuery) (page domain.FeedPage, ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			slog.Error("feed query panicked", "wallet", query.Wallet, "page", query.Page, "panic", fmt.Sprint(recovered))
			if query.Wallet == "" {
				page = domain.EmptyFeedPage("", 1)
			} else {
				page = domain.EmptyFeedPage(query.Wallet, query.Page)
			}
			ok = false
		}
	}()
	return s.feeds.Query(ctx, query), true
}

type trackWalletRequest struct {
	Wallet string `json:"wallet"`
}

func (s *Server) handleTrackWallet(w http.ResponseWriter, r *http.Request) {
	var body trackWalletRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	address, err := s.wallets.Track(r.Context(), body.Wallet)
	if err != nil {
		if errors.Is(err, application.ErrInvalidWallet) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("track wallet failed", "wallet", body.Wallet, "err", err)
		respondError(w, http.StatusInternalServerError, "track failed")
		return
	}
	s.metrics.OnWalletTracked()
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "wallet": address})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.Snapshot().WriteText(w)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func parseFeedQuery(r *http.Request) application.FeedQuery {
	values := r.URL.Query()
	token := firstParam(values.Get("token"), values.Get("tokenSymbol"), values.Get("tokenAddress"))
	return application.FeedQuery{
		Wallet: strings.TrimSpace(values.Get("wallet")),
		Page:   application.NormalizePage(values.Get("page")),
		Token:  strings.ToLower(strings.TrimSpace(token)),
	}
}

func firstParam(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

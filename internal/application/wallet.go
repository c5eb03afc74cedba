package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"walletfeed/internal/domain"
)

var ErrInvalidWallet = errors.New("wallet is required")

type WalletStore interface {
	UpsertTrackedWallet(ctx context.Context, address string, seenAt time.Time) error
	ListTrackedWallets(ctx context.Context) ([]domain.TrackedWallet, error)
	SetExportedThrough(ctx context.Context, address string, timestampMs int64, hashes []string) error
	Ping(ctx context.Context) error
}

// NormalizeWallet lower-cases the wallet. Any non-blank value is accepted,
// the same as the feed endpoint does.
func NormalizeWallet(raw string) (string, error) {
	address := strings.TrimSpace(raw)
	if address == "" {
		return "", ErrInvalidWallet
	}
	return strings.ToLower(address), nil
}

type WalletRegistry struct {
	store WalletStore
	now   func() time.Time
}

func NewWalletRegistry(store WalletStore, now func() time.Time) *WalletRegistry {
	if now == nil {
		now = time.Now
	}
	return &WalletRegistry{store: store, now: now}
}

// Track records that the wallet was viewed. Re-tracking refreshes last_seen_at
// and keeps the export cursor.
func (r *WalletRegistry) Track(ctx context.Context, raw string) (string, error) {
	address, err := NormalizeWallet(raw)
	if err != nil {
		return "", err
	}
	if err := r.store.UpsertTrackedWallet(ctx, address, r.now().UTC()); err != nil {
		return "", err
	}
	return address, nil
}

func (r *WalletRegistry) Ready(ctx context.Context) error {
	return r.store.Ping(ctx)
}

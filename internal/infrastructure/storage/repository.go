package storage

import (
	"context"
	"fmt"
	"time"

	"walletfeed/internal/domain"
	"walletfeed/internal/infrastructure/mysql"
	"walletfeed/internal/infrastructure/sqlite"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type walletRepository interface {
	UpsertTrackedWallet(ctx context.Context, address string, seenAt time.Time) error
	ListTrackedWallets(ctx context.Context) ([]domain.TrackedWallet, error)
	SetExportedThrough(ctx context.Context, address string, timestampMs int64, hashes []string) error
	Ping(ctx context.Context) error
	Close() error
}

// Repository is the tracked-wallet store behind whichever driver is configured.
type Repository struct {
	driver string
	repo   walletRepository
}

func Open(driver, dsn string) (*Repository, error) {
	var (
		repo walletRepository
		err  error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		repo, err = sqlite.NewRepository(dsn)
	case DriverMySQL:
		repo, err = mysql.NewRepository(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return &Repository{driver: driver, repo: repo}, nil
}

func (r *Repository) Driver() string {
	return r.driver
}

func (r *Repository) UpsertTrackedWallet(ctx context.Context, address string, seenAt time.Time) error {
	return r.repo.UpsertTrackedWallet(ctx, address, seenAt)
}

func (r *Repository) ListTrackedWallets(ctx context.Context) ([]domain.TrackedWallet, error) {
	return r.repo.ListTrackedWallets(ctx)
}

func (r *Repository) SetExportedThrough(ctx context.Context, address string, timestampMs int64, hashes []string) error {
	return r.repo.SetExportedThrough(ctx, address, timestampMs, hashes)
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.repo.Ping(ctx)
}

func (r *Repository) Close() error {
	return r.repo.Close()
}

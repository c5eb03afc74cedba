package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletfeed/internal/domain"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// single writer avoids SQLITE_BUSY between the API and exporter goroutines
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tracked_wallets (
			address TEXT PRIMARY KEY,
			last_seen_at INTEGER NOT NULL,
			exported_through INTEGER NOT NULL DEFAULT 0,
			exported_hashes TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return ensureColumn(db, "tracked_wallets", "exported_hashes", "TEXT NOT NULL DEFAULT ''")
}

func ensureColumn(db *sql.DB, table, column, definition string) error {
	var count int
	row := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

func (r *Repository) UpsertTrackedWallet(ctx context.Context, address string, seenAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `INSERT INTO tracked_wallets (address, last_seen_at) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET last_seen_at = excluded.last_seen_at`, address, seenAt.UnixMilli())
	return err
}

func (r *Repository) ListTrackedWallets(ctx context.Context) ([]domain.TrackedWallet, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT address, last_seen_at, exported_through, exported_hashes FROM tracked_wallets ORDER BY address ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.TrackedWallet
	for rows.Next() {
		var wallet domain.TrackedWallet
		var (
			seenMs int64
			hashes string
		)
		if err := rows.Scan(&wallet.Address, &seenMs, &wallet.ExportedThrough, &hashes); err != nil {
			return nil, err
		}
		wallet.LastSeenAt = time.UnixMilli(seenMs).UTC()
		wallet.ExportedHashes = splitHashes(hashes)
		wallets = append(wallets, wallet)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return wallets, nil
}

func (r *Repository) SetExportedThrough(ctx context.Context, address string, timestampMs int64, hashes []string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE tracked_wallets SET exported_through = ?, exported_hashes = ? WHERE address = ?`,
		timestampMs, strings.Join(hashes, ","), address)
	return err
}

func splitHashes(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletfeed/internal/domain"

	driver "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	// last_seen_at is scanned straight into time.Time
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tracked_wallets (
			address VARCHAR(42) NOT NULL,
			last_seen_at DATETIME(3) NOT NULL,
			exported_through BIGINT NOT NULL DEFAULT 0,
			exported_hashes TEXT NULL,
			PRIMARY KEY (address)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	if err := ensureColumn(db, "tracked_wallets", "exported_through", "BIGINT NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	return ensureColumn(db, "tracked_wallets", "exported_hashes", "TEXT NULL")
}

func ensureColumn(db *sql.DB, table, column, definition string) error {
	var count int
	row := db.QueryRow(
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table,
		column,
	)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	_, err := db.Exec(stmt)
	return err
}

func (r *Repository) UpsertTrackedWallet(ctx context.Context, address string, seenAt time.Time) error {
	ctx, span := startDBSpan(ctx, "mysql.UpsertTrackedWallet", attribute.String("wallet", address))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `INSERT INTO tracked_wallets (address, last_seen_at) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE last_seen_at = VALUES(last_seen_at)`, address, seenAt.UTC())
	recordError(span, err)
	return err
}

func (r *Repository) ListTrackedWallets(ctx context.Context) ([]domain.TrackedWallet, error) {
	ctx, span := startDBSpan(ctx, "mysql.ListTrackedWallets")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT address, last_seen_at, exported_through, exported_hashes FROM tracked_wallets ORDER BY address ASC`)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.TrackedWallet
	for rows.Next() {
		var (
			wallet domain.TrackedWallet
			hashes sql.NullString
		)
		if err := rows.Scan(&wallet.Address, &wallet.LastSeenAt, &wallet.ExportedThrough, &hashes); err != nil {
			recordError(span, err)
			return nil, err
		}
		if hashes.String != "" {
			wallet.ExportedHashes = strings.Split(hashes.String, ",")
		}
		wallets = append(wallets, wallet)
	}
	if err := rows.Err(); err != nil {
		recordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("wallet.count", len(wallets)))
	return wallets, nil
}

func (r *Repository) SetExportedThrough(ctx context.Context, address string, timestampMs int64, hashes []string) error {
	ctx, span := startDBSpan(ctx, "mysql.SetExportedThrough",
		attribute.String("wallet", address),
		attribute.Int64("export.through", timestampMs),
	)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE tracked_wallets SET exported_through = ?, exported_hashes = ? WHERE address = ?`,
		timestampMs, strings.Join(hashes, ","), address)
	recordError(span, err)
	return err
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("walletfeed/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

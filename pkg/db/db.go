// Package db owns the Postgres pool behind the web front-end's session tables.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"fitverse/pkg/db/migrations"
)

// DefaultQueryTimeout bounds every statement issued through DB.
const DefaultQueryTimeout = 5 * time.Second

// DB is a pgx pool whose helpers each run under their own deadline.
type DB struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Option customises Open.
type Option func(*pgxpool.Config, *DB)

// WithQueryTimeout replaces DefaultQueryTimeout. Non-positive values are ignored.
func WithQueryTimeout(d time.Duration) Option {
	return func(_ *pgxpool.Config, db *DB) {
		if d > 0 {
			db.timeout = d
		}
	}
}

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(cfg *pgxpool.Config, _ *DB) {
		if n > 0 {
			cfg.MaxConns = n
		}
	}
}

// WithApplicationName tags connections in pg_stat_activity.
func WithApplicationName(name string) Option {
	return func(cfg *pgxpool.Config, _ *DB) {
		if name != "" {
			cfg.ConnConfig.RuntimeParams["application_name"] = name
		}
	}
}

// Open connects to dsn and verifies the server answers.
func Open(ctx context.Context, dsn string, opts ...Option) (*DB, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	// goose shares the DSN and only speaks the simple protocol reliably.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	db := &DB{timeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(cfg, db)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	db.pool = pool
	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Close releases every pooled connection.
func (db *DB) Close() {
	if db != nil && db.pool != nil {
		db.pool.Close()
	}
}

// Migrate brings the schema up to date with pkg/db/migrations.
func (db *DB) Migrate(ctx context.Context) error {
	if db == nil || db.pool == nil {
		return errors.New("nil database")
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	sqlDB, err := goose.OpenDBWithDriver("pgx", db.pool.Config().ConnConfig.ConnString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping is the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.deadline(ctx)
	defer cancel()
	return db.pool.Ping(ctx)
}

// Exec runs a statement that returns no rows.
func (db *DB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	ctx, cancel := db.deadline(ctx)
	defer cancel()
	return db.pool.Exec(ctx, query, args...)
}

// Get scans exactly one row into dest. No match satisfies IsNoRows.
func (db *DB) Get(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := db.deadline(ctx)
	defer cancel()
	return pgxscan.Get(ctx, db.pool, dest, query, args...)
}

// Select scans every row into the slice dest.
func (db *DB) Select(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := db.deadline(ctx)
	defer cancel()
	return pgxscan.Select(ctx, db.pool, dest, query, args...)
}

// Tx runs fn in a transaction, committing when fn returns nil. The deadline covers the whole
// transaction.
func (db *DB) Tx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := db.deadline(ctx)
	defer cancel()
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// IsNoRows reports whether err means a query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err)
}

func (db *DB) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.timeout)
}

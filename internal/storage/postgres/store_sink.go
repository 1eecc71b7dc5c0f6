// Package postgres provides the Postgres-backed store record sink.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SinkConfig controls the Postgres connection pool used for store rows.
type SinkConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink writes store records into one Postgres table.
type Sink struct {
	pool  execCloser
	table string
}

// NewSink creates a Postgres-backed Sink using the provided config.
func NewSink(ctx context.Context, cfg SinkConfig) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	if !validTableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Sink{pool: pool, table: cfg.Table}, nil
}

// NewSinkWithPool constructs a sink from an existing pool (primarily for testing).
func NewSinkWithPool(pool execCloser, table string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureTable creates the run's table if it does not exist yet.
func (s *Sink) EnsureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Insert writes one record. Inserts are independent, so concurrent callers are safe.
func (s *Sink) Insert(ctx context.Context, rec store.Record) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	if _, err := s.pool.Exec(ctx, insertSQL(s.table), rec.Values()...); err != nil {
		return fmt.Errorf("insert store %s: %w", rec.URL, err)
	}
	return nil
}

func createTableSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid bigserial PRIMARY KEY", pgx.Identifier{table}.Sanitize())
	for _, col := range store.Columns {
		fmt.Fprintf(&b, ",\n\t%s varchar(%d) DEFAULT '%s'", col, store.ColumnWidth(col), store.NotAvailable)
	}
	b.WriteString("\n)")
	return b.String()
}

func insertSQL(table string) string {
	placeholders := make([]string, len(store.Columns))
	for i := range store.Columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(store.Columns, ", "),
		strings.Join(placeholders, ","),
	)
}

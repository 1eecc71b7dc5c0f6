// Package mysql provides the MySQL-backed store record sink.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	// Registers the "mysql" database/sql driver.
	_ "github.com/go-sql-driver/mysql"

	"github.com/JakeFAU/store-locator-crawler/internal/store"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SinkConfig controls the MySQL connection pool used for store rows.
type SinkConfig struct {
	DSN             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// Sink writes store records into one MySQL table.
type Sink struct {
	db    *sql.DB
	table string
}

// NewSink opens a MySQL pool and verifies connectivity.
func NewSink(ctx context.Context, cfg SinkConfig) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	if !validTableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return &Sink{db: db, table: cfg.Table}, nil
}

// NewSinkWithDB wraps an existing *sql.DB (primarily for testing).
func NewSinkWithDB(db *sql.DB, table string) (*Sink, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{db: db, table: table}, nil
}

// Close releases the pool.
func (s *Sink) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

// EnsureTable creates the run's table if it does not exist yet.
func (s *Sink) EnsureTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Insert writes one record.
func (s *Sink) Insert(ctx context.Context, rec store.Record) error {
	if _, err := s.db.ExecContext(ctx, insertSQL(s.table), rec.Values()...); err != nil {
		return fmt.Errorf("insert store %s: %w", rec.URL, err)
	}
	return nil
}

func createTableSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS `%s` (\n\tid int AUTO_INCREMENT PRIMARY KEY", table)
	for _, col := range store.Columns {
		fmt.Fprintf(&b, ",\n\t%s varchar(%d) DEFAULT '%s'", col, store.ColumnWidth(col), store.NotAvailable)
	}
	b.WriteString("\n)")
	return b.String()
}

func insertSQL(table string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(store.Columns)), ",")
	return fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s)", table, strings.Join(store.Columns, ", "), placeholders)
}

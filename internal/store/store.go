// File path: internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a pooled sqlx.DB connection to the SQLite inventory database.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided path.
// The schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store path required")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve store path: %w", err)
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", abs, busy)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying sqlx.DB for the query executor and catalog.
func (s *Store) DB() *sqlx.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialised")
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// ColumnInfo describes one column of an inventory table as reported by the
// live schema.
type ColumnInfo struct {
	Name string `db:"name"`
	Type string `db:"type"`
}

// TableColumns introspects the schema for a single table. Unknown tables
// yield an empty slice, not an error.
func (s *Store) TableColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	var cols []ColumnInfo
	if err := s.db.SelectContext(ctx, &cols, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	return cols, nil
}

// Document is a retrievable knowledge snippet (inventory notes, incident
// reports) used by the free-text answer route.
type Document struct {
	ID      int64  `db:"id" json:"id"`
	Title   string `db:"title" json:"title"`
	Kind    string `db:"kind" json:"kind"`
	Content string `db:"content" json:"content"`
}

// Documents loads all retrievable documents.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store not initialised")
	}
	var docs []Document
	if err := s.db.SelectContext(ctx, &docs, "SELECT id, title, kind, content FROM documents ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}

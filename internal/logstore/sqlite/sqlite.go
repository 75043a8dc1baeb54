// Package sqlite opens the embedded single-file LogStore.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"skrining/internal/logstore/sqlstore"
)

// Store owns its database handle.
type Store struct {
	*sqlstore.Store
	db *sql.DB
}

// Open creates the parent directory and schema as needed.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if path == "" {
		path = "logs.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	s := sqlstore.New(db, sqlstore.SQLite, table)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: s, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Package sqlite stores segments in a SQLite database file using the pure Go
// modernc driver, so exchange runs can be bundled as one file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"atfxcore/internal/blob/core"
	"atfxcore/internal/infra/persistence/sqltable"
)

// Dialect is the SQLite flavour of the segments table.
var Dialect = sqltable.Dialect{
	Driver:      core.DriverSQLite,
	Placeholder: func(int) string { return "?" },
	BlobType:    "BLOB",
}

// Store is a SQLite-backed segment store.
type Store struct {
	*sqltable.Store
	path string
}

// New opens (or creates) the database at path.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "segments.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time keeps SQLITE_BUSY out of concurrent appends
	db.SetMaxOpenConns(1)
	table, err := sqltable.Open(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: table, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.DB().Close() }

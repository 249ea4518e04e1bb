// Package postgres stores segments in a Postgres table through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"atfxcore/internal/blob/core"
	"atfxcore/internal/infra/persistence/sqltable"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/atfxcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect is the Postgres flavour of the segments table.
var Dialect = sqltable.Dialect{
	Driver:      core.DriverPostgres,
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	BlobType:    "BYTEA",
}

// Store is a Postgres-backed segment store.
type Store struct {
	*sqltable.Store
}

// New opens a Postgres-backed store using dsn (falls back to defaultDSN),
// pings it and ensures the segments table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	store, err := NewWithDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	table, err := sqltable.Open(ctx, db, Dialect)
	if err != nil {
		return nil, err
	}
	return &Store{Store: table}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.DB().Close() }

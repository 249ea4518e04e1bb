package blob

import (
	"context"

	"atfxcore/internal/infra/persistence/postgres"
	"atfxcore/internal/infra/persistence/sqlite"
)

// NewSQLite opens a SQLite database file holding segments as rows.
func NewSQLite(ctx context.Context, path string) (Store, error) {
	return sqlite.New(ctx, path)
}

// NewPostgres opens a Postgres database holding segments as rows.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	return postgres.New(ctx, dsn)
}

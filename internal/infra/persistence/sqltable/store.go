// Package sqltable keeps segments as rows of a single "segments" table. The
// sqlite and postgres packages supply the dialect and the database handle.
package sqltable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"atfxcore/internal/blob/core"
)

// Dialect captures the few statement differences between SQL engines.
type Dialect struct {
	Driver core.Driver
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// BlobType is the column type used for segment bytes.
	BlobType string
}

// Store implements core.Store on a *sql.DB. Append is a read-modify-write
// inside a transaction, serialized per Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
}

// Open wraps db and creates the segments table when missing.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS segments (
		name TEXT PRIMARY KEY,
		size BIGINT NOT NULL,
		data %s NOT NULL,
		modified BIGINT NOT NULL
	)`, dialect.BlobType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure segments table: %w", err)
	}
	return s, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Driver() core.Driver { return s.dialect.Driver }

func (s *Store) ph(n int) string { return s.dialect.Placeholder(n) }

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) loadData(ctx context.Context, q queryer, name string) ([]byte, error) {
	var data []byte
	err := q.QueryRowContext(ctx, `SELECT data FROM segments WHERE name = `+s.ph(1), name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %s: %w", name, core.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) Stat(ctx context.Context, name string) (core.Info, error) {
	var (
		size     int64
		modified int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT size, modified FROM segments WHERE name = `+s.ph(1), name).Scan(&size, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Info{}, fmt.Errorf("segment %s: %w", name, core.ErrNotExist)
	}
	if err != nil {
		return core.Info{}, fmt.Errorf("segment %s: %w", name, err)
	}
	return core.Info{Name: name, Size: size, LastModified: time.Unix(0, modified).UTC()}, nil
}

func (s *Store) ReadAt(ctx context.Context, name string, p []byte, off int64) (int, error) {
	data, err := s.loadData(ctx, s.db, name)
	if err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, fmt.Errorf("segment %s: negative offset %d", name, off)
	}
	if off >= int64(len(data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Store) Append(ctx context.Context, name string, data []byte) (off int64, retErr error) {
	if !core.ValidName(name) {
		return 0, fmt.Errorf("invalid segment name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	current, err := s.loadData(ctx, tx, name)
	if err != nil && !errors.Is(err, core.ErrNotExist) {
		return 0, err
	}
	off = int64(len(current))
	body := make([]byte, 0, len(current)+len(data))
	body = append(append(body, current...), data...)
	stmt := fmt.Sprintf(`INSERT INTO segments (name, size, data, modified) VALUES (%s, %s, %s, %s) ON CONFLICT (name) DO UPDATE SET size = excluded.size, data = excluded.data, modified = excluded.modified`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	if _, err := tx.ExecContext(ctx, stmt, name, int64(len(body)), body, time.Now().UnixNano()); err != nil {
		return 0, fmt.Errorf("upsert segment %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return off, nil
}

func (s *Store) Delete(ctx context.Context, name string) (bool, error) {
	if _, err := s.Stat(ctx, name); err != nil {
		if errors.Is(err, core.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM segments WHERE name = `+s.ph(1), name); err != nil {
		return false, fmt.Errorf("delete segment %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, size, modified FROM segments`)
	if err != nil {
		return nil, fmt.Errorf("select segments: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var infos []core.Info
	for rows.Next() {
		var (
			info     core.Info
			modified int64
		)
		if err := rows.Scan(&info.Name, &info.Size, &modified); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if strings.HasPrefix(info.Name, prefix) {
			info.LastModified = time.Unix(0, modified).UTC()
			infos = append(infos, info)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

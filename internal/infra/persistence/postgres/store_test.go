package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"

	"atfxcore/internal/blob/core"
	"atfxcore/internal/infra/persistence/postgres/testutil"
)

func TestPostgresSegmentsOnStubDriver(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	store, err := NewWithDB(ctx, db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	if len(conn.Created) != 1 || !strings.Contains(conn.Created[0], "BYTEA") {
		t.Fatalf("segments table not created: %v", conn.Created)
	}
	if off, err := store.Append(ctx, "m_1.btf", []byte{9, 8, 7}); err != nil || off != 0 {
		t.Fatalf("append = %d %v", off, err)
	}
	if off, err := store.Append(ctx, "m_1.btf", []byte{6}); err != nil || off != 3 {
		t.Fatalf("append = %d %v", off, err)
	}
	if !strings.Contains(conn.Execs[len(conn.Execs)-1], "$4") {
		t.Fatalf("postgres placeholders expected, got %s", conn.Execs[len(conn.Execs)-1])
	}
	info, err := store.Stat(ctx, "m_1.btf")
	if err != nil || info.Size != 4 {
		t.Fatalf("stat = %+v %v", info, err)
	}
	buf := make([]byte, 2)
	if n, err := store.ReadAt(ctx, "m_1.btf", buf, 1); err != nil || n != 2 || buf[0] != 8 {
		t.Fatalf("ReadAt = %d %v %v", n, buf, err)
	}
	if _, err := store.ReadAt(ctx, "m_1.btf", buf, 3); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if _, err := store.Stat(ctx, "missing.btf"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if list, err := store.List(ctx, "m_"); err != nil || len(list) != 1 {
		t.Fatalf("list = %+v %v", list, err)
	}
	if ok, err := store.Delete(ctx, "m_1.btf"); err != nil || !ok {
		t.Fatalf("delete = %v %v", ok, err)
	}
	if store.Driver() != core.DriverPostgres {
		t.Fatalf("unexpected driver")
	}
}

func TestPostgresFailures(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	if _, err := NewWithDB(ctx, db); err == nil {
		t.Fatalf("expected ping failure")
	}
	db, conn = testutil.NewStubDB()
	store, err := NewWithDB(ctx, db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	conn.FailBegin = true
	if _, err := store.Append(ctx, "m_1.btf", []byte{1}); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailBegin = false
	conn.FailCommit = true
	if _, err := store.Append(ctx, "m_1.btf", []byte{1}); err == nil {
		t.Fatalf("expected commit failure")
	}
}

func TestNewUsesPgxDriver(t *testing.T) {
	var gotDriver string
	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		gotDriver = driver
		db, _ := testutil.NewStubDB()
		return db, nil
	}
	t.Cleanup(func() { sqlOpen = orig })
	store, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if gotDriver != "pgx" {
		t.Fatalf("driver = %s", gotDriver)
	}
	_ = store.Close()
}

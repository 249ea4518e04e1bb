package testutil

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
)

const upsert = "INSERT INTO segments (name, size, data, modified) VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO UPDATE SET size = excluded.size"

func put(t *testing.T, conn *StubConn, name, data string) {
	t.Helper()
	args := []driver.NamedValue{{Value: name}, {Value: int64(len(data))}, {Value: []byte(data)}, {Value: int64(1)}}
	if _, err := conn.ExecContext(context.Background(), upsert, args); err != nil {
		t.Fatalf("insert %s: %v", name, err)
	}
}

func TestStubSegmentsTable(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	put(t, conn, "b", "b1")
	put(t, conn, "a", "a1")
	put(t, conn, "a", "a22")
	if len(conn.Segments) != 2 || conn.Segments["a"].Size != 3 {
		t.Fatalf("upsert must replace, got %v", conn.Segments)
	}

	rows, err := conn.QueryContext(ctx, "SELECT data FROM segments WHERE name = $1", []driver.NamedValue{{Value: "a"}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	dest := make([]driver.Value, 1)
	if err := rows.Next(dest); err != nil || string(dest[0].([]byte)) != "a22" {
		t.Fatalf("row = %v, %v", dest, err)
	}
	if err := rows.Next(dest); err == nil {
		t.Fatalf("predicate must filter other rows")
	}

	rows, err = conn.QueryContext(ctx, "SELECT name, size, modified FROM segments", nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	all := make([]driver.Value, 3)
	if err := rows.Next(all); err != nil || all[0] != "a" {
		t.Fatalf("list must be ordered by name, got %v, %v", all, err)
	}

	if _, err := conn.ExecContext(ctx, "DELETE FROM segments WHERE name = $1", []driver.NamedValue{{Value: "a"}}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := conn.Segments["a"]; ok {
		t.Fatalf("delete did not remove row")
	}
}

func TestStubRejectsUnknownStatements(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	if _, err := conn.ExecContext(ctx, "UPDATE segments SET size = 0", nil); !errors.Is(err, errUnknown) {
		t.Fatalf("exec: %v", err)
	}
	if _, err := conn.QueryContext(ctx, "SELECT 1", nil); !errors.Is(err, errUnknown) {
		t.Fatalf("query: %v", err)
	}
	if _, err := conn.QueryContext(ctx, "SELECT owner FROM segments", nil); err != nil {
		t.Fatalf("empty table has no rows to reject: %v", err)
	}
}

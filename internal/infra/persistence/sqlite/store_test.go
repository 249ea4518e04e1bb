package sqlite

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"atfxcore/internal/blob/core"
)

func newStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := New(context.Background(), path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteSegmentsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "segments.db")
	store := newStore(t, path)
	if off, err := store.Append(ctx, "m_1.btf", []byte{1, 2, 3}); err != nil || off != 0 {
		t.Fatalf("append = %d %v", off, err)
	}
	if off, err := store.Append(ctx, "m_1.btf", []byte{4}); err != nil || off != 3 {
		t.Fatalf("append = %d %v", off, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened := newStore(t, path)
	info, err := reopened.Stat(ctx, "m_1.btf")
	if err != nil || info.Size != 4 {
		t.Fatalf("stat after reopen = %+v %v", info, err)
	}
	buf := make([]byte, 2)
	if n, err := reopened.ReadAt(ctx, "m_1.btf", buf, 2); err != nil || n != 2 || buf[0] != 3 || buf[1] != 4 {
		t.Fatalf("ReadAt = %d %v %v", n, buf, err)
	}
	if _, err := reopened.ReadAt(ctx, "m_1.btf", buf, 3); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if reopened.Driver() != core.DriverSQLite || reopened.Path() != path {
		t.Fatalf("unexpected driver or path")
	}
}

func TestSQLiteSegmentsListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, filepath.Join(t.TempDir(), "segments.db"))
	for _, name := range []string{"m_2.btf", "m_1.btf", "other_1.btf"} {
		if _, err := store.Append(ctx, name, []byte("x")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	list, err := store.List(ctx, "m_")
	if err != nil || len(list) != 2 || list[0].Name != "m_1.btf" {
		t.Fatalf("list = %+v %v", list, err)
	}
	if ok, err := store.Delete(ctx, "m_1.btf"); err != nil || !ok {
		t.Fatalf("delete = %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "m_1.btf"); err != nil || ok {
		t.Fatalf("second delete = %v %v", ok, err)
	}
	if _, err := store.Stat(ctx, "m_1.btf"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

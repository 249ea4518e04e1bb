package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"atfxcore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStoreAppendStatReadAt(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	off, err := store.Append(ctx, "meas_1.btf", []byte{1, 2, 3})
	if err != nil || off != 0 {
		t.Fatalf("append = %d %v", off, err)
	}
	off, err = store.Append(ctx, "meas_1.btf", []byte{4, 5})
	if err != nil || off != 3 {
		t.Fatalf("append = %d %v", off, err)
	}
	raw, err := os.ReadFile(filepath.Join(store.Root(), "meas_1.btf"))
	if err != nil || len(raw) != 5 {
		t.Fatalf("segment must be a plain file: %v %v", raw, err)
	}
	info, err := store.Stat(ctx, "meas_1.btf")
	if err != nil || info.Size != 5 || info.Name != "meas_1.btf" {
		t.Fatalf("stat = %+v %v", info, err)
	}
	buf := make([]byte, 2)
	if n, err := store.ReadAt(ctx, "meas_1.btf", buf, 3); err != nil || n != 2 || buf[0] != 4 {
		t.Fatalf("ReadAt = %d %v %v", n, buf, err)
	}
	if _, err := store.ReadAt(ctx, "meas_1.btf", make([]byte, 4), 3); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF on short read, got %v", err)
	}
}

func TestStoreMissingSegment(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Stat(ctx, "nope.btf"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := store.ReadAt(ctx, "nope.btf", make([]byte, 1), 0); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if ok, err := store.Delete(ctx, "nope.btf"); err != nil || ok {
		t.Fatalf("delete missing = %v %v", ok, err)
	}
}

func TestStorePathTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, name := range []string{"../escape.btf", "/abs.btf", "", "a/../../b"} {
		if _, err := store.Append(ctx, name, []byte("x")); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, name := range []string{"run_2.btf", "run_1.btf", "run_string_1.btf", "sub/run_1.btf", "other_1.btf"} {
		if _, err := store.Append(ctx, name, []byte("x")); err != nil {
			t.Fatalf("append %s: %v", name, err)
		}
	}
	list, err := store.List(ctx, "run_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"run_1.btf", "run_2.btf", "run_string_1.btf"}
	if len(list) != len(want) {
		t.Fatalf("list = %+v", list)
	}
	for i, w := range want {
		if list[i].Name != w {
			t.Fatalf("list[%d] = %s, want %s", i, list[i].Name, w)
		}
	}
	if sub, _ := store.List(ctx, "sub/"); len(sub) != 1 {
		t.Fatalf("nested segments must be listed with slash names, got %+v", sub)
	}
	if ok, err := store.Delete(ctx, "run_1.btf"); err != nil || !ok {
		t.Fatalf("delete = %v %v", ok, err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver")
	}
}

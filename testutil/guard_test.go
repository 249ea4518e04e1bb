package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type captureT struct {
	msg string
}

func (c *captureT) Fatalf(format string, args ...any) { c.msg = fmt.Sprintf(format, args...) }

func writeGo(t *testing.T, path, src string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		in       string
		internal bool
		infra    bool
	}{
		{"atfxcore/internal/store", true, false},
		{"atfxcore/internal/infra/s3", true, true},
		{"atfxcore/internal/infra", true, true},
		{"atfxcore/pkg/value", false, false},
		{"atfxcore/internal/infrastructure", true, false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.internal {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.internal)
		}
		if got := InfraImportForbidden(c.in); got != c.infra {
			t.Fatalf("InfraImportForbidden(%q)=%v want %v", c.in, got, c.infra)
		}
	}
}

func TestImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, filepath.Join(dir, "a.go"), "package a\nimport \"fmt\"\nvar _ = fmt.Sprint\n")
	writeGo(t, filepath.Join(dir, "a_test.go"), "package a\nimport _ \"x/internal/y\"\n")
	writeGo(t, filepath.Join(dir, "sub", "b.go"), "package sub\nimport _ \"x/internal/y\"\n")
	writeGo(t, filepath.Join(dir, "_skip", "c.go"), "package c\nimport _ \"x/internal/z\"\n")

	flat, err := importViolations(dir, false, InternalImportForbidden)
	if err != nil || len(flat) != 0 {
		t.Fatalf("flat scan = %v, %v", flat, err)
	}
	deep, err := importViolations(dir, true, InternalImportForbidden)
	if err != nil {
		t.Fatalf("deep scan: %v", err)
	}
	if len(deep) != 1 || !strings.Contains(deep[0], "sub/b.go") {
		t.Fatalf("deep scan = %v", deep)
	}

	var c captureT
	failIfViolations(&c, "reason", deep)
	if !strings.Contains(c.msg, "reason") || !strings.Contains(c.msg, "x/internal/y") {
		t.Fatalf("message = %q", c.msg)
	}
	c = captureT{}
	failIfViolations(&c, "reason", nil)
	if c.msg != "" {
		t.Fatalf("no violations must not fail: %q", c.msg)
	}
}

func TestImportViolationsParseError(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, filepath.Join(dir, "bad.go"), "package\n")
	if _, err := importViolations(dir, false, InternalImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRepositoryBoundaries(t *testing.T) {
	AssertNoImportsUnder(t, "../pkg", InternalImportForbidden, "pkg must stay importable by other modules")
	for _, dir := range []string{"../internal/store", "../internal/codec", "../internal/schema", "../internal/config", "../cmd"} {
		AssertNoImportsUnder(t, dir, InfraImportForbidden, "backends are reached through internal/blob")
	}
}

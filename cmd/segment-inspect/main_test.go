package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"atfxcore/internal/blob"
	"atfxcore/internal/codec"
	"atfxcore/pkg/value"
)

// seed writes a double sequence into a fresh fs segment root and points the
// command's configuration at it.
func seed(t *testing.T) codec.Component {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ATFXCORE_SEGMENT_DRIVER", "fs")
	t.Setenv("ATFXCORE_SEGMENT_ROOT", dir)
	t.Setenv("ATFXCORE_LOG_BACKEND", "none")
	store, err := blob.NewFilesystem(dir)
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	comps, err := codec.New(store).WriteValues(context.Background(), value.Must(value.DSDouble, []float64{1.5, 2.5, 4}))
	if err != nil {
		t.Fatalf("write values: %v", err)
	}
	if len(comps) != 1 {
		t.Fatalf("components = %d", len(comps))
	}
	return comps[0]
}

func TestCLIDecodesComponent(t *testing.T) {
	comp := seed(t)
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-config", "", "-segment", comp.File, "-length", "3"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if got := stdout.String(); !strings.Contains(got, "[3]: 1.5,2.5,4") {
		t.Fatalf("output = %q", got)
	}

	stdout.Reset()
	code = cli([]string{"-config", "", "-segment", comp.File, "-length", "2", "-offset", "8", "-as", "ds_float", "-sep", ";"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if got := stdout.String(); !strings.Contains(got, "DS_FLOAT[2]: 2.5;4") {
		t.Fatalf("output = %q", got)
	}
}

func TestCLIListsSegments(t *testing.T) {
	comp := seed(t)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-config", "", "-list"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if got := stdout.String(); !strings.Contains(got, comp.File+"\t24") {
		t.Fatalf("output = %q", got)
	}
}

func TestCLIFailures(t *testing.T) {
	seed(t)
	cases := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"bad flag", []string{"-nope"}, 2, ""},
		{"no segment", []string{"-config", "", "-length", "1"}, 1, "-segment is required"},
		{"no length", []string{"-config", "", "-segment", "data_1.btf"}, 1, "-length must be positive"},
		{"bad type", []string{"-config", "", "-segment", "data_1.btf", "-length", "1", "-type", "float128"}, 1, "unknown type spec"},
		{"bad as", []string{"-config", "", "-segment", "data_1.btf", "-length", "1", "-as", "DS_NOPE"}, 1, "unknown data type"},
		{"missing segment", []string{"-config", "", "-segment", "other_1.btf", "-length", "1"}, 1, "other_1.btf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := cli(tc.args, &stdout, &stderr); code != tc.code {
				t.Fatalf("exit %d, want %d: %s", code, tc.code, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.want) {
				t.Fatalf("stderr = %q, want %q", stderr.String(), tc.want)
			}
		})
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	main()
	if len(codes) != 1 {
		t.Fatalf("exit codes = %v", codes)
	}
}

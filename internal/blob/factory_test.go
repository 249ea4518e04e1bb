package blob

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  Config
		want Driver
	}{
		{"default is fs", Config{Root: dir}, DriverFilesystem},
		{"memory", Config{Driver: DriverMemory}, DriverMemory},
		{"sqlite", Config{Driver: DriverSQLite, SQLitePath: filepath.Join(dir, "seg.db")}, DriverSQLite},
		{"s3", Config{Driver: DriverS3, S3: S3Config{Bucket: "b", AccessKeyID: "AKIA", SecretAccessKey: "SECRET"}}, DriverS3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if store.Driver() != tc.want {
				t.Fatalf("driver = %s, want %s", store.Driver(), tc.want)
			}
		})
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestMockS3AppendThroughInterface(t *testing.T) {
	ctx := context.Background()
	var store Store = NewMockS3ForTests()
	if _, err := store.Append(ctx, "a_1.btf", []byte("abc")); err != nil {
		t.Fatalf("append: %v", err)
	}
	info, err := store.Stat(ctx, "a_1.btf")
	if err != nil || info.Size != 3 {
		t.Fatalf("stat = %+v %v", info, err)
	}
}

// Package core defines the segment storage contract shared by the codec and
// the concrete backends under internal/infra.
package core

import (
	"context"
	"io/fs"
	"strings"
	"time"
)

// Driver identifies a concrete segment storage backend implementation.
type Driver string

const (
	// DriverFilesystem stores segments as plain files below a root directory.
	DriverFilesystem Driver = "fs" // local filesystem (default)
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverMemory keeps segments in process memory, used by tests.
	DriverMemory Driver = "memory"
	// DriverSQLite stores segments as rows of a SQLite table.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores segments as rows of a Postgres table.
	DriverPostgres Driver = "postgres"
)

// Info describes a stored segment.
type Info struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Store is an append-only byte container addressed by segment name. ReadAt
// follows io.ReaderAt: a short read returns io.EOF alongside the byte count.
type Store interface {
	Stat(ctx context.Context, name string) (Info, error)
	ReadAt(ctx context.Context, name string, p []byte, off int64) (int, error)
	// Append writes data at the end of the named segment, creating it when
	// missing, and returns the offset the data starts at.
	Append(ctx context.Context, name string, data []byte) (int64, error)
	// Delete removes a segment. Returns (false, nil) if not found.
	Delete(ctx context.Context, name string) (bool, error)
	// List returns segments whose name has the prefix, ordered by name.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotExist is wrapped by every backend when a segment is missing.
var ErrNotExist = fs.ErrNotExist

// ValidName rejects empty, absolute and traversing segment names.
func ValidName(name string) bool {
	if strings.TrimSpace(name) == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// Package blob re-exports the segment storage contract and selects a backend
// from configuration. Callers depend on blob.Store, never on infra packages.
package blob

import (
	"atfxcore/internal/blob/core"
)

type (
	// Driver identifies a segment backend driver.
	Driver = core.Driver
	// Info describes stored segment metadata.
	Info = core.Info
	// Store is the interface for segment storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
	DriverSQLite     = core.DriverSQLite
	DriverPostgres   = core.DriverPostgres
)

// ErrNotExist is wrapped by every backend when a segment is missing.
var ErrNotExist = core.ErrNotExist

// ValidName reports whether name can address a segment.
func ValidName(name string) bool { return core.ValidName(name) }

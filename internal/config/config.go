// Package config loads atfxcore configuration from YAML with environment
// overrides and maps it onto the store, codec, segment and logging settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"atfxcore/internal/blob"
	"atfxcore/internal/codec"
	"atfxcore/internal/logging"
	"atfxcore/internal/metrics"
	"atfxcore/internal/store"
)

// Config is the root configuration structure.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Segments SegmentsConfig `yaml:"segments"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig holds the container settings of the instance store.
type StoreConfig struct {
	WriteMode               string `yaml:"write_mode"` // "database" or "file"
	TrimStringValues        bool   `yaml:"trim_string_values"`
	ExtendedCompatibility   bool   `yaml:"extended_compatibility"`
	WriteExternalComponents bool   `yaml:"write_external_components"`
}

// SegmentsConfig configures where and how external component segments are
// stored.
type SegmentsConfig struct {
	Driver         string         `yaml:"driver"` // fs, memory, s3, sqlite, postgres
	Root           string         `yaml:"root"`
	BaseName       string         `yaml:"base_name"`
	MaxSegmentSize int64          `yaml:"max_segment_size"`
	ByteOrder      string         `yaml:"byte_order"`      // "little" or "big"
	StringEncoding string         `yaml:"string_encoding"` // "utf8" or "latin1"
	S3             blob.S3Config  `yaml:"s3"`
	SQLite         SQLiteConfig   `yaml:"sqlite"`
	Postgres       PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig locates the SQLite segment database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig locates the Postgres segment database.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Backend string `yaml:"backend"` // "zap", "zerolog" or "none"
	Level   string `yaml:"level"`   // "debug", "info", "warn", "error"
	Format  string `yaml:"format"`  // "json" or "console"
}

// MetricsConfig toggles the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration after expanding ${VAR} references.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(&cfg)
}

// LoadFromEnv builds configuration from ATFXCORE_* variables only.
//
// Environment variables:
//
//	ATFXCORE_WRITE_MODE               - database or file (default: database)
//	ATFXCORE_TRIM_STRING_VALUES       - trim string values on write
//	ATFXCORE_EXTENDED_COMPATIBILITY   - accept values of unexpected type
//	ATFXCORE_WRITE_EXTERNAL_COMPONENTS - keep external data external
//	ATFXCORE_SEGMENT_DRIVER           - fs, memory, s3, sqlite, postgres (default: fs)
//	ATFXCORE_SEGMENT_ROOT             - segment directory (default: .)
//	ATFXCORE_SEGMENT_BASE_NAME        - segment name prefix (default: data)
//	ATFXCORE_MAX_SEGMENT_SIZE         - bytes per segment, 0 unlimited
//	ATFXCORE_BYTE_ORDER               - little or big (default: little)
//	ATFXCORE_STRING_ENCODING          - utf8 or latin1 (default: utf8)
//	ATFXCORE_S3_BUCKET, ATFXCORE_S3_REGION, ATFXCORE_S3_PREFIX, ATFXCORE_S3_ENDPOINT
//	ATFXCORE_SQLITE_PATH, ATFXCORE_POSTGRES_DSN
//	ATFXCORE_LOG_BACKEND, ATFXCORE_LOG_LEVEL, ATFXCORE_LOG_FORMAT
//	ATFXCORE_METRICS_ENABLED
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies ATFXCORE_* variables; they always win over the
// file.
func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	flag := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			*dst = parseBool(v)
		}
	}

	str("ATFXCORE_WRITE_MODE", &cfg.Store.WriteMode)
	flag("ATFXCORE_TRIM_STRING_VALUES", &cfg.Store.TrimStringValues)
	flag("ATFXCORE_EXTENDED_COMPATIBILITY", &cfg.Store.ExtendedCompatibility)
	flag("ATFXCORE_WRITE_EXTERNAL_COMPONENTS", &cfg.Store.WriteExternalComponents)

	str("ATFXCORE_SEGMENT_DRIVER", &cfg.Segments.Driver)
	str("ATFXCORE_SEGMENT_ROOT", &cfg.Segments.Root)
	str("ATFXCORE_SEGMENT_BASE_NAME", &cfg.Segments.BaseName)
	if v := os.Getenv("ATFXCORE_MAX_SEGMENT_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Segments.MaxSegmentSize = n
		}
	}
	str("ATFXCORE_BYTE_ORDER", &cfg.Segments.ByteOrder)
	str("ATFXCORE_STRING_ENCODING", &cfg.Segments.StringEncoding)
	str("ATFXCORE_S3_BUCKET", &cfg.Segments.S3.Bucket)
	str("ATFXCORE_S3_REGION", &cfg.Segments.S3.Region)
	str("ATFXCORE_S3_PREFIX", &cfg.Segments.S3.Prefix)
	str("ATFXCORE_S3_ENDPOINT", &cfg.Segments.S3.Endpoint)
	str("ATFXCORE_SQLITE_PATH", &cfg.Segments.SQLite.Path)
	str("ATFXCORE_POSTGRES_DSN", &cfg.Segments.Postgres.DSN)

	str("ATFXCORE_LOG_BACKEND", &cfg.Logging.Backend)
	str("ATFXCORE_LOG_LEVEL", &cfg.Logging.Level)
	str("ATFXCORE_LOG_FORMAT", &cfg.Logging.Format)

	flag("ATFXCORE_METRICS_ENABLED", &cfg.Metrics.Enabled)
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Store.WriteMode == "" {
		cfg.Store.WriteMode = store.WriteModeDatabase.String()
	}
	if cfg.Segments.Driver == "" {
		cfg.Segments.Driver = string(blob.DriverFilesystem)
	}
	if cfg.Segments.Root == "" {
		cfg.Segments.Root = "."
	}
	if cfg.Segments.BaseName == "" {
		cfg.Segments.BaseName = "data"
	}
	if cfg.Segments.ByteOrder == "" {
		cfg.Segments.ByteOrder = "little"
	}
	if cfg.Segments.StringEncoding == "" {
		cfg.Segments.StringEncoding = "utf8"
	}
	if cfg.Segments.SQLite.Path == "" {
		cfg.Segments.SQLite.Path = "segments.db"
	}
	if cfg.Logging.Backend == "" {
		cfg.Logging.Backend = logging.BackendZap
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	mode := strings.ToLower(cfg.Store.WriteMode)
	if mode != store.WriteModeDatabase.String() && mode != store.WriteModeFile.String() {
		return fmt.Errorf("store.write_mode must be 'database' or 'file', got %q", cfg.Store.WriteMode)
	}

	validDrivers := map[blob.Driver]bool{
		blob.DriverFilesystem: true, blob.DriverMemory: true, blob.DriverS3: true,
		blob.DriverSQLite: true, blob.DriverPostgres: true,
	}
	if !validDrivers[blob.Driver(cfg.Segments.Driver)] {
		return fmt.Errorf("segments.driver %q is not supported", cfg.Segments.Driver)
	}
	if cfg.Segments.Driver == string(blob.DriverS3) && cfg.Segments.S3.Bucket == "" {
		return fmt.Errorf("segments.s3.bucket is required for the s3 driver")
	}
	if cfg.Segments.Driver == string(blob.DriverPostgres) && cfg.Segments.Postgres.DSN == "" {
		return fmt.Errorf("segments.postgres.dsn is required for the postgres driver")
	}
	if cfg.Segments.MaxSegmentSize < 0 {
		return fmt.Errorf("segments.max_segment_size must not be negative")
	}
	if !blob.ValidName(cfg.Segments.BaseName) {
		return fmt.Errorf("segments.base_name %q is not a valid segment name", cfg.Segments.BaseName)
	}
	switch strings.ToLower(cfg.Segments.ByteOrder) {
	case "little", "big":
	default:
		return fmt.Errorf("segments.byte_order must be 'little' or 'big', got %q", cfg.Segments.ByteOrder)
	}
	switch strings.ToLower(cfg.Segments.StringEncoding) {
	case "utf8", "latin1":
	default:
		return fmt.Errorf("segments.string_encoding must be 'utf8' or 'latin1', got %q", cfg.Segments.StringEncoding)
	}
	return nil
}

// StoreContext returns the store settings.
func (c *Config) StoreContext() store.Context {
	ctx := store.Context{
		MaxSegmentSize:          c.Segments.MaxSegmentSize,
		TrimStringValues:        c.Store.TrimStringValues,
		ExtendedCompatibility:   c.Store.ExtendedCompatibility,
		WriteExternalComponents: c.Store.WriteExternalComponents,
	}
	if strings.EqualFold(c.Store.WriteMode, store.WriteModeFile.String()) {
		ctx.WriteMode = store.WriteModeFile
	}
	if c.Segments.Driver == string(blob.DriverFilesystem) {
		ctx.FileRoot = c.Segments.Root
	}
	return ctx
}

// BlobConfig returns the segment backend selection.
func (c *Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver:      blob.Driver(c.Segments.Driver),
		Root:        c.Segments.Root,
		S3:          c.Segments.S3,
		SQLitePath:  c.Segments.SQLite.Path,
		PostgresDSN: c.Segments.Postgres.DSN,
	}
}

// CodecOptions returns the codec options for the segment settings.
func (c *Config) CodecOptions(l logging.Logger, m *metrics.Collector) []codec.Option {
	return []codec.Option{
		codec.WithBaseName(c.Segments.BaseName),
		codec.WithMaxSegmentSize(c.Segments.MaxSegmentSize),
		codec.WithBigEndian(strings.EqualFold(c.Segments.ByteOrder, "big")),
		codec.WithLatin1Strings(strings.EqualFold(c.Segments.StringEncoding, "latin1")),
		codec.WithLogger(l),
		codec.WithMetrics(m),
	}
}

// LoggingOptions returns the logger settings.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Backend: c.Logging.Backend, Level: c.Logging.Level, Format: c.Logging.Format}
}

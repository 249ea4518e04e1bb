// Package logging defines the structured logger accepted by the schema, store
// and codec packages, along with zap and zerolog backed implementations.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger is the minimal structured logger. Arguments after msg are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Noop returns a logger that discards everything.
func Noop() Logger { return noopLogger{} }

// OrNoop returns l, or the noop logger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// Backend names accepted by Options.Backend.
const (
	BackendZap     = "zap"
	BackendZerolog = "zerolog"
	BackendNone    = "none"
)

// Options selects and tunes a logger backend.
type Options struct {
	Backend string // zap (default), zerolog or none
	Level   string // debug, info (default), warn, error
	Format  string // json (default) or console
	Output  io.Writer
}

// New builds a logger from opts.
func New(opts Options) (Logger, error) {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	level := strings.ToLower(strings.TrimSpace(opts.Level))
	if level == "" {
		level = "info"
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "console" {
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendZap:
		return NewZap(opts.Output, level, format == "console")
	case BackendZerolog:
		return NewZerolog(opts.Output, level, format == "console")
	case BackendNone:
		return Noop(), nil
	default:
		return nil, fmt.Errorf("unsupported log backend %q", opts.Backend)
	}
}

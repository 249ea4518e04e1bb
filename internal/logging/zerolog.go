package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog logger.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerolog builds a zerolog logger writing to w at the given level.
func NewZerolog(w io.Writer, level string, console bool) (*ZerologLogger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return FromZerolog(zerolog.New(w).Level(lvl).With().Timestamp().Logger()), nil
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

func (z *ZerologLogger) Debug(msg string, args ...any) { emit(z.l.Debug(), msg, args) }
func (z *ZerologLogger) Info(msg string, args ...any)  { emit(z.l.Info(), msg, args) }
func (z *ZerologLogger) Warn(msg string, args ...any)  { emit(z.l.Warn(), msg, args) }
func (z *ZerologLogger) Error(msg string, args ...any) { emit(z.l.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			ev = ev.Interface("!BADKEY", args[i])
			break
		}
		if err, ok := args[i+1].(error); ok {
			ev = ev.AnErr(key, err)
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

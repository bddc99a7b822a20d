package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	// Packages
	formdata "github.com/mutablelogic/go-formdata"
	serverlogger "github.com/mutablelogic/go-server/pkg/logger"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Logger struct {
	*slog.Logger
}

// Format is the output format of a logger
type Format int

const (
	Text Format = iota
	JSON
)

var _ formdata.Logger = (*Logger)(nil)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns a logger which writes to w in the given format. Text is
// written for a terminal, one line per record. When debug is false, debug
// messages are discarded.
func New(w io.Writer, format Format, debug bool) *Logger {
	level := new(slog.LevelVar)
	level.Set(serverlogger.LevelInfo)
	if debug {
		level.Set(serverlogger.LevelDebug)
	}
	switch format {
	case JSON:
		handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: serverlogger.LevelTrace})
		return &Logger{slog.New(serverlogger.NewLevelHandler(handler, level))}
	default:
		return &Logger{slog.New(serverlogger.NewTermHandler(w, level))}
	}
}

// Nop returns a logger which discards everything
func Nop() *Logger {
	return &Logger{slog.New(slog.DiscardHandler)}
}

////////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (l *Logger) Print(ctx context.Context, v ...any) {
	l.InfoContext(ctx, fmt.Sprint(v...))
}

func (l *Logger) Printf(ctx context.Context, format string, v ...any) {
	l.InfoContext(ctx, fmt.Sprintf(format, v...))
}

func (l *Logger) Debug(ctx context.Context, v ...any) {
	l.DebugContext(ctx, fmt.Sprint(v...))
}

func (l *Logger) Debugf(ctx context.Context, format string, v ...any) {
	l.DebugContext(ctx, fmt.Sprintf(format, v...))
}

func (l *Logger) With(args ...any) formdata.Logger {
	return &Logger{l.Logger.With(args...)}
}

// Package logger provides slog helpers for the app.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level slog.Level
	// JSON selects the JSON handler; otherwise logs are human-readable text.
	JSON bool
	// File, when set, additionally writes logs to a size-rotated file.
	File string
}

// New returns a logger writing to stderr and, optionally, a rotating file.
// The returned closer releases the file and must be called on shutdown.
func New(opts Options) (*slog.Logger, io.Closer) {
	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, lj)
		closer = lj
	}
	return NewWithWriter(w, opts), closer
}

func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		AddSource: opts.Level <= slog.LevelDebug,
		Level:     opts.Level,
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(raw string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return lvl, nil
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "nil")
	}
	return slog.String("err", err.Error())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

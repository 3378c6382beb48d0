package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"horizonmask/pkg/config"
)

// RequestLogger is the logger instance for HTTP downloads.
var RequestLogger = slog.Default()

// Init initializes the logging system based on configuration.
// It returns a cleanup function to close log files.
func Init(cfg *config.LogConfig) (func(), error) {
	EnableTrace = cfg.EnableTrace

	var closers []io.Closer

	serverHandler, w1, err := setupHandler(cfg.Server, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	closers = append(closers, w1)
	slog.SetDefault(slog.New(serverHandler))

	// requests go to their own file only
	requestHandler, w2, err := setupHandler(cfg.Requests, nil)
	if err != nil {
		w1.Close()
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}
	closers = append(closers, w2)
	RequestLogger = slog.New(requestHandler)

	return func() {
		for _, c := range closers {
			c.Close()
		}
	}, nil
}

// ParseLevel maps a config level name to a slog level; unknown names are INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func setupHandler(s config.LogSettings, console io.Writer) (slog.Handler, *lumberjack.Logger, error) {
	level := ParseLevel(s.Level)

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, nil, err
	}

	w := &lumberjack.Logger{
		Filename:   s.Path,
		MaxSize:    s.MaxSizeMB, // MB
		MaxBackups: s.MaxBackups,
		Compress:   true,
	}

	fileHandler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	if console == nil {
		return fileHandler, w, nil
	}

	// console shows INFO and up unless the file is even stricter
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: max(level, slog.LevelInfo),
	})
	return &multiHandler{handlers: []slog.Handler{fileHandler, consoleHandler}}, w, nil
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle implements slog.Handler
// nolint:gocritic // r must be passed by value to implement slog.Handler
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}

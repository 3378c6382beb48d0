package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"horizonmask/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "logs", "server.log")
	requestLog := filepath.Join(tempDir, "logs", "requests.log")

	prev := slog.Default()
	defer slog.SetDefault(prev)

	cfg := &config.LogConfig{
		Server:      config.LogSettings{Path: serverLog, Level: "DEBUG", MaxSizeMB: 1},
		Requests:    config.LogSettings{Path: requestLog, Level: "INFO", MaxSizeMB: 1},
		EnableTrace: true,
	}

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Debug("scan column", "az", 12.5)
	RequestLogger.Info("download", "url", "http://example.org")
	cleanup()

	data, err := os.ReadFile(serverLog)
	if err != nil {
		t.Fatalf("server log not written: %v", err)
	}
	if !strings.Contains(string(data), "scan column") {
		t.Errorf("server log missing debug line: %s", data)
	}
	data, err = os.ReadFile(requestLog)
	if err != nil {
		t.Fatalf("request log not written: %v", err)
	}
	if !strings.Contains(string(data), "example.org") {
		t.Errorf("request log missing line: %s", data)
	}
	if !EnableTrace {
		t.Error("EnableTrace not taken from config")
	}
	EnableTrace = false
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMultiHandlerLevels(t *testing.T) {
	var debugBuf, infoBuf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("multiHandler should be enabled when any child is")
	}

	logger := slog.New(h).With("run", "r1")
	logger.Debug("fine grained")
	logger.Info("coarse")

	if !strings.Contains(debugBuf.String(), "fine grained") || !strings.Contains(debugBuf.String(), "run=r1") {
		t.Errorf("debug handler output: %q", debugBuf.String())
	}
	if strings.Contains(infoBuf.String(), "fine grained") {
		t.Error("info handler received a debug record")
	}
	if !strings.Contains(infoBuf.String(), "coarse") {
		t.Error("info handler missed an info record")
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	EnableTrace = false
	Trace(logger, "hidden")
	EnableTrace = true
	Trace(logger, "shown")
	EnableTrace = false

	if strings.Contains(buf.String(), "hidden") {
		t.Error("trace logged while disabled")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("trace not logged while enabled")
	}
}

// Package probe runs the startup checks of the service.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// CheckFunc returns nil if the check passes.
type CheckFunc func(ctx context.Context) error

// Probe is a single startup check.
type Probe struct {
	Name     string
	Check    CheckFunc
	Critical bool // a failure prevents startup
	Timeout  time.Duration
}

// Result holds the outcome of a single probe.
type Result struct {
	Probe    Probe
	Error    error
	Duration time.Duration
}

// Run executes the probes in order, each under its own timeout.
func Run(ctx context.Context, probes []Probe) []Result {
	results := make([]Result, len(probes))

	for i, p := range probes {
		timeout := p.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		start := time.Now()
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Check(checkCtx)
		cancel()

		results[i] = Result{
			Probe:    p,
			Error:    err,
			Duration: time.Since(start),
		}
	}

	return results
}

// AnalyzeResults logs a summary and joins the errors of failed critical probes.
func AnalyzeResults(results []Result) error {
	var criticalErrors []error

	slog.Info("Startup Checks Summary")

	for _, r := range results {
		status := "PASS"
		if r.Error != nil {
			status = "FAIL"
		}

		msg := fmt.Sprintf("[%s] %-20s (%v)", status, r.Probe.Name, r.Duration.Round(time.Millisecond))

		if r.Error != nil {
			slog.Error(msg, "error", r.Error)
			if r.Probe.Critical {
				criticalErrors = append(criticalErrors, fmt.Errorf("%s: %w", r.Probe.Name, r.Error))
			}
		} else {
			slog.Info(msg)
		}
	}

	return errors.Join(criticalErrors...)
}

// FileSize checks that path is a regular file of exactly size bytes. A
// negative size accepts any length.
func FileSize(path string, size int64) CheckFunc {
	return func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", path)
		}
		if size >= 0 && info.Size() != size {
			return fmt.Errorf("%s has %d bytes, want %d", path, info.Size(), size)
		}
		return nil
	}
}

// WritableDir checks that dir exists (creating it if needed) and accepts
// new files.
func WritableDir(dir string) CheckFunc {
	return func(ctx context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return err
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}

package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{
			Name:     "Success Probe",
			Check:    func(ctx context.Context) error { return nil },
			Critical: true,
		},
		{
			Name:  "Failure Probe (Non-Critical)",
			Check: func(ctx context.Context) error { return errors.New("minor issue") },
		},
		{
			Name:    "Slow Probe",
			Timeout: 10 * time.Millisecond,
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	results := Run(context.Background(), probes)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Error)
	assert.Error(t, results[1].Error)
	assert.ErrorIs(t, results[2].Error, context.DeadlineExceeded)
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name: "All Pass",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}},
				{Probe: Probe{Name: "P2", Critical: false}},
			},
		},
		{
			name: "Non-Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}},
				{Probe: Probe{Name: "P2", Critical: false}, Error: errors.New("fail")},
			},
		},
		{
			name: "Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("critical fail")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grid.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0o644))

	ctx := context.Background()
	assert.NoError(t, FileSize(path, 16)(ctx))
	assert.NoError(t, FileSize(path, -1)(ctx))
	assert.Error(t, FileSize(path, 32)(ctx))
	assert.Error(t, FileSize(filepath.Join(dir, "missing.bin"), -1)(ctx))
	assert.Error(t, FileSize(dir, -1)(ctx))
}

func TestWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "export")
	require.NoError(t, WritableDir(dir)(context.Background()))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file is removed")
}

package terrain

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"horizonmask/pkg/geo"
)

// createTempFile creates a sparse file of the given size.
func createTempFile(t *testing.T, size int) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "etopo_test_*.bin")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		t.Fatal(err)
	}
	return filepath.Clean(f.Name())
}

func writeSample(t *testing.T, path string, row, col int, v int16) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	if _, err := f.WriteAt(b, int64(row*etopo1Cols+col)*2); err != nil {
		t.Fatal(err)
	}
}

func TestOpenETOPO_InvalidFile(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "NonExistent", path: "/nonexistent/path/file.bin"},
		{name: "WrongSize", path: createTempFile(t, 1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenETOPO(tt.path, geo.Global); err == nil {
				t.Error("OpenETOPO() expected error")
			}
		})
	}
}

func TestETOPOSource_FetchGrid(t *testing.T) {
	path := createTempFile(t, etopo1Size)

	// 46.5N 7.5E
	writeSample(t, path, 2610, 11250, 1234)
	// negative values survive the int16 decode
	writeSample(t, path, 2611, 11250, -12)
	// equator, just east of the date line (-179.95)
	writeSample(t, path, 5400, 3, 77)

	src, err := OpenETOPO(path, geo.Band{South: -56, North: 60})
	if err != nil {
		t.Fatalf("OpenETOPO() error = %v", err)
	}
	defer src.Close()

	if b := src.Band(); b.North != 60 || b.South != -56 {
		t.Errorf("Band() = %v", b)
	}

	ctx := context.Background()

	t.Run("Window", func(t *testing.T) {
		g, err := src.FetchGrid(ctx, orb.Bound{Min: orb.Point{7.4, 46.4}, Max: orb.Point{7.6, 46.6}})
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := g.At(46.5, 7.5); !ok || math.Abs(v-1234) > 1e-6 {
			t.Errorf("At(46.5, 7.5) = %v, %v; want 1234", v, ok)
		}
		if v, _ := g.At(46.5-1.0/60, 7.5); math.Abs(v+12) > 1e-6 {
			t.Errorf("At(one row south) = %v, want -12", v)
		}
		if v, _ := g.At(46.45, 7.45); math.Abs(v) > 1e-6 {
			t.Errorf("empty node = %v, want 0", v)
		}
	})

	t.Run("DateLine", func(t *testing.T) {
		g, err := src.FetchGrid(ctx, orb.Bound{Min: orb.Point{179.9, -0.1}, Max: orb.Point{180.1, 0.1}})
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := g.At(0, -179.95); !ok || math.Abs(v-77) > 1e-6 {
			t.Errorf("At(0, -179.95) = %v, %v; want 77", v, ok)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := src.FetchGrid(cctx, orb.Bound{Min: orb.Point{7.4, 46.4}, Max: orb.Point{7.6, 46.6}}); err == nil {
			t.Error("expected context error")
		}
	})
}

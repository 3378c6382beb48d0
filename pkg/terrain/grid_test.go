package terrain

import (
	"math"
	"testing"
)

func rampGrid(t *testing.T) *Grid {
	t.Helper()
	// 1/100 degree nodes, value = 10*row + col
	g, err := NewGrid(47, 8, 0.01, 0.01, 11, 11)
	if err != nil {
		t.Fatal(err)
	}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			g.Set(r, c, float64(10*r+c))
		}
	}
	return g
}

func TestGrid_At(t *testing.T) {
	g := rampGrid(t)

	tests := []struct {
		name     string
		lat, lon float64
		want     float64
		wantOK   bool
	}{
		{"north west node", 47, 8, 0, true},
		{"interior node", 46.97, 8.05, 35, true},
		{"between nodes", 46.995, 8.005, 5.5, true},
		{"south east node", 46.9, 8.1, 110, true},
		{"outside north", 47.01, 8.05, NoDataElevation, false},
		{"outside east", 46.95, 8.2, NoDataElevation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.At(tt.lat, tt.lon)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("At(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}

func TestGrid_NoDataAndNaN(t *testing.T) {
	g, err := NewGrid(1, 0, 1, 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	g.NoData = -32768
	g.HasNoData = true
	g.Set(0, 0, -32768)
	g.Set(0, 1, math.NaN())
	g.Set(1, 0, math.Inf(1))
	g.Set(1, 1, 100)

	for _, rc := range [][2]int{{0, 0}, {0, 1}, {1, 0}} {
		if v := g.Value(rc[0], rc[1]); v != NoDataElevation {
			t.Errorf("Value(%v) = %v, want NoDataElevation", rc, v)
		}
	}
	v, ok := g.At(0.5, 0.5)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		t.Errorf("At() = %v, %v; want finite value", v, ok)
	}
	if math.Abs(v-25) > 1e-9 {
		t.Errorf("At() = %v, want 25", v)
	}
}

func TestGrid_DateLine(t *testing.T) {
	g, err := NewGrid(1, 179.5, 0.5, 0.5, 3, 3) // 179.5 .. 180.5
	if err != nil {
		t.Fatal(err)
	}
	g.Set(2, 2, 42) // lat 0, lon 180.5 == -179.5

	v, ok := g.At(0, -179.5)
	if !ok || math.Abs(v-42) > 1e-9 {
		t.Errorf("At(0, -179.5) = %v, %v; want 42", v, ok)
	}
}

func TestNewGrid_Invalid(t *testing.T) {
	if _, err := NewGrid(0, 0, 1, 1, 1, 5); err == nil {
		t.Error("expected error for a single row")
	}
	if _, err := NewGrid(0, 0, 0, 1, 5, 5); err == nil {
		t.Error("expected error for zero spacing")
	}
}

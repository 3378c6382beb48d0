package terrain

import (
	"math"
	"testing"

	"horizonmask/pkg/geo"
)

func TestCurvatureDrop(t *testing.T) {
	tests := []struct {
		distM float64
		want  float64
	}{
		{0, 0},
		{1000, 0.0675},
		{10000, 6.75},
		{100000, 675},
	}
	for _, tt := range tests {
		if got := CurvatureDrop(tt.distM); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("CurvatureDrop(%v) = %v, want %v", tt.distM, got, tt.want)
		}
	}
}

func TestCorrected(t *testing.T) {
	flat := Func(func(x, y float64) float64 { return 500 })
	s := Corrected(flat)

	if got := s.Sample(0, 0); got != 500 {
		t.Errorf("origin = %v, want 500", got)
	}
	// same correction in every direction
	for _, p := range [][2]float64{{3000, 4000}, {-5000, 0}, {0, -5000}, {-3000, -4000}} {
		if got := s.Sample(p[0], p[1]); math.Abs(got-(500-0.0675*25)) > 1e-9 {
			t.Errorf("Sample(%v) = %v", p, got)
		}
	}

	nan := Corrected(Func(func(x, y float64) float64 { return math.NaN() }))
	if got := nan.Sample(1000, 0); math.IsNaN(got) {
		t.Error("NaN leaked through Corrected")
	}
}

func TestNewSampler(t *testing.T) {
	origin := geo.Point{Lat: 46.5, Lon: 7.5}
	frame, err := geo.NewLocalFrame(origin)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGrid(46.6, 7.4, 0.01, 0.01, 21, 21)
	if err != nil {
		t.Fatal(err)
	}
	// elevation grows with latitude: 100 m per node row going north
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			g.Set(r, c, float64(g.Rows-1-r)*100)
		}
	}

	s := NewSampler(frame, g)
	if got := s.Sample(0, 0); math.Abs(got-1000) > 1e-6 {
		t.Errorf("origin sample = %v, want 1000", got)
	}
	// ~1.11 km north is one node row up
	north := s.Sample(0, 1111.9)
	if north < 1090 || north > 1110 {
		t.Errorf("north sample = %v, want ~1100", north)
	}
	if got := s.Sample(50000, 0); got != NoDataElevation {
		t.Errorf("off-grid sample = %v, want NoDataElevation", got)
	}
}

package raycast

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestIntersectTriangle(t *testing.T) {
	a := r3.Vec{X: 0, Y: 0, Z: 0}
	b := r3.Vec{X: 10, Y: 0, Z: 0}
	c := r3.Vec{X: 0, Y: 10, Z: 0}

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float64
	}{
		{"StraightDown", Ray{Origin: r3.Vec{X: 2, Y: 2, Z: 5}, Dir: r3.Vec{Z: -10}}, true, 0.5},
		{"TooShort", Ray{Origin: r3.Vec{X: 2, Y: 2, Z: 5}, Dir: r3.Vec{Z: -2}}, false, 0},
		{"Outside", Ray{Origin: r3.Vec{X: 8, Y: 8, Z: 5}, Dir: r3.Vec{Z: -10}}, false, 0},
		{"Behind", Ray{Origin: r3.Vec{X: 2, Y: 2, Z: 5}, Dir: r3.Vec{Z: 10}}, false, 0},
		{"Parallel", Ray{Origin: r3.Vec{X: -1, Y: 2, Z: 0}, Dir: r3.Vec{X: 20}}, false, 0},
		{"Slanted", Ray{Origin: r3.Vec{X: 0, Y: 1, Z: 4}, Dir: r3.Vec{X: 4, Y: 0, Z: -8}}, true, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := IntersectTriangle(tt.ray, a, b, c)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if ok && math.Abs(got-tt.wantT) > 1e-12 {
				t.Errorf("t = %v, want %v", got, tt.wantT)
			}
		})
	}
}

func TestIntersectRay(t *testing.T) {
	a := r3.Vec{X: 0, Y: 0, Z: 0}
	b := r3.Vec{X: 10, Y: 0, Z: 0}
	c := r3.Vec{X: 0, Y: 10, Z: 0}
	r := Ray{Origin: r3.Vec{X: 2, Y: 2, Z: 5}, Dir: r3.Vec{Z: -1}}

	if _, ok := IntersectTriangle(r, a, b, c); ok {
		t.Fatal("segment should stop short of the triangle")
	}
	got, ok := IntersectRay(r, a, b, c)
	if !ok || math.Abs(got-5) > 1e-12 {
		t.Errorf("IntersectRay = %v, %v; want 5, true", got, ok)
	}
	hit := r.At(got)
	if math.Abs(hit.Z) > 1e-12 {
		t.Errorf("hit point %v not on plane", hit)
	}
}

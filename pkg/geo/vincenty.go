package geo

import "math"

// Ellipsoid is a reference ellipsoid. A and B are the equatorial and polar radii in meters.
type Ellipsoid struct {
	A float64
	B float64
	F float64
}

// WGS84 is the process-wide reference ellipsoid.
var WGS84 = NewEllipsoid(6378137.0, 1/298.257223563)

// NewEllipsoid builds an ellipsoid from its equatorial radius and flattening.
func NewEllipsoid(a, f float64) Ellipsoid {
	return Ellipsoid{A: a, B: a * (1 - f), F: f}
}

// Sphere returns a degenerate ellipsoid with zero flattening.
func Sphere(radius float64) Ellipsoid {
	return Ellipsoid{A: radius, B: radius, F: 0}
}

// Inverse is the solution of the ellipsoidal inverse problem.
// ForwardDeg is the initial bearing at p1 towards p2, ReverseDeg the initial
// bearing at p2 back towards p1.
type Inverse struct {
	DistanceM  float64
	ForwardDeg float64
	ReverseDeg float64
}

const (
	vincentyMaxIter   = 100
	vincentyThreshold = 1e-12
)

// InverseDistance solves the inverse problem between p1 and p2 with Vincenty's iteration.
// The iteration is capped; near-antipodal pairs are outside the domain this is used for.
func InverseDistance(p1, p2 Point, e Ellipsoid) Inverse {
	a, b, f := e.A, e.B, e.F

	L := (p2.Lon - p1.Lon) * deg2rad
	U1 := math.Atan((1 - f) * math.Tan(p1.Lat*deg2rad))
	U2 := math.Atan((1 - f) * math.Tan(p2.Lat*deg2rad))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var (
		sinLambda, cosLambda float64
		sinSigma, cosSigma   float64
		sigma                float64
		cosSqAlpha           float64
		cos2SigmaM           float64
	)

	for i := 0; i < vincentyMaxIter; i++ {
		sinLambda, cosLambda = math.Sincos(lambda)
		t1 := cosU2 * sinLambda
		t2 := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(t1*t1 + t2*t2)
		if sinSigma == 0 {
			// coincident points
			return Inverse{}
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha

		// equatorial line: cosSqAlpha is zero
		if cosSqAlpha != 0 {
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		} else {
			cos2SigmaM = 0
		}

		C := f / 16 * cosSqAlpha * (4 + f*(4-3*cosSqAlpha))
		prev := lambda
		lambda = L + (1-C)*f*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-prev) < vincentyThreshold {
			break
		}
	}

	uSq := cosSqAlpha * (a*a - b*b) / (b * b)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	s := b * A * (sigma - deltaSigma)

	fwd := math.Atan2(cosU2*sinLambda, cosU1*sinU2-sinU1*cosU2*cosLambda)
	arrival := math.Atan2(cosU1*sinLambda, -sinU1*cosU2+cosU1*sinU2*cosLambda)

	return Inverse{
		DistanceM:  s,
		ForwardDeg: Wrap360(fwd * rad2deg),
		ReverseDeg: Wrap360(arrival*rad2deg + 180),
	}
}

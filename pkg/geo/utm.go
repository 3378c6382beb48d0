package geo

import (
	"fmt"
	"math"
)

const (
	utmK0 = 0.9996
	utmFE = 500000.0
	utmFN = 10000000.0 // false northing south of the equator
)

// UTMZone returns the UTM zone number for a coordinate, including the
// Norway and Svalbard exceptions.
func UTMZone(lat, lon float64) int {
	lon = NormalizeAngle(lon)
	if lon == 180 {
		lon = -180
	}
	zone := int(math.Floor((lon+180)/6)) + 1

	if lat >= 56 && lat < 64 && lon >= 3 && lon < 12 {
		return 32
	}
	if lat >= 72 && lat < 84 {
		switch {
		case lon >= 0 && lon < 9:
			return 31
		case lon >= 9 && lon < 21:
			return 33
		case lon >= 21 && lon < 33:
			return 35
		case lon >= 33 && lon < 42:
			return 37
		}
	}
	return zone
}

// UTM is a transverse Mercator projection for one zone and hemisphere.
// The forward and inverse use the Krüger series to third order in n,
// which is sub-millimetre within a zone.
type UTM struct {
	Zone  int
	South bool

	lon0           float64 // central meridian, radians
	aHat           float64 // rectifying radius
	e              float64 // first eccentricity
	alpha, beta, d [3]float64
}

// NewUTM prepares the projection for a zone on the WGS84 ellipsoid.
func NewUTM(zone int, south bool) (*UTM, error) {
	if zone < 1 || zone > 60 {
		return nil, fmt.Errorf("utm zone %d out of range", zone)
	}
	f := WGS84.F
	n := f / (2 - f)
	n2, n3 := n*n, n*n*n

	u := &UTM{
		Zone:  zone,
		South: south,
		lon0:  (float64(zone-1)*6 - 180 + 3) * deg2rad,
		aHat:  WGS84.A / (1 + n) * (1 + n2/4 + n2*n2/64),
		e:     2 * math.Sqrt(n) / (1 + n),
	}
	u.alpha = [3]float64{
		n/2 - 2*n2/3 + 5*n3/16,
		13*n2/48 - 3*n3/5,
		61 * n3 / 240,
	}
	u.beta = [3]float64{
		n/2 - 2*n2/3 + 37*n3/96,
		n2/48 + n3/15,
		17 * n3 / 480,
	}
	u.d = [3]float64{
		2*n - 2*n2/3 - 2*n3,
		7*n2/3 - 8*n3/5,
		56 * n3 / 15,
	}
	return u, nil
}

// Forward projects lat/lon degrees to easting/northing meters.
func (u *UTM) Forward(lat, lon float64) (easting, northing float64) {
	phi := lat * deg2rad
	dl := NormalizeAngle(lon-u.lon0*rad2deg) * deg2rad

	sinPhi := math.Sin(phi)
	t := math.Sinh(math.Atanh(sinPhi) - u.e*math.Atanh(u.e*sinPhi))
	xi := math.Atan2(t, math.Cos(dl))
	eta := math.Atanh(math.Sin(dl) / math.Sqrt(1+t*t))

	x, y := eta, xi
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		x += u.alpha[j] * math.Cos(k*xi) * math.Sinh(k*eta)
		y += u.alpha[j] * math.Sin(k*xi) * math.Cosh(k*eta)
	}

	easting = utmFE + utmK0*u.aHat*x
	northing = utmK0 * u.aHat * y
	if u.South {
		northing += utmFN
	}
	return easting, northing
}

// Inverse converts easting/northing meters back to lat/lon degrees.
func (u *UTM) Inverse(easting, northing float64) (lat, lon float64) {
	if u.South {
		northing -= utmFN
	}
	xi := northing / (utmK0 * u.aHat)
	eta := (easting - utmFE) / (utmK0 * u.aHat)

	xp, ep := xi, eta
	for j := 0; j < 3; j++ {
		k := 2 * float64(j+1)
		xp -= u.beta[j] * math.Sin(k*xi) * math.Cosh(k*eta)
		ep -= u.beta[j] * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xp) / math.Cosh(ep))
	phi := chi
	for j := 0; j < 3; j++ {
		phi += u.d[j] * math.Sin(2*float64(j+1)*chi)
	}
	lam := u.lon0 + math.Atan2(math.Sinh(ep), math.Cos(xp))

	return phi * rad2deg, NormalizeAngle(lam * rad2deg)
}

// Convergence returns the grid convergence at lat/lon in degrees: the angle from
// true north to grid north, positive east of the central meridian (north hemisphere).
func (u *UTM) Convergence(lat, lon float64) float64 {
	dl := NormalizeAngle(lon-u.lon0*rad2deg) * deg2rad
	return math.Atan(math.Tan(dl)*math.Sin(lat*deg2rad)) * rad2deg
}

// LocalFrame is a planar tangent frame centered on an origin point: x east,
// y true north at the origin, meters. It is a UTM projection shifted to the origin
// and rotated by the grid convergence there.
type LocalFrame struct {
	Origin Point
	utm    *UTM
	e0, n0 float64
	sinG   float64
	cosG   float64
}

// NewLocalFrame builds a frame centered on origin using the zone derived from it.
func NewLocalFrame(origin Point) (*LocalFrame, error) {
	u, err := NewUTM(UTMZone(origin.Lat, origin.Lon), origin.Lat < 0)
	if err != nil {
		return nil, err
	}
	e0, n0 := u.Forward(origin.Lat, origin.Lon)
	g := u.Convergence(origin.Lat, origin.Lon) * deg2rad
	return &LocalFrame{
		Origin: origin,
		utm:    u,
		e0:     e0,
		n0:     n0,
		sinG:   math.Sin(g),
		cosG:   math.Cos(g),
	}, nil
}

// Zone returns the UTM zone backing the frame.
func (f *LocalFrame) Zone() int { return f.utm.Zone }

// Forward maps lat/lon to local x/y meters.
func (f *LocalFrame) Forward(lat, lon float64) (x, y float64) {
	e, n := f.utm.Forward(lat, lon)
	de, dn := e-f.e0, n-f.n0
	// grid north lies east of true north by the convergence angle
	return de*f.cosG + dn*f.sinG, -de*f.sinG + dn*f.cosG
}

// Inverse maps local x/y meters back to lat/lon.
func (f *LocalFrame) Inverse(x, y float64) (lat, lon float64) {
	de := x*f.cosG - y*f.sinG
	dn := x*f.sinG + y*f.cosG
	return f.utm.Inverse(f.e0+de, f.n0+dn)
}

package transform

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Ellipsoid is a reference ellipsoid given by equatorial radius (km) and
// flattening.
type Ellipsoid struct {
	A float64
	F float64
}

// WGS84 is the reference ellipsoid for geodetic output.
var WGS84 = Ellipsoid{A: 6378.137, F: 1.0 / 298.257223563}

// B returns the polar radius in km.
func (e Ellipsoid) B() float64 { return e.A * (1 - e.F) }

// E2 returns the first eccentricity squared.
func (e Ellipsoid) E2() float64 { return e.F * (2 - e.F) }

// Radius returns the distance from the centre to the surface at a geocentric
// latitude in radians.
func (e Ellipsoid) Radius(geocentricLat float64) float64 {
	a, b := e.A, e.B()
	c := math.Cos(geocentricLat)
	s := math.Sin(geocentricLat)
	return a * b / math.Sqrt(b*b*c*c+a*a*s*s)
}

// Geodetic is a point on or above the ellipsoid. Latitude is in [-90, 90]
// and longitude in [-180, 180).
type Geodetic struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// Method records how a geodetic solution was obtained.
type Method string

const (
	// MethodIterative is a converged Bowring iteration.
	MethodIterative Method = "iterative"
	// MethodSpherical is the spherical-Earth fallback after nonconvergence.
	MethodSpherical Method = "spherical"
	// MethodRadiusGuard means the solved altitude disagreed with the
	// geocentric radius and was re-derived from it.
	MethodRadiusGuard Method = "radius_guard"
)

// errFrameNonconvergence is returned by the iterative solver and always
// recovered by ToGeodetic.
var errFrameNonconvergence = errors.New("transform: geodetic solver did not converge")

const (
	maxIterations = 10
	latTolerance  = 1e-12 // rad
	// Below this radius (km) the latitude is numerically meaningless.
	minSolvableRadius = 1e-3
)

// ToGeodetic converts an ECEF position in km to geodetic coordinates on e.
// It never fails: nonconvergence falls back to a spherical model, and an
// altitude inconsistent with the geocentric radius is re-derived from it.
func (e Ellipsoid) ToGeodetic(r r3.Vec) (Geodetic, Method) {
	radius := r3.Norm(r)
	lon := normalizeLongitude(math.Atan2(r.Y, r.X) * rad2deg)

	lat, alt, err := e.bowring(r)
	method := MethodIterative
	if errors.Is(err, errFrameNonconvergence) {
		lat, alt = e.spherical(r, radius)
		method = MethodSpherical
	}

	if guarded, ok := e.guardAltitude(alt, r, radius); !ok {
		alt = guarded
		method = MethodRadiusGuard
	}

	return Geodetic{
		LatDeg: clampLatitude(lat * rad2deg),
		LonDeg: lon,
		AltKm:  alt,
	}, method
}

// ToGeodetic converts an ECEF position in km to geodetic coordinates on WGS-84.
func ToGeodetic(r r3.Vec) Geodetic {
	g, _ := WGS84.ToGeodetic(r)
	return g
}

// guardAltitude checks a solved altitude against the geocentric radius. On
// the ellipsoid alt - (r - a) lies in [0, a-b]; anything well outside that
// band is a bad solution, typically a spurious zero altitude, and is replaced
// by the radial distance above the surface.
func (e Ellipsoid) guardAltitude(alt float64, r r3.Vec, radius float64) (float64, bool) {
	tolerance := (e.A - e.B()) + 1.0
	if math.Abs(alt-(radius-e.A)) <= tolerance {
		return alt, true
	}
	return radius - e.Radius(geocentricLatitude(r, radius)), false
}

// bowring iterates the geodetic latitude (Bowring's method) until successive
// estimates agree to latTolerance.
func (e Ellipsoid) bowring(r r3.Vec) (lat, alt float64, err error) {
	e2 := e.E2()
	p := math.Hypot(r.X, r.Y)
	if math.Hypot(p, r.Z) < minSolvableRadius {
		return 0, 0, errFrameNonconvergence
	}

	lat = math.Atan2(r.Z, p*(1-e2))
	converged := false
	for i := 0; i < maxIterations; i++ {
		sinLat := math.Sin(lat)
		n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
		next := math.Atan2(r.Z+e2*n*sinLat, p)
		if math.IsNaN(next) {
			return 0, 0, errFrameNonconvergence
		}
		delta := math.Abs(next - lat)
		lat = next
		if delta < latTolerance {
			converged = true
			break
		}
	}
	if !converged {
		return 0, 0, errFrameNonconvergence
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n := e.A / math.Sqrt(1-e2*sinLat*sinLat)
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(r.Z)/math.Abs(sinLat) - n*(1-e2)
	}
	if math.IsNaN(alt) || math.IsInf(alt, 0) {
		return 0, 0, errFrameNonconvergence
	}
	return lat, alt, nil
}

// spherical treats latitude as geocentric and measures altitude from the
// ellipsoid surface along the radius.
func (e Ellipsoid) spherical(r r3.Vec, radius float64) (lat, alt float64) {
	lat = geocentricLatitude(r, radius)
	return lat, radius - e.Radius(lat)
}

func geocentricLatitude(r r3.Vec, radius float64) float64 {
	if radius == 0 {
		return 0
	}
	return math.Asin(math.Max(-1, math.Min(1, r.Z/radius)))
}

// normalizeLongitude maps degrees into [-180, 180).
func normalizeLongitude(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

func clampLatitude(deg float64) float64 {
	return math.Max(-90, math.Min(90, deg))
}

// Package sgp4 implements the SGP4 analytic propagator for near-earth
// element sets and its SDP4 extension (lunar-solar periodics and
// geopotential resonance) for orbits with periods of 225 minutes or more.
//
// Output is position in km and velocity in km/s in the TEME frame.
package sgp4

import (
	"fmt"
	"math"
	"strings"
)

const (
	twoPi   = 2 * math.Pi
	x2o3    = 2.0 / 3.0
	deg2rad = math.Pi / 180

	// minutesPerDay converts revolutions per day to radians per minute.
	minutesPerDay = 1440.0
	xpdotp        = minutesPerDay / twoPi

	// jd1950 is the Julian date of 1949 Dec 31 00:00 UT, the origin of the
	// model's internal epoch in days.
	jd1950 = 2433281.5

	deepSpacePeriodMinutes = 225.0
)

// GravityModel holds the earth constants the model is evaluated with.
type GravityModel struct {
	Name          string
	Mu            float64 // km^3/s^2
	RadiusEarthKm float64
	Xke           float64 // sqrt(mu) in earth radii^1.5 per minute
	TuMin         float64 // minutes per time unit
	J2, J3, J4    float64
	J3oJ2         float64
}

func newGravity(name string, mu, re, j2, j3, j4 float64) GravityModel {
	xke := 60.0 / math.Sqrt(re*re*re/mu)
	return GravityModel{
		Name:          name,
		Mu:            mu,
		RadiusEarthKm: re,
		Xke:           xke,
		TuMin:         1.0 / xke,
		J2:            j2,
		J3:            j3,
		J4:            j4,
		J3oJ2:         j3 / j2,
	}
}

var (
	// WGS72 is the standard set used to generate published element sets.
	WGS72 = newGravity("wgs72", 398600.8, 6378.135, 0.001082616, -0.00000253881, -0.00000165597)

	// WGS84 uses the current geodetic constants.
	WGS84 = newGravity("wgs84", 398600.5, 6378.137, 0.00108262998905, -0.00000253215306, -0.00000161098761)

	// WGS72Old reproduces the truncated xke of the original reference code.
	WGS72Old = func() GravityModel {
		g := newGravity("wgs72old", 398600.79964, 6378.135, 0.001082616, -0.00000253881, -0.00000165597)
		g.Xke = 0.0743669161
		g.TuMin = 1.0 / g.Xke
		return g
	}()
)

// GravityByName resolves a configured gravity model name.
func GravityByName(name string) (GravityModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "wgs72":
		return WGS72, nil
	case "wgs84":
		return WGS84, nil
	case "wgs72old":
		return WGS72Old, nil
	default:
		return GravityModel{}, fmt.Errorf("unknown gravity model %q", name)
	}
}

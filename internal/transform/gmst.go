package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

// JulianDate converts an instant to a Julian Date on the UTC scale.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich Mean Sidereal Time in radians, assuming UT1 = UTC.
func GMST(t time.Time) float64 {
	return TimeScale{}.GMST(t)
}

// GMST returns Greenwich Mean Sidereal Time in radians at t, evaluated on
// the UT1 scale described by ts.
func (ts TimeScale) GMST(t time.Time) float64 {
	return GMSTFromJD(JulianDate(ts.UT1(t)))
}

// GMSTFromJD evaluates the IAU-82 sidereal time polynomial (Vallado Eq 3-47)
// for a UT1 Julian Date and returns radians in [0, 2π).
//
//	θ = 67310.54841 + (876600h + 8640184.812866)·T + 0.093104·T² − 6.2e-6·T³
func GMSTFromJD(jdUT1 float64) float64 {
	tUT1 := (jdUT1 - j2000) / 36525.0

	sec := 67310.54841 +
		(876600.0*3600.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	// Seconds of time to radians: 360°/86400 s = 1/240 deg per second.
	rad := math.Mod(sec*math.Pi/(180.0*240.0), 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}

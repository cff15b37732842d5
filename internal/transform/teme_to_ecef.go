// Package transform converts SGP4 output between reference frames and onto
// the WGS-84 ellipsoid.
//
// TEME (True Equator Mean Equinox) to ECEF uses a rotation by GMST only
// (TEME → PEF ≈ ECEF). Polar motion and the equation of the equinoxes are
// ignored, which is well inside the accuracy of a TLE.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
//
// All lengths are in km and velocities in km/s.
package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is a position and velocity pair in a single frame.
type State struct {
	Position r3.Vec // km
	Velocity r3.Vec // km/s
}

// TEMEToECEF rotates a TEME state into the Earth-fixed frame at t, using ts
// for the UT1-UTC offset.
func TEMEToECEF(teme State, t time.Time, ts TimeScale) State {
	return TEMEToECEFWithGMST(teme, ts.GMST(t))
}

// TEMEToECEFWithGMST rotates a TEME state using a precomputed GMST angle in
// radians.
//
//	r_ECEF = R3(θ)·r_TEME
//	v_ECEF = R3(θ)·v_TEME − ω × r_ECEF
func TEMEToECEFWithGMST(teme State, gmst float64) State {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	rot := func(v r3.Vec) r3.Vec {
		return r3.Vec{
			X: v.X*cosG + v.Y*sinG,
			Y: -v.X*sinG + v.Y*cosG,
			Z: v.Z,
		}
	}

	r := rot(teme.Position)
	omega := r3.Vec{Z: OmegaEarth}
	v := r3.Sub(rot(teme.Velocity), r3.Cross(omega, r))

	return State{Position: r, Velocity: v}
}

// ECEFToTEMEWithGMST is the inverse of TEMEToECEFWithGMST.
func ECEFToTEMEWithGMST(ecef State, gmst float64) State {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	rot := func(v r3.Vec) r3.Vec {
		return r3.Vec{
			X: v.X*cosG - v.Y*sinG,
			Y: v.X*sinG + v.Y*cosG,
			Z: v.Z,
		}
	}

	omega := r3.Vec{Z: OmegaEarth}
	inertialV := r3.Add(ecef.Velocity, r3.Cross(omega, ecef.Position))
	return State{Position: rot(ecef.Position), Velocity: rot(inertialV)}
}

// ValidateECEF reports whether an ECEF position in km is plausible for an
// Earth-orbiting object: finite and between 6200 km and 50000 km from the
// centre.
func ValidateECEF(r r3.Vec) bool {
	for _, c := range []float64{r.X, r.Y, r.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}

	const (
		minRadius = 6200.0
		maxRadius = 50000.0
	)
	mag := r3.Norm(r)
	return mag >= minRadius && mag <= maxRadius
}

package sgp4

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Propagate returns TEME position (km) and velocity (km/s) at t.
// Times before epoch are allowed.
func (s *Satellite) Propagate(t time.Time) (r3.Vec, r3.Vec, error) {
	return s.PropagateMinutes(MinutesSinceEpoch(s.epoch, t))
}

// MinutesSinceEpoch returns the signed elapsed time from epoch to t in minutes.
func MinutesSinceEpoch(epoch, t time.Time) float64 {
	return float64(t.Sub(epoch)) / float64(time.Minute)
}

// PropagateMinutes evaluates the model tsince minutes after epoch.
func (s *Satellite) PropagateMinutes(tsince float64) (r3.Vec, r3.Vec, error) {
	g := s.grav
	const temp4 = 1.5e-12
	vkmpersec := g.RadiusEarthKm * g.Xke / 60.0
	t := tsince

	// Secular gravity and atmospheric drag.
	xmdf := s.mo + s.mdot*t
	argpdf := s.argpo + s.argpdot*t
	nodedf := s.nodeo + s.nodedot*t
	argpm := argpdf
	mm := xmdf
	t2 := t * t
	nodem := nodedf + s.nodecf*t2
	tempa := 1.0 - s.cc1*t
	tempe := s.bstar * s.cc4 * t
	templ := s.t2cof * t2

	if !s.isimp {
		delomg := s.omgcof * t
		delmtemp := 1.0 + s.eta*math.Cos(xmdf)
		delm := s.xmcof * (delmtemp*delmtemp*delmtemp - s.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * t
		t4 := t3 * t
		tempa = tempa - s.d2*t2 - s.d3*t3 - s.d4*t4
		tempe = tempe + s.bstar*s.cc5*(math.Sin(mm)-s.sinmao)
		templ = templ + s.t3cof*t3 + t4*(s.t4cof+t*s.t5cof)
	}

	nm := s.noUnkozai
	em := s.ecco
	inclm := s.inclo
	if s.regime == DeepSpace {
		m := s.ds.secular(s, t, meanElements{em: em, argpm: argpm, inclm: inclm, mm: mm, nodem: nodem, nm: nm})
		em, argpm, inclm, mm, nodem, nm = m.em, m.argpm, m.inclm, m.mm, m.nodem, m.nm
	}

	if nm <= 0.0 {
		return r3.Vec{}, r3.Vec{}, diverged(CodeMeanMotion, t, "mean motion %g not positive", nm)
	}
	am := math.Pow(g.Xke/nm, x2o3) * tempa * tempa
	nm = g.Xke / math.Pow(am, 1.5)
	em -= tempe

	if em >= 1.0 || em < -0.001 {
		return r3.Vec{}, r3.Vec{}, diverged(CodeMeanElements, t, "mean eccentricity %g outside [-0.001, 1)", em)
	}
	if em < 1.0e-6 {
		em = 1.0e-6
	}
	mm += s.noUnkozai * templ
	xlm := mm + argpm + nodem

	nodem = math.Mod(nodem, twoPi)
	argpm = math.Mod(argpm, twoPi)
	xlm = math.Mod(xlm, twoPi)
	mm = math.Mod(xlm-argpm-nodem, twoPi)

	sinim := math.Sin(inclm)
	cosim := math.Cos(inclm)

	// Lunar-solar periodics.
	ep := em
	xincp := inclm
	argpp := argpm
	nodep := nodem
	mp := mm
	sinip := sinim
	cosip := cosim
	aycof, xlcof := s.aycof, s.xlcof
	con41, x1mth2, x7thm1 := s.con41, s.x1mth2, s.x7thm1

	if s.regime == DeepSpace {
		ep, xincp, nodep, argpp, mp = s.ds.periodics(t, ep, xincp, nodep, argpp, mp)
		if xincp < 0.0 {
			xincp = -xincp
			nodep += math.Pi
			argpp -= math.Pi
		}
		if ep < 0.0 || ep > 1.0 {
			return r3.Vec{}, r3.Vec{}, diverged(CodePerturbedElements, t, "perturbed eccentricity %g outside [0, 1]", ep)
		}

		sinip = math.Sin(xincp)
		cosip = math.Cos(xincp)
		aycof = -0.5 * g.J3oJ2 * sinip
		if math.Abs(cosip+1.0) > 1.5e-12 {
			xlcof = -0.25 * g.J3oJ2 * sinip * (3.0 + 5.0*cosip) / (1.0 + cosip)
		} else {
			xlcof = -0.25 * g.J3oJ2 * sinip * (3.0 + 5.0*cosip) / temp4
		}
	}

	// Long-period periodics.
	axnl := ep * math.Cos(argpp)
	temp := 1.0 / (am * (1.0 - ep*ep))
	aynl := ep*math.Sin(argpp) + temp*aycof
	xl := mp + argpp + nodep + temp*xlcof*axnl

	// Kepler's equation, with the Newton step capped at 0.95 rad.
	u := math.Mod(xl-nodep, twoPi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	for ktr := 1; math.Abs(tem5) >= 1.0e-12 && ktr <= 10; ktr++ {
		sineo1 = math.Sin(eo1)
		coseo1 = math.Cos(eo1)
		tem5 = 1.0 - coseo1*axnl - sineo1*aynl
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / tem5
		if math.Abs(tem5) >= 0.95 {
			if tem5 > 0.0 {
				tem5 = 0.95
			} else {
				tem5 = -0.95
			}
		}
		eo1 += tem5
	}

	// Short-period preliminary quantities.
	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1.0 - el2)
	if pl < 0.0 {
		return r3.Vec{}, r3.Vec{}, diverged(CodeSemiLatusRectum, t, "semi-latus rectum %g negative", pl)
	}

	rl := am * (1.0 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1.0 - el2)
	temp = esine / (1.0 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1.0 - 2.0*sinu*sinu
	temp = 1.0 / pl
	temp1 := 0.5 * g.J2 * temp
	temp2 := temp1 * temp

	if s.regime == DeepSpace {
		cosisq := cosip * cosip
		con41 = 3.0*cosisq - 1.0
		x1mth2 = 1.0 - cosisq
		x7thm1 = 7.0*cosisq - 1.0
	}

	// Short-period periodics.
	mrt := rl*(1.0-1.5*temp2*betal*con41) + 0.5*temp1*x1mth2*cos2u
	su -= 0.25 * temp2 * x7thm1 * sin2u
	xnode := nodep + 1.5*temp2*cosip*sin2u
	xinc := xincp + 1.5*temp2*cosip*sinip*cos2u
	mvt := rdotl - nm*temp1*x1mth2*sin2u/g.Xke
	rvdot := rvdotl + nm*temp1*(x1mth2*cos2u+1.5*con41)/g.Xke

	// Orientation vectors.
	sinsu := math.Sin(su)
	cossu := math.Cos(su)
	snod := math.Sin(xnode)
	cnod := math.Cos(xnode)
	sini := math.Sin(xinc)
	cosi := math.Cos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	uvec := r3.Vec{X: xmx*sinsu + cnod*cossu, Y: xmy*sinsu + snod*cossu, Z: sini * sinsu}
	vvec := r3.Vec{X: xmx*cossu - cnod*sinsu, Y: xmy*cossu - snod*sinsu, Z: sini * cossu}

	if mrt < 1.0 {
		return r3.Vec{}, r3.Vec{}, diverged(CodeDecayed, t, "radius %.3f earth radii below surface", mrt)
	}

	pos := r3.Scale(mrt*g.RadiusEarthKm, uvec)
	vel := r3.Scale(vkmpersec, r3.Add(r3.Scale(mvt, uvec), r3.Scale(rvdot, vvec)))
	return pos, vel, nil
}

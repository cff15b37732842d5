package sgp4

import (
	"fmt"
	"math"
	"time"

	"github.com/ramones1960/analyze-tle/internal/tle"
	"github.com/ramones1960/analyze-tle/internal/transform"
)

// Regime identifies which branch of the model a satellite uses.
type Regime int

const (
	NearEarth Regime = iota
	DeepSpace
)

func (r Regime) String() string {
	if r == DeepSpace {
		return "deep-space"
	}
	return "near-earth"
}

// Satellite is an initialised propagation model for one element set.
// It is immutable after New and safe for concurrent use.
type Satellite struct {
	grav   GravityModel
	epoch  time.Time
	regime Regime

	// Mean elements at epoch in radians and radians per minute.
	bstar, ecco, argpo, inclo, mo, nodeo float64
	noKozai, noUnkozai                   float64

	gsto float64 // sidereal angle at epoch

	isimp bool

	aycof, con41, cc1, cc4, cc5, d2, d3, d4     float64
	delmo, eta, argpdot, omgcof, sinmao         float64
	t2cof, t3cof, t4cof, t5cof                  float64
	x1mth2, x7thm1, mdot, nodedot, xlcof, xmcof float64
	nodecf                                      float64

	ds deepSpace
}

// New initialises the model from parsed elements. The regime is chosen
// here from the recovered mean motion and does not change afterwards.
func New(el tle.Elements, grav GravityModel) (*Satellite, error) {
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return nil, diverged(CodeMeanElements, 0, "eccentricity %g outside [0, 1)", el.Eccentricity)
	}
	if el.MeanMotion <= 0 {
		return nil, diverged(CodeMeanMotion, 0, "mean motion %g not positive", el.MeanMotion)
	}

	epoch := el.Epoch.UTC()
	s := &Satellite{
		grav:    grav,
		epoch:   epoch,
		bstar:   el.BStar,
		ecco:    el.Eccentricity,
		argpo:   el.ArgPerigee * deg2rad,
		inclo:   el.Inclination * deg2rad,
		mo:      el.MeanAnomaly * deg2rad,
		nodeo:   el.RAAN * deg2rad,
		noKozai: el.MeanMotion / xpdotp,
	}

	// Days since 1949 Dec 31 00:00 UT.
	epochDays := epoch.Sub(time.Date(1949, 12, 31, 0, 0, 0, 0, time.UTC)).Hours() / 24
	s.init(epochDays)

	if s.noUnkozai <= 0 || math.IsNaN(s.noUnkozai) {
		return nil, diverged(CodeMeanMotion, 0, "recovered mean motion %g not positive", s.noUnkozai)
	}
	return s, nil
}

// Epoch returns the element set epoch in UTC.
func (s *Satellite) Epoch() time.Time { return s.epoch }

// Regime reports whether the deep-space terms are applied.
func (s *Satellite) Regime() Regime { return s.regime }

// Gravity returns the constants the model was initialised with.
func (s *Satellite) Gravity() GravityModel { return s.grav }

// Period returns the orbital period from the recovered mean motion.
func (s *Satellite) Period() time.Duration {
	return time.Duration(twoPi / s.noUnkozai * float64(time.Minute))
}

// SemiMajorAxis returns the mean semi-major axis at epoch in km.
func (s *Satellite) SemiMajorAxis() float64 {
	return math.Pow(s.noUnkozai*s.grav.TuMin, -x2o3) * s.grav.RadiusEarthKm
}

func (s *Satellite) String() string {
	return fmt.Sprintf("sgp4[%s %s epoch=%s]", s.grav.Name, s.regime, s.epoch.Format(time.RFC3339))
}

func (s *Satellite) init(epochDays float64) {
	g := s.grav
	const temp4 = 1.5e-12

	ss := 78.0/g.RadiusEarthKm + 1.0
	qzms2t := math.Pow((120.0-78.0)/g.RadiusEarthKm, 4)

	// Recover the original mean motion and semi-major axis.
	eccsq := s.ecco * s.ecco
	omeosq := 1.0 - eccsq
	rteosq := math.Sqrt(omeosq)
	cosio := math.Cos(s.inclo)
	cosio2 := cosio * cosio

	ak := math.Pow(g.Xke/s.noKozai, x2o3)
	d1 := 0.75 * g.J2 * (3.0*cosio2 - 1.0) / (rteosq * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1.0 - del*del - del*(1.0/3.0+134.0*del*del/81.0))
	del = d1 / (adel * adel)
	s.noUnkozai = s.noKozai / (1.0 + del)

	ao := math.Pow(g.Xke/s.noUnkozai, x2o3)
	sinio := math.Sin(s.inclo)
	po := ao * omeosq
	con42 := 1.0 - 5.0*cosio2
	s.con41 = -con42 - cosio2 - cosio2
	posq := po * po
	rp := ao * (1.0 - s.ecco)
	s.gsto = transform.GMSTFromJD(epochDays + jd1950)

	s.isimp = rp < 220.0/g.RadiusEarthKm+1.0

	sfour := ss
	qzms24 := qzms2t
	perige := (rp - 1.0) * g.RadiusEarthKm
	if perige < 156.0 {
		sfour = perige - 78.0
		if perige < 98.0 {
			sfour = 20.0
		}
		qzms24 = math.Pow((120.0-sfour)/g.RadiusEarthKm, 4)
		sfour = sfour/g.RadiusEarthKm + 1.0
	}

	pinvsq := 1.0 / posq
	tsi := 1.0 / (ao - sfour)
	s.eta = ao * s.ecco * tsi
	etasq := s.eta * s.eta
	eeta := s.ecco * s.eta
	psisq := math.Abs(1.0 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * s.noUnkozai * (ao*(1.0+1.5*etasq+eeta*(4.0+etasq)) +
		0.375*g.J2*tsi/psisq*s.con41*(8.0+3.0*etasq*(8.0+etasq)))
	s.cc1 = s.bstar * cc2
	cc3 := 0.0
	if s.ecco > 1.0e-4 {
		cc3 = -2.0 * coef * tsi * g.J3oJ2 * s.noUnkozai * sinio / s.ecco
	}
	s.x1mth2 = 1.0 - cosio2
	s.cc4 = 2.0 * s.noUnkozai * coef1 * ao * omeosq *
		(s.eta*(2.0+0.5*etasq) + s.ecco*(0.5+2.0*etasq) -
			g.J2*tsi/(ao*psisq)*
				(-3.0*s.con41*(1.0-2.0*eeta+etasq*(1.5-0.5*eeta))+
					0.75*s.x1mth2*(2.0*etasq-eeta*(1.0+etasq))*math.Cos(2.0*s.argpo)))
	s.cc5 = 2.0 * coef1 * ao * omeosq * (1.0 + 2.75*(etasq+eeta) + eeta*etasq)

	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * g.J2 * pinvsq * s.noUnkozai
	temp2 := 0.5 * temp1 * g.J2 * pinvsq
	temp3 := -0.46875 * g.J4 * pinvsq * pinvsq * s.noUnkozai
	s.mdot = s.noUnkozai + 0.5*temp1*rteosq*s.con41 +
		0.0625*temp2*rteosq*(13.0-78.0*cosio2+137.0*cosio4)
	s.argpdot = -0.5*temp1*con42 + 0.0625*temp2*(7.0-114.0*cosio2+395.0*cosio4) +
		temp3*(3.0-36.0*cosio2+49.0*cosio4)
	xhdot1 := -temp1 * cosio
	s.nodedot = xhdot1 + (0.5*temp2*(4.0-19.0*cosio2)+2.0*temp3*(3.0-7.0*cosio2))*cosio
	xpidot := s.argpdot + s.nodedot
	s.omgcof = s.bstar * cc3 * math.Cos(s.argpo)
	s.xmcof = 0.0
	if s.ecco > 1.0e-4 {
		s.xmcof = -x2o3 * coef * s.bstar / eeta
	}
	s.nodecf = 3.5 * omeosq * xhdot1 * s.cc1
	s.t2cof = 1.5 * s.cc1
	// Guard the divide by zero at 180 degrees inclination.
	if math.Abs(cosio+1.0) > 1.5e-12 {
		s.xlcof = -0.25 * g.J3oJ2 * sinio * (3.0 + 5.0*cosio) / (1.0 + cosio)
	} else {
		s.xlcof = -0.25 * g.J3oJ2 * sinio * (3.0 + 5.0*cosio) / temp4
	}
	s.aycof = -0.5 * g.J3oJ2 * sinio
	delmotemp := 1.0 + s.eta*math.Cos(s.mo)
	s.delmo = delmotemp * delmotemp * delmotemp
	s.sinmao = math.Sin(s.mo)
	s.x7thm1 = 7.0*cosio2 - 1.0

	if twoPi/s.noUnkozai >= deepSpacePeriodMinutes {
		s.regime = DeepSpace
		s.isimp = true
		dc := dscom(epochDays, s.ecco, s.argpo, 0, s.inclo, s.nodeo, s.noUnkozai, &s.ds)
		s.ds.init(g.Xke, dc, s, eccsq, xpidot)
	}

	if !s.isimp {
		cc1sq := s.cc1 * s.cc1
		s.d2 = 4.0 * ao * tsi * cc1sq
		temp := s.d2 * tsi * s.cc1 / 3.0
		s.d3 = (17.0*ao + sfour) * temp
		s.d4 = 0.5 * temp * ao * tsi * (221.0*ao + 31.0*sfour) * s.cc1
		s.t3cof = s.d2 + 2.0*cc1sq
		s.t4cof = 0.25 * (3.0*s.d3 + s.cc1*(12.0*s.d2+10.0*cc1sq))
		s.t5cof = 0.2 * (3.0*s.d4 + 12.0*s.cc1*s.d3 + 6.0*s.d2*s.d2 +
			15.0*cc1sq*(2.0*s.d2+cc1sq))
	}
}

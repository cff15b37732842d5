package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/sidereal"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"Unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
		{"SGP4 epoch origin", time.Date(1949, 12, 31, 0, 0, 0, 0, time.UTC), 2433281.5},
		// Vallado Example 3-15.
		{"Vallado example date", time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC), 2453101.827411875},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			if !scalar.EqualWithinAbs(got, tt.expected, 1e-6) {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f", tt.time, got, tt.expected)
			}
		})
	}
}

func TestJulianDateIgnoresLocation(t *testing.T) {
	utc := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	local := utc.In(time.FixedZone("UTC+9", 9*3600))
	if JulianDate(utc) != JulianDate(local) {
		t.Errorf("JulianDate differs by zone: %v vs %v", JulianDate(utc), JulianDate(local))
	}
}

func TestJulianDateMatchesGoSatellite(t *testing.T) {
	for _, tm := range []time.Time{
		time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		time.Date(2025, 12, 6, 13, 20, 56, 0, time.UTC),
		time.Date(2036, 2, 29, 23, 59, 59, 0, time.UTC),
	} {
		ref := satellite.JDay(tm.Year(), int(tm.Month()), tm.Day(), tm.Hour(), tm.Minute(), tm.Second())
		if got := JulianDate(tm); !scalar.EqualWithinAbs(got, ref, 1e-8) {
			t.Errorf("JulianDate(%v) = %.10f, go-satellite %.10f", tm, got, ref)
		}
	}
}

// TestGMST compares against go-satellite's GSTimeFromDate, which evaluates
// the same IAU-82 polynomial.
func TestGMST(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Vallado example date", time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC)},
		{"recent date 2026", time.Date(2026, 2, 6, 4, 1, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			our := GMST(tt.time)
			ref := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)
			// 5e-8 rad ≈ 0.01 arcsec, the float64 resolution of a Julian Date.
			if !scalar.EqualWithinAbs(our, ref, 5e-8) {
				t.Errorf("GMST(%v) = %.12f rad, go-satellite = %.12f rad", tt.time, our, ref)
			}
		})
	}
}

func TestGMSTMatchesMeeus(t *testing.T) {
	for _, jd := range []float64{2446895.5, 2451545.0, 2460409.25, 2461015.8} {
		ref := math.Mod(sidereal.Mean(jd).Rad(), 2*math.Pi)
		if ref < 0 {
			ref += 2 * math.Pi
		}
		got := GMSTFromJD(jd)
		diff := math.Abs(got - ref)
		if diff > math.Pi {
			diff = 2*math.Pi - diff
		}
		if diff > 1e-6 {
			t.Errorf("GMSTFromJD(%v) = %.9f, meeus %.9f", jd, got, ref)
		}
	}
}

func TestGMSTRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		g := GMST(start.Add(time.Duration(i) * 97 * time.Minute))
		if g < 0 || g >= 2*math.Pi {
			t.Fatalf("GMST out of range: %v", g)
		}
	}
}

func TestTimeScaleShiftsGMST(t *testing.T) {
	at := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	ts := FixedDUT1(300 * time.Millisecond)

	got := ts.GMST(at)
	want := GMST(at.Add(300 * time.Millisecond))
	if !scalar.EqualWithinAbs(got, want, 1e-12) {
		t.Errorf("GMST with DUT1 = %.12f, want %.12f", got, want)
	}
	// 0.3 s of UT1 is about 2.19e-5 rad of rotation.
	if d := got - GMST(at); !scalar.EqualWithinAbs(d, 0.3*OmegaEarth, 5e-8) {
		t.Errorf("DUT1 shift = %.3e rad, want %.3e", d, 0.3*OmegaEarth)
	}
}

// TestTEMEToECEF checks the rotation against go-satellite's ECIToECEF with
// the same GMST.
func TestTEMEToECEF(t *testing.T) {
	tests := []struct {
		name string
		teme State
		time time.Time
	}{
		{
			// Vallado Example 3-15.
			name: "Vallado example 3-15",
			teme: State{
				Position: r3.Vec{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
				Velocity: r3.Vec{X: -4.746131487, Y: 0.786598499, Z: 5.531931288},
			},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "LEO equatorial",
			teme: State{
				Position: r3.Vec{X: 6778.0},
				Velocity: r3.Vec{Y: 7.5},
			},
			time: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "LEO polar",
			teme: State{
				Position: r3.Vec{Z: 6978.0},
				Velocity: r3.Vec{X: 7.4},
			},
			time: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)

			ecef := TEMEToECEFWithGMST(tt.teme, gmst)
			ref := satellite.ECIToECEF(
				satellite.Vector3{X: tt.teme.Position.X, Y: tt.teme.Position.Y, Z: tt.teme.Position.Z},
				gmst,
			)

			// 1 m.
			const tolerance = 1e-3
			want := r3.Vec{X: ref.X, Y: ref.Y, Z: ref.Z}
			if d := r3.Norm(r3.Sub(ecef.Position, want)); d > tolerance {
				t.Errorf("position %+v, go-satellite %+v (diff %.6f km)", ecef.Position, want, d)
			}
			if !ValidateECEF(ecef.Position) {
				t.Errorf("ECEF position failed validation: %+v", ecef.Position)
			}
			if !scalar.EqualWithinAbs(r3.Norm(ecef.Position), r3.Norm(tt.teme.Position), 1e-9) {
				t.Errorf("rotation changed the radius")
			}
		})
	}
}

func TestTEMEToECEFVelocity(t *testing.T) {
	// With GMST = 0 the TEME X axis is the ECEF X axis.
	teme := State{Position: r3.Vec{X: 6778.0}, Velocity: r3.Vec{Y: 7.5}}
	ecef := TEMEToECEFWithGMST(teme, 0)

	if !scalar.EqualWithinAbs(ecef.Position.X, 6778.0, 1e-9) {
		t.Errorf("X position: got %.6f, want 6778.0", ecef.Position.X)
	}

	// Earth rotation at this radius is ω·R ≈ 0.4943 km/s.
	wantVY := 7.5 - OmegaEarth*6778.0
	if !scalar.EqualWithinAbs(ecef.Velocity.Y, wantVY, 1e-9) {
		t.Errorf("VY: got %.6f km/s, want %.6f km/s", ecef.Velocity.Y, wantVY)
	}
}

func TestECEFToTEMERoundTrip(t *testing.T) {
	teme := State{
		Position: r3.Vec{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
		Velocity: r3.Vec{X: -4.746131487, Y: 0.786598499, Z: 5.531931288},
	}
	for _, gmst := range []float64{0, 1.2, 3.9, 6.2} {
		back := ECEFToTEMEWithGMST(TEMEToECEFWithGMST(teme, gmst), gmst)
		if r3.Norm(r3.Sub(back.Position, teme.Position)) > 1e-9 {
			t.Errorf("gmst=%v position round trip %+v", gmst, back.Position)
		}
		if r3.Norm(r3.Sub(back.Velocity, teme.Velocity)) > 1e-12 {
			t.Errorf("gmst=%v velocity round trip %+v", gmst, back.Velocity)
		}
	}
}

func TestValidateECEF(t *testing.T) {
	tests := []struct {
		name  string
		pos   r3.Vec
		valid bool
	}{
		{"LEO", r3.Vec{X: 6778}, true},
		{"GEO", r3.Vec{X: 42164}, true},
		{"too low", r3.Vec{X: 5000}, false},
		{"too high", r3.Vec{X: 60000}, false},
		{"NaN", r3.Vec{X: math.NaN()}, false},
		{"Inf", r3.Vec{X: math.Inf(1)}, false},
		{"zero", r3.Vec{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateECEF(tt.pos); got != tt.valid {
				t.Errorf("ValidateECEF(%v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}

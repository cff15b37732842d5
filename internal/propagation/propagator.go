package propagation

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ramones1960/analyze-tle/internal/metrics"
	"github.com/ramones1960/analyze-tle/internal/sgp4"
	"github.com/ramones1960/analyze-tle/internal/tle"
	"github.com/ramones1960/analyze-tle/internal/transform"
)

// Propagator turns one element set into Samples. It is immutable and safe
// for concurrent use.
type Propagator struct {
	name string
	el   tle.Elements
	sat  *sgp4.Satellite
	ts   transform.TimeScale
}

// NewPropagator initializes the SGP4 model for el. The time scale supplies
// UT1-UTC for the Earth rotation angle.
func NewPropagator(name string, el tle.Elements, grav sgp4.GravityModel, ts transform.TimeScale) (*Propagator, error) {
	sat, err := sgp4.New(el, grav)
	if err != nil {
		return nil, fmt.Errorf("init sgp4 for %d: %w", el.CatalogNumber, err)
	}
	return &Propagator{name: name, el: el, sat: sat, ts: ts}, nil
}

// Name returns the object name the propagator was built with.
func (p *Propagator) Name() string { return p.name }

// Elements returns the parsed element set.
func (p *Propagator) Elements() tle.Elements { return p.el }

// Satellite returns the initialized model.
func (p *Propagator) Satellite() *sgp4.Satellite { return p.sat }

// Epoch returns the element set epoch in UTC.
func (p *Propagator) Epoch() time.Time { return p.sat.Epoch() }

// StateAt propagates to t and returns the TEME and ECEF states.
func (p *Propagator) StateAt(t time.Time) (StateVector, error) {
	t = t.UTC()
	r, v, err := p.sat.Propagate(t)
	if err != nil {
		return StateVector{}, err
	}
	return ToEarthFixed(r, v, t, p.ts), nil
}

// SampleAt propagates to t and solves the subpoint. index is carried into
// the returned Sample unchanged.
func (p *Propagator) SampleAt(index int, t time.Time) (Sample, error) {
	sv, err := p.StateAt(t)
	if err != nil {
		return Sample{}, err
	}

	geo, method := transform.WGS84.ToGeodetic(sv.ECEF.Position)
	if method != transform.MethodIterative {
		metrics.RecordFrameFallback(string(method))
	}

	return Sample{
		Index:    index,
		Time:     sv.Time,
		State:    sv,
		Geodetic: geo,
	}, nil
}

// ToEarthFixed pairs a TEME state with its ECEF rotation at t.
func ToEarthFixed(r, v r3.Vec, t time.Time, ts transform.TimeScale) StateVector {
	t = t.UTC()
	teme := transform.State{Position: r, Velocity: v}
	return StateVector{
		Time: t,
		TEME: teme,
		ECEF: transform.TEMEToECEF(teme, t, ts),
	}
}

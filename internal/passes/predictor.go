// Package passes predicts when a propagated object is visible from ground
// stations.
package passes

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ramones1960/analyze-tle/internal/propagation"
	"github.com/ramones1960/analyze-tle/internal/station"
	"github.com/ramones1960/analyze-tle/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude_km"`
	Elevation float64   `json:"elevation"` // degrees above the station horizon
}

// PassEvent describes a single pass over a station.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track"`
}

// StationPasses holds the predicted passes for one station.
type StationPasses struct {
	Station station.Station `json:"station"`
	Passes  []PassEvent     `json:"passes"`
	Error   string          `json:"error,omitempty"`
}

// Request holds the parameters for a pass prediction.
type Request struct {
	Stations     []station.Station
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64 // degrees
	MaxPasses    int     // <= 0 means no limit
}

const (
	coarseStep      = 30 * time.Second
	fineStep        = time.Second
	groundTrackStep = 10 * time.Second
	minPassDur      = 10 * time.Second
)

var errNoValidState = errors.New("no step in the window could be propagated")

// Predict computes passes of p over every station in req. Results are in
// station order. Each station is scanned in its own goroutine, bounded by a
// semaphore.
func Predict(ctx context.Context, p *propagation.Propagator, req Request) []StationPasses {
	results := make([]StationPasses, len(req.Stations))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, st := range req.Stations {
		wg.Add(1)
		go func(idx int, st station.Station) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = StationPasses{Station: st, Error: "cancelled"}
				return
			}

			passes, err := predictStation(ctx, p, req, st)
			if err != nil {
				results[idx] = StationPasses{Station: st, Passes: passes, Error: err.Error()}
				return
			}
			results[idx] = StationPasses{Station: st, Passes: passes}
		}(i, st)
	}

	wg.Wait()
	return results
}

// scanner evaluates look angles from one station.
type scanner struct {
	p   *propagation.Propagator
	obs transform.Observer
}

type lookSample struct {
	el   float64
	look transform.LookAngles
	ecef transform.State
}

func (s scanner) at(t time.Time) (lookSample, error) {
	sv, err := s.p.StateAt(t)
	if err != nil {
		return lookSample{}, err
	}
	la := s.obs.LookAt(sv.ECEF.Position)
	return lookSample{el: la.ElevationDeg, look: la, ecef: sv.ECEF}, nil
}

// predictStation finds the passes over one station.
func predictStation(ctx context.Context, p *propagation.Propagator, req Request, st station.Station) ([]PassEvent, error) {
	sc := scanner{p: p, obs: transform.NewObserver(st.Latitude, st.Longitude, 0)}
	end := req.Start.Add(req.Horizon)

	var (
		passes  []PassEvent
		valid   bool
		lastErr error
	)

	// Coarse scan: step through the window looking for elevation > 0.
	t := req.Start
	for t.Before(end) && (req.MaxPasses <= 0 || len(passes) < req.MaxPasses) {
		if err := ctx.Err(); err != nil {
			return passes, fmt.Errorf("cancelled: %w", err)
		}

		ls, err := sc.at(t)
		if err != nil {
			lastErr = err
			t = t.Add(coarseStep)
			continue
		}
		valid = true

		if ls.el <= 0 {
			t = t.Add(coarseStep)
			continue
		}

		pass, windowEnd := sc.refine(ctx, t, req.Start, end, req.MinElevation)
		if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
			passes = append(passes, *pass)
		}
		t = windowEnd.Add(coarseStep)
	}

	if !valid && lastErr != nil {
		return nil, fmt.Errorf("%w: %w", errNoValidState, lastErr)
	}
	return passes, nil
}

// refine scans at fineStep around a coarse hit. It backs up one coarse step
// to find the rise, then scans forward to the set. A visible window that
// never reaches minElev ends when the object drops below the horizon.
// Returns the pass, or nil, and the time the window ends.
func (s scanner) refine(ctx context.Context, coarseHit, windowStart, windowEnd time.Time, minElev float64) (*PassEvent, time.Time) {
	searchStart := coarseHit.Add(-coarseStep)
	if searchStart.Before(windowStart) {
		searchStart = windowStart
	}

	var (
		pass     PassEvent
		last     lookSample
		wasAbove bool
		visible  bool
		rose     bool
		set      bool
	)

	t := searchStart
	for ; t.Before(windowEnd); t = t.Add(fineStep) {
		if ctx.Err() != nil {
			break
		}

		ls, err := s.at(t)
		if err != nil {
			continue
		}
		last = ls

		if ls.el > 0 {
			visible = true
		} else if visible && !rose {
			return nil, t
		}

		above := ls.el >= minElev
		if above && !wasAbove && !rose {
			rose = true
			pass.StartTime = t
			pass.StartAzimuth = ls.look.AzimuthDeg
			pass.MaxElevation = ls.el
			pass.MaxElevationTime = t
			pass.AzimuthAtMax = ls.look.AzimuthDeg
		}

		if above && rose {
			if ls.el > pass.MaxElevation {
				pass.MaxElevation = ls.el
				pass.MaxElevationTime = t
				pass.AzimuthAtMax = ls.look.AzimuthDeg
			}
			if t.Sub(pass.StartTime)%groundTrackStep == 0 {
				geo := transform.ToGeodetic(ls.ecef.Position)
				pass.GroundTrack = append(pass.GroundTrack, GroundTrackPoint{
					Time:      t,
					Latitude:  geo.LatDeg,
					Longitude: geo.LonDeg,
					Altitude:  geo.AltKm,
					Elevation: ls.el,
				})
			}
		}

		if !above && wasAbove && rose {
			pass.EndTime = t
			pass.EndAzimuth = ls.look.AzimuthDeg
			set = true
			break
		}

		wasAbove = above
	}

	if !rose {
		return nil, t
	}

	// Still above at the end of the window: close the pass there.
	if !set {
		pass.EndTime = t
		pass.EndAzimuth = last.look.AzimuthDeg
	}

	pass.DurationSeconds = pass.EndTime.Sub(pass.StartTime).Seconds()
	return &pass, pass.EndTime
}

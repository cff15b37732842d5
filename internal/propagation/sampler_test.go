package propagation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ramones1960/analyze-tle/internal/sgp4"
)

func newTestSampler(workers int, policy FailurePolicy) *Sampler {
	return NewSampler(Config{Workers: workers, Policy: policy}, testLogger())
}

// TestSampleLEOAltitudes propagates a low circular orbit for ten one-minute
// steps from epoch.
func TestSampleLEOAltitudes(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	s := newTestSampler(4, AbortOnError)

	series, err := s.Sample(context.Background(), p, p.Epoch(), time.Minute, 10)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(series.Samples) != 10 {
		t.Fatalf("got %d samples, want 10", len(series.Samples))
	}
	for _, smp := range series.Samples {
		if alt := smp.Geodetic.AltKm; alt < 300 || alt > 500 {
			t.Errorf("step %d: altitude %.1f km outside 300-500", smp.Index, alt)
		}
	}
}

func TestSampleCountAndOrder(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	start := p.Epoch().Add(-3 * time.Hour)

	tests := []struct {
		name  string
		step  time.Duration
		count int
	}{
		{"forward", 30 * time.Second, 257},
		{"backward", -45 * time.Second, 100},
		{"single", time.Hour, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := newTestSampler(8, AbortOnError).Sample(context.Background(), p, start, tt.step, tt.count)
			if err != nil {
				t.Fatal(err)
			}
			if len(series.Samples) != tt.count {
				t.Fatalf("got %d samples, want %d", len(series.Samples), tt.count)
			}
			for i, smp := range series.Samples {
				want := start.Add(time.Duration(i) * tt.step)
				if smp.Index != i || !smp.Time.Equal(want) {
					t.Fatalf("sample %d: index %d time %v, want %v", i, smp.Index, smp.Time, want)
				}
				if i == 0 {
					continue
				}
				prev := series.Samples[i-1].Time
				if tt.step > 0 && !smp.Time.After(prev) || tt.step < 0 && !smp.Time.Before(prev) {
					t.Fatalf("sample %d out of order: %v after %v", i, smp.Time, prev)
				}
			}
		})
	}
}

// TestSampleMatchesSequential checks that the parallel result is identical
// to evaluating each step in order.
func TestSampleMatchesSequential(t *testing.T) {
	p := mustPropagator(t, molniyaLine1, molniyaLine2)
	start := p.Epoch()
	const count = 200

	series, err := newTestSampler(16, AbortOnError).Sample(context.Background(), p, start, 7*time.Minute, count)
	if err != nil {
		t.Fatal(err)
	}
	for i, got := range series.Samples {
		want, err := p.SampleAt(i, start.Add(time.Duration(i)*7*time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("step %d: parallel %+v, sequential %+v", i, got, want)
		}
	}
}

func TestSampleEmptyAndInvalid(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	s := newTestSampler(2, AbortOnError)
	ctx := context.Background()

	series, err := s.Sample(ctx, p, p.Epoch(), time.Minute, 0)
	if err != nil {
		t.Fatalf("count 0: %v", err)
	}
	if series == nil || len(series.Samples) != 0 {
		t.Errorf("count 0: got %+v, want empty series", series)
	}

	// A zero step is allowed when nothing is requested.
	if _, err := s.Sample(ctx, p, p.Epoch(), 0, 0); err != nil {
		t.Errorf("zero step, count 0: %v", err)
	}
	if _, err := s.Sample(ctx, p, p.Epoch(), 0, 5); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("zero step: error = %v, want ErrInvalidRequest", err)
	}
	if _, err := s.Sample(ctx, p, p.Epoch(), time.Minute, -1); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("negative count: error = %v, want ErrInvalidRequest", err)
	}
}

func TestSampleSpanOverflow(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	s := newTestSampler(2, AbortOnError)
	ctx := context.Background()

	tests := []struct {
		name  string
		step  time.Duration
		count int
	}{
		{"max step", math.MaxInt64, 2},
		{"min step", math.MinInt64, 2},
		{"long forward span", 100 * 365 * 24 * time.Hour, 4},
		{"long backward span", -100 * 365 * 24 * time.Hour, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Sample(ctx, p, p.Epoch(), tt.step, tt.count); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("error = %v, want ErrInvalidRequest", err)
			}
		})
	}

	// A single sample never multiplies the step.
	series, err := s.Sample(ctx, p, p.Epoch(), math.MaxInt64, 1)
	if err != nil {
		t.Fatalf("count 1: %v", err)
	}
	if len(series.Samples) != 1 {
		t.Errorf("count 1: got %d samples", len(series.Samples))
	}
}

func TestStepFromSeconds(t *testing.T) {
	tests := []struct {
		in      float64
		want    time.Duration
		wantErr bool
	}{
		{60, time.Minute, false},
		{-0.5, -500 * time.Millisecond, false},
		{1e300, 0, true},
		{-1e300, 0, true},
		{1e10, 0, true},
		{math.Inf(1), 0, true},
		{math.Inf(-1), 0, true},
		{math.NaN(), 0, true},
	}
	for _, tt := range tests {
		got, err := StepFromSeconds(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("StepFromSeconds(%g) = %v, %v; want ErrInvalidRequest", tt.in, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("StepFromSeconds(%g) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

// decaySample starts 10 minutes before epoch with 5 minute steps, so steps
// 0-4 (up to +10 min) succeed and steps 5-7 fail.
func decaySample(t *testing.T, policy FailurePolicy) (*Series, error) {
	t.Helper()
	p := mustPropagator(t, decayLine1, decayLine2)
	return newTestSampler(3, policy).Sample(context.Background(), p, p.Epoch().Add(-10*time.Minute), 5*time.Minute, 8)
}

func TestSampleAbortOnError(t *testing.T) {
	series, err := decaySample(t, AbortOnError)
	if series != nil {
		t.Errorf("abort returned %d samples", len(series.Samples))
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error %T %v is not a *StepError", err, err)
	}
	if stepErr.Index != 5 {
		t.Errorf("failing index = %d, want the lowest failing step 5", stepErr.Index)
	}
	if !errors.Is(err, sgp4.ErrPropagationDivergence) {
		t.Errorf("error does not wrap ErrPropagationDivergence: %v", err)
	}
	var divErr *sgp4.DivergenceError
	if !errors.As(err, &divErr) || divErr.Code != sgp4.CodeMeanElements {
		t.Errorf("divergence detail = %+v", divErr)
	}
}

func TestSampleSkipFailed(t *testing.T) {
	series, err := decaySample(t, SkipFailed)
	if err != nil {
		t.Fatalf("skip policy returned error: %v", err)
	}
	if len(series.Samples) != 5 {
		t.Fatalf("got %d samples, want 5", len(series.Samples))
	}
	for i, smp := range series.Samples {
		if smp.Index != i {
			t.Errorf("sample %d has index %d", i, smp.Index)
		}
	}
	if len(series.Skipped) != 3 {
		t.Fatalf("got %d skipped, want 3", len(series.Skipped))
	}
	for i, se := range series.Skipped {
		if se.Index != 5+i {
			t.Errorf("skipped[%d].Index = %d, want %d", i, se.Index, 5+i)
		}
		if !errors.Is(&se, sgp4.ErrPropagationDivergence) {
			t.Errorf("skipped[%d] does not wrap divergence: %v", i, se.Err)
		}
	}
}

func TestSampleCancelled(t *testing.T) {
	p := mustPropagator(t, issLine1, issLine2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	series, err := newTestSampler(2, AbortOnError).Sample(ctx, p, p.Epoch(), time.Second, 10000)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if series != nil {
		t.Errorf("cancelled request returned samples")
	}
}

// TestSampleGeodeticInvariants checks output ranges over orbits that cross
// the poles region, the antimeridian and GEO altitude.
func TestSampleGeodeticInvariants(t *testing.T) {
	for _, tc := range []struct{ name, l1, l2 string }{
		{"ISS", issLine1, issLine2},
		{"Molniya", molniyaLine1, molniyaLine2},
		{"GEO", geoLine1, geoLine2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := mustPropagator(t, tc.l1, tc.l2)
			series, err := newTestSampler(4, AbortOnError).Sample(context.Background(), p, p.Epoch(), 3*time.Minute, 1000)
			if err != nil {
				t.Fatal(err)
			}
			for _, smp := range series.Samples {
				g := smp.Geodetic
				if g.LatDeg < -90 || g.LatDeg > 90 || g.LonDeg < -180 || g.LonDeg >= 180 {
					t.Fatalf("step %d: out of range %+v", smp.Index, g)
				}
				if g.AltKm < 100 {
					t.Fatalf("step %d: altitude %.3f km", smp.Index, g.AltKm)
				}
			}
		})
	}
}

func TestTimes(t *testing.T) {
	start := time.Date(2025, 12, 6, 13, 0, 0, 0, time.FixedZone("CET", 3600))
	got := Times(start, -90*time.Second, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Location() != time.UTC || !got[2].Equal(start.Add(-3*time.Minute)) {
		t.Errorf("Times = %v", got)
	}
}

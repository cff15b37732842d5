package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ramones1960/analyze-tle/internal/metrics"
)

const tracerName = "github.com/ramones1960/analyze-tle/internal/propagation"

// Sampler evaluates a Propagator over an evenly spaced time grid.
//
// Steps are independent and evaluated in parallel; the output is always in
// step order. What happens when a step fails is set by Config.Policy:
// AbortOnError (the default) returns the *StepError of the lowest failing
// index and no samples, SkipFailed returns every successful sample and lists
// the failures in Series.Skipped.
type Sampler struct {
	pool   *WorkerPool
	policy FailurePolicy
	logger *slog.Logger
	tracer trace.Tracer
}

// NewSampler creates a Sampler. Workers <= 0 means runtime.NumCPU().
func NewSampler(cfg Config, logger *slog.Logger) *Sampler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Sampler{
		pool:   NewWorkerPool(workers, logger),
		policy: cfg.Policy,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Policy returns the configured failure policy.
func (s *Sampler) Policy() FailurePolicy { return s.policy }

// StepFromSeconds converts a step in seconds to a Duration. NaN, infinities
// and magnitudes a Duration cannot hold are rejected with ErrInvalidRequest.
func StepFromSeconds(secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("%w: step %g is not finite", ErrInvalidRequest, secs)
	}
	if math.Abs(secs) >= float64(math.MaxInt64)/float64(time.Second) {
		return 0, fmt.Errorf("%w: step %g s out of range", ErrInvalidRequest, secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Times returns start + i*step for i in [0, count).
func Times(start time.Time, step time.Duration, count int) []time.Time {
	start = start.UTC()
	out := make([]time.Time, count)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * step)
	}
	return out
}

// Sample propagates p at start + i*step for i in [0, count). step may be
// negative. count == 0 returns an empty series.
func (s *Sampler) Sample(ctx context.Context, p *Propagator, start time.Time, step time.Duration, count int) (*Series, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: step count %d is negative", ErrInvalidRequest, count)
	}
	if count > 0 && step == 0 {
		return nil, fmt.Errorf("%w: step duration is zero", ErrInvalidRequest)
	}
	if count == 0 {
		return &Series{Samples: []Sample{}}, nil
	}
	if n := int64(count - 1); n > 0 && (step == math.MinInt64 || absDuration(step) > time.Duration(math.MaxInt64/n)) {
		return nil, fmt.Errorf("%w: %d steps of %s overflow the time span", ErrInvalidRequest, count, step)
	}

	ctx, span := s.tracer.Start(ctx, "propagation.Sample",
		trace.WithAttributes(
			attribute.Int("norad_id", p.Elements().CatalogNumber),
			attribute.Int("step_count", count),
			attribute.String("step", step.String()),
			attribute.String("policy", s.policy.String()),
		),
	)
	defer span.End()

	began := time.Now()
	results, err := s.pool.run(ctx, p, Times(start, step, count))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}

	series := &Series{Samples: make([]Sample, 0, count)}
	for i, res := range results {
		if res.err == nil {
			series.Samples = append(series.Samples, res.sample)
			continue
		}

		stepErr := StepError{Index: i, Time: start.UTC().Add(time.Duration(i) * step), Err: res.err}
		s.logger.Warn("propagation step failed",
			"norad_id", p.Elements().CatalogNumber,
			"step_index", i,
			"time", stepErr.Time.Format(time.RFC3339),
			"error", res.err,
		)
		if s.policy == AbortOnError {
			metrics.RecordPropagation(time.Since(began), len(series.Samples), 1)
			span.RecordError(&stepErr)
			span.SetStatus(codes.Error, "step failed")
			return nil, &stepErr
		}
		series.Skipped = append(series.Skipped, stepErr)
	}

	duration := time.Since(began)
	metrics.RecordPropagation(duration, len(series.Samples), len(series.Skipped))
	span.SetAttributes(
		attribute.Int("samples", len(series.Samples)),
		attribute.Int("skipped", len(series.Skipped)),
	)

	s.logger.Debug("sampling complete",
		"norad_id", p.Elements().CatalogNumber,
		"samples", len(series.Samples),
		"skipped", len(series.Skipped),
		"workers", s.pool.Workers(),
		"duration_ms", duration.Milliseconds(),
	)
	return series, nil
}

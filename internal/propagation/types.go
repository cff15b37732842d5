package propagation

import (
	"fmt"
	"strings"
	"time"

	"github.com/ramones1960/analyze-tle/internal/transform"
)

// StateVector holds one propagation result in both frames. The two states
// always come from the same call and the same instant.
type StateVector struct {
	Time time.Time
	TEME transform.State // km, km/s
	ECEF transform.State // km, km/s
}

// Sample is one fully populated entry of a time series.
type Sample struct {
	Index    int
	Time     time.Time
	State    StateVector
	Geodetic transform.Geodetic
}

// FailurePolicy decides what a Sampler does when one step fails to propagate.
type FailurePolicy int

const (
	// AbortOnError fails the whole request with the *StepError of the
	// earliest failing step. No samples are returned.
	AbortOnError FailurePolicy = iota
	// SkipFailed drops failing steps and reports them in Series.Skipped.
	// The remaining samples keep their original order and indices.
	SkipFailed
)

func (p FailurePolicy) String() string {
	switch p {
	case AbortOnError:
		return "abort"
	case SkipFailed:
		return "skip"
	}
	return fmt.Sprintf("FailurePolicy(%d)", int(p))
}

// ParseFailurePolicy accepts "abort" or "skip".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abort", "":
		return AbortOnError, nil
	case "skip":
		return SkipFailed, nil
	}
	return 0, fmt.Errorf("unknown failure policy %q (want abort or skip)", s)
}

// Series is the ordered output of a Sampler.
type Series struct {
	Samples []Sample
	// Skipped lists the steps dropped under SkipFailed, in index order.
	Skipped []StepError
}

// Config holds sampler configuration.
type Config struct {
	Workers int           // worker pool size (default: runtime.NumCPU())
	Policy  FailurePolicy // per-step failure handling
}

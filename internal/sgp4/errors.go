package sgp4

import (
	"errors"
	"fmt"
)

// ErrPropagationDivergence is returned when the mean or perturbed elements
// become non-physical at the requested time.
var ErrPropagationDivergence = errors.New("propagation diverged")

// Divergence codes, numbered as in the published reference implementation.
const (
	CodeMeanElements      = 1 // mean eccentricity outside [-0.001, 1)
	CodeMeanMotion        = 2 // mean motion not positive
	CodePerturbedElements = 3 // perturbed eccentricity outside [0, 1]
	CodeSemiLatusRectum   = 4 // semi-latus rectum negative
	CodeDecayed           = 6 // radius below one earth radius
)

// DivergenceError reports why propagation failed at a given time since epoch.
type DivergenceError struct {
	Code    int
	Minutes float64
	Reason  string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("sgp4 error %d at %.3f min since epoch: %s", e.Code, e.Minutes, e.Reason)
}

// Unwrap lets errors.Is match ErrPropagationDivergence.
func (e *DivergenceError) Unwrap() error {
	return ErrPropagationDivergence
}

func diverged(code int, tsince float64, format string, args ...any) error {
	return &DivergenceError{Code: code, Minutes: tsince, Reason: fmt.Sprintf(format, args...)}
}

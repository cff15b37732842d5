package propagation

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRequest is returned for a negative step count or a zero step
// with a positive count.
var ErrInvalidRequest = errors.New("invalid sampling request")

// StepError records the failure of a single step.
type StepError struct {
	Index int
	Time  time.Time
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d at %s: %v", e.Index, e.Time.Format(time.RFC3339Nano), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

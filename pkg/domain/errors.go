package domain

import (
	"errors"
	"fmt"
)

// ErrDestroyed is returned by every container operation after Destroy.
var ErrDestroyed = errors.New("container was destroyed")

// ErrDuplicateSegment is returned when a segment id is registered twice.
var ErrDuplicateSegment = errors.New("segment is already registered")

// ErrUnregisteredSegment is returned when loading an unknown segment id.
var ErrUnregisteredSegment = errors.New("segment is not registered")

// ErrDispatcherOverride is returned when an override targets a method that
// is not a declared dispatcher.
var ErrDispatcherOverride = errors.New("method is not a dispatcher")

// ErrUnknownMethod is returned when calling a method a bundle does not have.
var ErrUnknownMethod = errors.New("unknown action method")

// ComputeError wraps a failure raised by a selector mapping or merge function.
type ComputeError struct {
	Stage string // "mapState", "mapActions" or "merge"
	Cause error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("selector %s failed: %v", e.Stage, e.Cause)
}

func (e *ComputeError) Unwrap() error {
	return e.Cause
}

// NewComputeError builds a ComputeError from a returned error or a recovered panic value.
func NewComputeError(stage string, cause any) *ComputeError {
	err, ok := cause.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", cause)
	}
	return &ComputeError{Stage: stage, Cause: err}
}

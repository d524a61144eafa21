package fit

import (
	"errors"
	"fmt"
)

var (
	// ErrDegenerateObservation is returned when the validity mask selects no pixel
	ErrDegenerateObservation = errors.New("observation has no valid pixels")
	// ErrShapeMismatch is returned when an observation and a target differ in size
	ErrShapeMismatch = errors.New("observation and target shapes differ")
	// ErrFitterStarted is returned when Start is called more than once
	ErrFitterStarted = errors.New("fitter already started")
	// ErrProtocolViolation matches every *ProtocolViolationError via errors.Is
	ErrProtocolViolation = &ProtocolViolationError{}
	// ErrStalled is wrapped when the renderer drained before the fitter finished
	ErrStalled = errors.New("renderer drained before the fit finished")
)

// ProtocolViolationError reports a reply the fitter cannot place in its state machine.
// It is fatal to the run: OnFit is never called afterwards.
type ProtocolViolationError struct {
	Method string
	Label  Label
	Reason string
	Err    error
}

func (e *ProtocolViolationError) Error() string {
	if e.Method == "" {
		return "protocol violation: " + e.Reason
	}
	return fmt.Sprintf("protocol violation in %s fitter: %s (label %s)", e.Method, e.Reason, e.Label)
}

func (e *ProtocolViolationError) Is(target error) bool {
	_, ok := target.(*ProtocolViolationError)
	return ok
}

func (e *ProtocolViolationError) Unwrap() error {
	return e.Err
}

func violation(method string, label Label, format string, args ...any) error {
	return &ProtocolViolationError{
		Method: method,
		Label:  label,
		Reason: fmt.Sprintf(format, args...),
	}
}

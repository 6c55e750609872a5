package manager

import (
	"errors"
	"fmt"
)

// errText converts a stored error string back into an error for wrapping.
func errText(s string) error {
	if s == "" {
		s = "initialization failed"
	}
	return errors.New(s)
}

// modelNotFoundError indicates a requested model id is not in the registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// initFailedError signals that loading a model failed. The lifecycle is left
// in the failed state, from which retry is always possible.
type initFailedError struct {
	modelID string
	cause   error
}

func (e initFailedError) Error() string {
	return fmt.Sprintf("model %s failed to initialize: %v", e.modelID, e.cause)
}

func (e initFailedError) Unwrap() error { return e.cause }

func ErrInitFailed(modelID string, cause error) error {
	return initFailedError{modelID: modelID, cause: cause}
}

// IsInitFailed reports whether err indicates a model load failure (503 at
// the bridge).
func IsInitFailed(err error) bool {
	_, ok := err.(initFailedError)
	return ok
}

// switchFellBackError marks a switch that failed but recovered onto a
// previous or default model. The system is Ready, just not on the model the
// caller asked for, so the caller can reset its selection instead of showing
// a false success.
type switchFellBackError struct {
	requested string
	active    string
	cause     error
}

func (e switchFellBackError) Error() string {
	return fmt.Sprintf("switch to %s failed, fell back to %s: %v", e.requested, e.active, e.cause)
}

func (e switchFellBackError) Unwrap() error { return e.cause }

// IsSwitchFellBack reports whether err carries the fallback marker.
func IsSwitchFellBack(err error) bool {
	_, ok := err.(switchFellBackError)
	return ok
}

// FellBackTo returns the model id the manager recovered onto, when err is a
// fallback marker.
func FellBackTo(err error) (string, bool) {
	e, ok := err.(switchFellBackError)
	if !ok {
		return "", false
	}
	return e.active, true
}

// inferenceError isolates a runtime failure to a single request.
type inferenceError struct{ cause error }

func (e inferenceError) Error() string { return "inference failed: " + e.cause.Error() }

func (e inferenceError) Unwrap() error { return e.cause }

func ErrInference(cause error) error { return inferenceError{cause: cause} }

// IsInferenceFailed reports whether err came from the inference runtime.
func IsInferenceFailed(err error) bool {
	_, ok := err.(inferenceError)
	return ok
}

// invalidStateError rejects an operation not permitted in the current state,
// e.g. Switch while a load is in flight.
type invalidStateError struct {
	op    string
	state State
}

func (e invalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.op, e.state)
}

// IsInvalidState reports whether err rejects an operation for state reasons.
func IsInvalidState(err error) bool {
	_, ok := err.(invalidStateError)
	return ok
}

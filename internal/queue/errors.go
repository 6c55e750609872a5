package queue

// tooBusyError signals queue overflow/admission timeout for 429 mapping.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: inference queue is full" }

func ErrTooBusy() error { return tooBusyError{} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// errQueueClosed rejects requests after Close.
type errQueueClosed struct{}

func (errQueueClosed) Error() string { return "inference queue is closed" }

// IsClosed reports whether err indicates the queue was shut down.
func IsClosed(err error) bool {
	_, ok := err.(errQueueClosed)
	return ok
}

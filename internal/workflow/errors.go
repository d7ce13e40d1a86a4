package workflow

import "errors"

// Failure classes returned across the orchestration boundary. Handlers map
// these to HTTP status codes; anything else is a persistence failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not authorized")
)

// Warning is the outcome of a best-effort side effect (notification,
// auto-assignment, status sync) that failed without aborting the primary
// operation. Warnings are logged by the caller, never returned to API
// clients.
type Warning struct {
	Op  string
	Err error
}

func (w Warning) String() string {
	return w.Op + ": " + w.Err.Error()
}

// warn appends a warning for a failed side effect.
func warn(warnings []Warning, op string, err error) []Warning {
	return append(warnings, Warning{Op: op, Err: err})
}

package pass

import (
	"errors"
	"fmt"

	"github.com/premierpass/premier-pass/internal/repository"
)

// ValidationError reports malformed input to an engine operation.  No
// record is written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StoreError wraps a failed record store call.  It unwraps to the
// underlying error so errors.Is(err, repository.ErrNotFound) and
// errors.Is(err, context.DeadlineExceeded) keep working.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

var (
	// ErrPassInFlight is returned when a student asks for a second pass
	// while one is still active or queued.
	ErrPassInFlight = errors.New("student already has a pass in flight")

	// ErrNotActive is returned when completing a pass that is not active.
	ErrNotActive = errors.New("pass is not active")
)

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func isNotFound(err error) bool { return errors.Is(err, repository.ErrNotFound) }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

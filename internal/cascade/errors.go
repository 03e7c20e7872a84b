package cascade

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when the confidence map has no entries.
	ErrEmptyInput = errors.New("empty confidence map")
	// ErrNoCandidates is the cause recorded when no top-K candidate has a
	// class index.
	ErrNoCandidates = errors.New("no candidates with a class index")
	// ErrSuperseded is returned to a session request replaced by a newer one.
	ErrSuperseded = errors.New("request superseded")
	// ErrInvalidThreshold rejects NaN and infinite thresholds.
	ErrInvalidThreshold = errors.New("invalid threshold")
)

// EmptyInputError records which operation received an empty confidence map.
type EmptyInputError struct {
	Op string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrEmptyInput)
}

// Is matches ErrEmptyInput.
func (e *EmptyInputError) Is(target error) bool {
	return target == ErrEmptyInput
}

// SecondaryModelError wraps any failure of the secondary stage. The
// orchestrator still returns a usable result alongside it.
type SecondaryModelError struct {
	Err error
}

func (e *SecondaryModelError) Error() string {
	if e == nil || e.Err == nil {
		return "secondary model failed"
	}
	return "secondary model: " + e.Err.Error()
}

func (e *SecondaryModelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsSecondaryFailure reports whether err is a recovered secondary-stage error.
func IsSecondaryFailure(err error) bool {
	var target *SecondaryModelError
	return errors.As(err, &target)
}

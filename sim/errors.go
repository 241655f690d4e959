package sim

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify failures with errors.Is; everything
// recoverable is absorbed internally with a fallback and a confidence penalty,
// so only structurally invalid input ever reaches the caller as an error.
var (
	// ErrInsufficientData: fewer laps than the hard minimum (zero laps for the
	// twin builder). Soft shortfalls degrade to neutral defaults instead.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrFitFailure: curve fit did not converge. Absorbed internally by the
	// linear fallback; exported so tests can assert the classification.
	ErrFitFailure = errors.New("curve fit failed")

	// ErrMissingDriverState: a driver referenced by the simulation has no
	// usable state. The simulator substitutes a neutral twin instead of
	// returning this; it surfaces only when the driver entry itself is absent.
	ErrMissingDriverState = errors.New("missing driver state")

	// ErrInvalidInput: structurally invalid input (empty driver list, negative
	// lap numbers, unknown compound). Always a hard error.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout: the simulation deadline expired before any trial finished.
	// When at least one trial completed, Simulate returns the partial
	// aggregate instead of this error.
	ErrTimeout = errors.New("simulation deadline exceeded")
)

func invalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

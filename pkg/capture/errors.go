package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned at construction when more than one capture
	// target (monitor index, window name, window handle) is set.
	ErrConfig = errors.New("capture: more than one capture target specified")

	// ErrHandlerNotSet is returned by Start and StartDetached when either the
	// frame-arrived or the closed handler is missing.
	ErrHandlerNotSet = errors.New("capture: event handler not set")

	// ErrInvalidHandlerRole is returned when registering under an unknown role.
	ErrInvalidHandlerRole = errors.New("capture: invalid event handler role, use frame-arrived or closed")

	// ErrHandlerType is returned when a handler's signature does not match its role.
	ErrHandlerType = errors.New("capture: handler signature does not match role")

	// ErrAlreadyStarted is returned when starting a session that is running.
	ErrAlreadyStarted = errors.New("capture: session already started")

	// ErrClosed is returned when starting or using a session that has closed.
	// Sessions cannot be restarted; construct a new one.
	ErrClosed = errors.New("capture: session closed")

	// ErrEngine marks failures reported by the capture engine.
	ErrEngine = errors.New("capture: engine error")

	// ErrAccessLost is returned by pull-mode acquisition when the duplication
	// interface was invalidated (display mode change, desktop switch).
	// Call Recreate before acquiring again.
	ErrAccessLost = fmt.Errorf("%w: duplication access lost", ErrEngine)

	// ErrNoFrameYet is returned by a Duplicator when nothing changed within
	// the timeout. DuplicationSession reports it as a nil frame, not an error.
	ErrNoFrameYet = errors.New("capture: no new frame within timeout")
)

// HandlerError wraps a failure raised by a consumer handler. Panics are
// recovered and reported with Panic set.
type HandlerError struct {
	Role  Role
	Err   error
	Panic any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("capture: %s handler panicked: %v", e.Role, e.Panic)
	}
	return fmt.Sprintf("capture: %s handler failed: %v", e.Role, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// engineError tags err as an engine failure so callers can test errors.Is(err, ErrEngine).
func engineError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEngine) {
		return fmt.Errorf("capture: %s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrEngine, op, err)
}

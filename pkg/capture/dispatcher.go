package capture

import (
	"fmt"
	"strings"
	"sync"

	"github.com/breeze-rmm/capture/pkg/frame"
)

// Role names the event a handler is registered for.
type Role int

const (
	RoleFrameArrived Role = iota + 1
	RoleClosed
)

func (r Role) String() string {
	switch r {
	case RoleFrameArrived:
		return "frame-arrived"
	case RoleClosed:
		return "closed"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole maps a role name to a Role. Both the dashed names and the
// on_frame_arrived / on_closed event names are accepted.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "frame-arrived", "frame_arrived", "on_frame_arrived":
		return RoleFrameArrived, nil
	case "closed", "on_closed":
		return RoleClosed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidHandlerRole, name)
	}
}

// FrameHandler receives each frame on the engine goroutine. The frame and
// everything derived from it without a copy are only valid until the
// handler returns. Returning an error ends the session.
type FrameHandler func(f *frame.Frame, ctl FrameControl) error

// ClosedHandler is invoked exactly once when the session closes.
type ClosedHandler func() error

// dispatcher holds the two handlers and calls them synchronously. It never
// buffers frames: the engine blocks on each delivery, which throttles a fast
// producer to the consumer's pace.
type dispatcher struct {
	mu      sync.RWMutex
	onFrame FrameHandler
	onClose ClosedHandler
}

func (d *dispatcher) register(role Role, fn any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch role {
	case RoleFrameArrived:
		switch h := fn.(type) {
		case FrameHandler:
			d.onFrame = h
		case func(*frame.Frame, FrameControl) error:
			d.onFrame = h
		default:
			return fmt.Errorf("%w: %s wants func(*frame.Frame, capture.FrameControl) error, got %T", ErrHandlerType, role, fn)
		}
	case RoleClosed:
		switch h := fn.(type) {
		case ClosedHandler:
			d.onClose = h
		case func() error:
			d.onClose = h
		case func():
			d.onClose = func() error { h(); return nil }
		default:
			return fmt.Errorf("%w: %s wants func() error, got %T", ErrHandlerType, role, fn)
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidHandlerRole, role)
	}
	return nil
}

// ready reports ErrHandlerNotSet unless both roles are registered.
func (d *dispatcher) ready() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.onFrame == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNotSet, RoleFrameArrived)
	}
	if d.onClose == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNotSet, RoleClosed)
	}
	return nil
}

func (d *dispatcher) handlers() (FrameHandler, ClosedHandler) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.onFrame, d.onClose
}

// dispatchFrame calls the frame handler, converting a panic into a HandlerError.
func dispatchFrame(h FrameHandler, f *frame.Frame, ctl FrameControl) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Role: RoleFrameArrived, Panic: r}
		}
	}()
	if herr := h(f, ctl); herr != nil {
		return &HandlerError{Role: RoleFrameArrived, Err: herr}
	}
	return nil
}

func dispatchClosed(h ClosedHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{Role: RoleClosed, Panic: r}
		}
	}()
	if herr := h(); herr != nil {
		return &HandlerError{Role: RoleClosed, Err: herr}
	}
	return nil
}

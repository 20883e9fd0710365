package capture

import (
	"context"
	"sync"
	"sync/atomic"
)

// Control is the state shared between a running session and its consumers:
// a stop-requested flag written by consumers and read by the session, and a
// finished flag written once by the session. Both flags are monotonic.
//
// Stopping is cooperative. RequestStop never interrupts a handler; it is
// observed after the current delivery returns. A frame handler that never
// returns stalls the session and every Wait call indefinitely.
type Control struct {
	stop     atomic.Bool
	finished atomic.Bool

	once sync.Once
	done chan struct{}
	err  error
}

func newControl() *Control {
	return &Control{done: make(chan struct{})}
}

// RequestStop asks the session to close after the current delivery. It is
// idempotent and safe from any goroutine, including a frame handler.
func (c *Control) RequestStop() {
	c.stop.Store(true)
}

// StopRequested reports whether RequestStop was called.
func (c *Control) StopRequested() bool {
	return c.stop.Load()
}

// IsFinished reports whether the session closed and its closed handler returned.
func (c *Control) IsFinished() bool {
	return c.finished.Load()
}

// Done returns a channel closed when the session has finished.
func (c *Control) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the session has finished and returns the error that
// ended delivery, if any. Calling Wait from a frame handler deadlocks.
func (c *Control) Wait() error {
	<-c.done
	return c.err
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() if ctx ends first.
func (c *Control) WaitContext(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the terminal error once finished, nil before.
func (c *Control) Err() error {
	if !c.finished.Load() {
		return nil
	}
	return c.err
}

// finish records err, sets finished and releases waiters. Only the first
// call has an effect.
func (c *Control) finish(err error) {
	c.once.Do(func() {
		c.err = err
		c.finished.Store(true)
		close(c.done)
	})
}

// FrameControl is handed to the frame handler for the self-stopping pattern.
type FrameControl struct {
	c *Control
}

// RequestStop asks the session to close once the current handler returns.
func (f FrameControl) RequestStop() { f.c.RequestStop() }

// StopRequested reports whether a stop was already requested.
func (f FrameControl) StopRequested() bool { return f.c.StopRequested() }

// Handle controls a session started with StartDetached.
type Handle struct {
	*Control
	id string
}

// ID returns the session ID.
func (h *Handle) ID() string { return h.id }

// Stop requests a stop and waits for the session to finish tearing down.
func (h *Handle) Stop() error {
	h.RequestStop()
	return h.Wait()
}

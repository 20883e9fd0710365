package capture

import (
	"image"
	"time"

	"github.com/breeze-rmm/capture/pkg/frame"
)

// RawFrame is one buffer as produced by an engine. Pix is borrowed: it is
// only valid until Sink.Frame returns (push) or until the next
// AcquireNextFrame call (pull).
type RawFrame struct {
	Pix    []byte
	Width  int
	Height int
	// Stride is the byte distance between row starts. Zero means the
	// buffer holds Height equal rows and the stride is len(Pix)/Height.
	Stride int
	Layout frame.Layout
	// Timestamp is the capture time in 100ns ticks.
	Timestamp int64
	// Dirty lists changed rectangles when the engine reports them.
	Dirty []image.Rectangle
}

func (r RawFrame) stride() int {
	if r.Stride != 0 || r.Height == 0 {
		return r.Stride
	}
	return len(r.Pix) / r.Height
}

// StopSignal is the read side of a session's stop flag, polled by engines.
type StopSignal interface {
	StopRequested() bool
}

// Sink receives frames from a push-mode stream on the stream's goroutine.
type Sink interface {
	// Frame delivers one frame and blocks until the consumer returns. A
	// non-nil error means delivery must end: the stream stops calling
	// Frame and returns.
	Frame(raw RawFrame) error
	// Closed is called once by the stream before Run returns.
	Closed()
}

// Stream is an open push-mode capture.
type Stream interface {
	// Run delivers frames to sink on the calling goroutine until stop
	// reports true, sink.Frame fails, or the target goes away. It calls
	// sink.Closed exactly once, makes no Frame calls after observing stop,
	// and then returns. A nil error means an orderly end.
	Run(stop StopSignal, sink Sink) error
	// Close releases the capture resources. It is called after Run returns.
	Close() error
}

// Engine opens push-mode captures.
type Engine interface {
	Open(cfg Config) (Stream, error)
}

// Duplicator is an open pull-mode capture.
type Duplicator interface {
	// AcquireNextFrame waits up to timeout for a new frame. It returns
	// ErrNoFrameYet if nothing changed and ErrAccessLost if Recreate is
	// required. The returned Pix is valid until the next call.
	AcquireNextFrame(timeout time.Duration) (RawFrame, error)
	// Recreate rebuilds the duplication interface for the current target.
	Recreate() error
	// SwitchTarget moves the duplication to another target.
	SwitchTarget(t Target) error
	Close() error
}

// DuplicationEngine opens pull-mode captures.
type DuplicationEngine interface {
	OpenDuplication(cfg Config) (Duplicator, error)
}

func toFrame(raw RawFrame) (*frame.Frame, error) {
	view, err := frame.NewView(raw.Pix, raw.Width, raw.Height, raw.stride(), raw.Layout.BytesPerPixel())
	if err != nil {
		return nil, err
	}
	return frame.New(view, raw.Layout, raw.Timestamp, raw.Dirty...)
}

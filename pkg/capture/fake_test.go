package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/capture/pkg/frame"
)

// testRaw builds a 2x2 BGRA frame with 4 pad bytes per row. Pixel (x, y)
// holds B=seq, G=x, R=y.
func testRaw(seq int) RawFrame {
	const stride = 12
	pix := make([]byte, stride*2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			off := y*stride + x*4
			pix[off] = byte(seq)
			pix[off+1] = byte(x)
			pix[off+2] = byte(y)
			pix[off+3] = 255
		}
		for p := y*stride + 8; p < (y+1)*stride; p++ {
			pix[p] = 0xEE
		}
	}
	return RawFrame{Pix: pix, Width: 2, Height: 2, Stride: stride, Layout: frame.LayoutBGRA8, Timestamp: int64(seq) * frame.TicksPerSecond}
}

type fakeEngine struct {
	stream  *fakeStream
	openErr error
	opened  atomic.Int32
	lastCfg Config
}

func (e *fakeEngine) Open(cfg Config) (Stream, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	e.opened.Add(1)
	e.lastCfg = cfg
	return e.stream, nil
}

// fakeStream delivers frames until stop is observed, the sink fails or
// limit frames have been sent (limit < 0 means unbounded).
type fakeStream struct {
	limit    int
	interval time.Duration
	runErr   error
	closeErr error

	sinkClosed   atomic.Int32
	streamClosed atomic.Int32
	sent         atomic.Int32
}

func (s *fakeStream) Run(stop StopSignal, sink Sink) error {
	defer func() {
		sink.Closed()
		s.sinkClosed.Add(1)
	}()
	for i := 0; s.limit < 0 || i < s.limit; i++ {
		if stop.StopRequested() {
			return nil
		}
		err := sink.Frame(testRaw(i))
		s.sent.Add(1)
		if err != nil {
			return err
		}
		if s.interval > 0 {
			time.Sleep(s.interval)
		}
	}
	return s.runErr
}

func (s *fakeStream) Close() error {
	s.streamClosed.Add(1)
	return s.closeErr
}

type acquireResult struct {
	raw RawFrame
	err error
}

// fakeDuplicator replays scripted results, then reports ErrNoFrameYet.
type fakeDuplicator struct {
	mu        sync.Mutex
	script    []acquireResult
	recreated int
	switched  []Target
	closed    bool
	switchErr error
}

func (d *fakeDuplicator) AcquireNextFrame(timeout time.Duration) (RawFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.script) == 0 {
		time.Sleep(time.Millisecond)
		return RawFrame{}, ErrNoFrameYet
	}
	next := d.script[0]
	d.script = d.script[1:]
	return next.raw, next.err
}

func (d *fakeDuplicator) Recreate() error {
	d.mu.Lock()
	d.recreated++
	d.mu.Unlock()
	return nil
}

func (d *fakeDuplicator) SwitchTarget(t Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.switchErr != nil {
		return d.switchErr
	}
	d.switched = append(d.switched, t)
	return nil
}

func (d *fakeDuplicator) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

type fakeDuplicationEngine struct {
	dup     *fakeDuplicator
	openErr error
}

func (e *fakeDuplicationEngine) OpenDuplication(cfg Config) (Duplicator, error) {
	if e.openErr != nil {
		return nil, e.openErr
	}
	return e.dup, nil
}

var errBoom = errors.New("boom")

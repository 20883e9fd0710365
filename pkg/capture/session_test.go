package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/breeze-rmm/capture/pkg/frame"
)

func newTestSession(t *testing.T, stream *fakeStream) (*Session, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{stream: stream}
	s, err := NewSession(eng, DefaultSettings())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s, eng
}

func TestNewSessionRejectsMultipleTargets(t *testing.T) {
	settings := DefaultSettings()
	settings.MonitorIndex = Index(1)
	settings.WindowName = "Notepad"

	_, err := NewSession(&fakeEngine{}, settings)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	_, err = NewDuplicationSession(&fakeDuplicationEngine{dup: &fakeDuplicator{}}, settings)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig from duplication session, got %v", err)
	}
}

func TestSettingsTarget(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		want    Target
		wantErr bool
	}{
		{name: "default primary monitor", mutate: func(*Settings) {}, want: Monitor(0)},
		{name: "monitor", mutate: func(s *Settings) { s.MonitorIndex = Index(2) }, want: Monitor(2)},
		{name: "window name", mutate: func(s *Settings) { s.WindowName = "Calc" }, want: WindowName("Calc")},
		{name: "window handle", mutate: func(s *Settings) { s.WindowHandle = 0x1234 }, want: WindowHandle(0x1234)},
		{name: "negative monitor", mutate: func(s *Settings) { s.MonitorIndex = Index(-1) }, wantErr: true},
		{name: "name and handle", mutate: func(s *Settings) { s.WindowName = "a"; s.WindowHandle = 1 }, wantErr: true},
		{name: "all three", mutate: func(s *Settings) {
			s.MonitorIndex = Index(0)
			s.WindowName = "a"
			s.WindowHandle = 1
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			got, err := s.Target()
			if tt.wantErr {
				if !errors.Is(err, ErrConfig) {
					t.Fatalf("expected ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Target() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewSessionRejectsBadColorFormat(t *testing.T) {
	settings := DefaultSettings()
	settings.ColorFormat = frame.Layout(42)
	if _, err := NewSession(&fakeEngine{}, settings); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestStartRequiresBothHandlers(t *testing.T) {
	s, eng := newTestSession(t, &fakeStream{limit: 1})

	if err := s.Start(); !errors.Is(err, ErrHandlerNotSet) {
		t.Fatalf("expected ErrHandlerNotSet, got %v", err)
	}
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { return nil })
	if _, err := s.StartDetached(); !errors.Is(err, ErrHandlerNotSet) {
		t.Fatalf("expected ErrHandlerNotSet without closed handler, got %v", err)
	}
	if s.State() != StateConfigured {
		t.Fatalf("state = %s, want configured", s.State())
	}
	if eng.opened.Load() != 0 {
		t.Fatal("engine must not be opened before handlers are set")
	}

	s.OnClosed(func() error { return nil })
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestRegisterValidatesRoleAndSignature(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: 1})

	if err := s.Register(Role(99), func() error { return nil }); !errors.Is(err, ErrInvalidHandlerRole) {
		t.Fatalf("expected ErrInvalidHandlerRole, got %v", err)
	}
	if err := s.Register(RoleFrameArrived, func() error { return nil }); !errors.Is(err, ErrHandlerType) {
		t.Fatalf("expected ErrHandlerType for frame role, got %v", err)
	}
	if err := s.Register(RoleClosed, func(int) {}); !errors.Is(err, ErrHandlerType) {
		t.Fatalf("expected ErrHandlerType for closed role, got %v", err)
	}
	if err := s.Register(RoleFrameArrived, func(*frame.Frame, FrameControl) error { return nil }); err != nil {
		t.Fatalf("register frame handler: %v", err)
	}
	var closed bool
	if err := s.Register(RoleClosed, func() { closed = true }); err != nil {
		t.Fatalf("register plain closed handler: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !closed {
		t.Fatal("plain closed handler was not called")
	}
}

func TestParseRole(t *testing.T) {
	tests := map[string]Role{
		"frame-arrived":    RoleFrameArrived,
		"on_frame_arrived": RoleFrameArrived,
		"Frame_Arrived":    RoleFrameArrived,
		"closed":           RoleClosed,
		"on_closed":        RoleClosed,
	}
	for in, want := range tests {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Errorf("ParseRole(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRole("on_resize"); !errors.Is(err, ErrInvalidHandlerRole) {
		t.Fatalf("expected ErrInvalidHandlerRole, got %v", err)
	}
}

func TestHandlerSelfStop(t *testing.T) {
	stream := &fakeStream{limit: -1}
	s, _ := newTestSession(t, stream)

	var frames, closed int
	var sawFinished bool
	s.OnFrameArrived(func(f *frame.Frame, ctl FrameControl) error {
		frames++
		if frames == 3 {
			ctl.RequestStop()
		}
		return nil
	})
	s.OnClosed(func() error {
		closed++
		sawFinished = s.Control().IsFinished()
		return nil
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if frames != 3 {
		t.Fatalf("frames = %d, want 3", frames)
	}
	if closed != 1 {
		t.Fatalf("closed handler called %d times, want 1", closed)
	}
	if sawFinished {
		t.Fatal("IsFinished must be false while the closed handler runs")
	}
	if !s.Control().IsFinished() {
		t.Fatal("expected IsFinished after Start returned")
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %s, want closed", s.State())
	}
	if stream.streamClosed.Load() != 1 || stream.sinkClosed.Load() != 1 {
		t.Fatal("expected stream and sink to be closed once")
	}
	if err := s.Start(); !errors.Is(err, ErrClosed) {
		t.Fatalf("restart: expected ErrClosed, got %v", err)
	}
}

func TestFrameContentsInsideHandler(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: 2})

	var got [][3]uint8
	s.OnFrameArrived(func(f *frame.Frame, _ FrameControl) error {
		if f.Width() != 2 || f.Height() != 2 {
			t.Errorf("frame size %dx%d, want 2x2", f.Width(), f.Height())
		}
		bgr, err := f.ToBGR(false)
		if err != nil {
			return err
		}
		b, g, r := bgr.At(1, 1)
		got = append(got, [3]uint8{b, g, r})
		return nil
	})
	s.OnClosed(func() error { return nil })

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := [][3]uint8{{0, 1, 1}, {1, 1, 1}}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d pixel = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDetachedStopFromAnotherGoroutine(t *testing.T) {
	stream := &fakeStream{limit: -1, interval: time.Millisecond}
	s, _ := newTestSession(t, stream)

	first := make(chan struct{})
	var frames, closed atomic.Int32
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error {
		if frames.Add(1) == 1 {
			close(first)
		}
		return nil
	})
	s.OnClosed(func() error {
		closed.Add(1)
		return nil
	})

	h, err := s.StartDetached()
	if err != nil {
		t.Fatalf("StartDetached: %v", err)
	}
	if h.ID() != s.ID() {
		t.Fatal("handle ID should match session ID")
	}
	if err := s.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("no frame delivered")
	}

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !h.IsFinished() {
		t.Fatal("expected finished after Stop")
	}
	if closed.Load() != 1 {
		t.Fatalf("closed handler called %d times, want 1", closed.Load())
	}
	n := frames.Load()
	time.Sleep(10 * time.Millisecond)
	if frames.Load() != n {
		t.Fatal("frames delivered after the session finished")
	}

	// Stop and Wait stay valid after finish.
	h.RequestStop()
	if err := h.Wait(); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
}

func TestWaitContextTimesOutWhileRunning(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: -1, interval: time.Millisecond})
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { return nil })
	s.OnClosed(func() error { return nil })

	h, err := s.StartDetached()
	if err != nil {
		t.Fatalf("StartDetached: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("Done channel should be closed after Stop")
	}
}

func TestHandlerErrorEndsSession(t *testing.T) {
	stream := &fakeStream{limit: -1}
	s, _ := newTestSession(t, stream)

	var frames, closed int
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error {
		frames++
		if frames == 2 {
			return errBoom
		}
		return nil
	})
	s.OnClosed(func() error {
		closed++
		return nil
	})

	err := s.Start()
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	var herr *HandlerError
	if !errors.As(err, &herr) || herr.Role != RoleFrameArrived {
		t.Fatalf("expected frame-arrived HandlerError, got %v", err)
	}
	if frames != 2 || closed != 1 {
		t.Fatalf("frames=%d closed=%d, want 2 and 1", frames, closed)
	}
	if s.Control().Err() != err {
		t.Fatalf("Control().Err() = %v, want %v", s.Control().Err(), err)
	}
	if s.Metrics().Snapshot().HandlerErrors != 1 {
		t.Fatal("expected one handler error in metrics")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: -1})

	var closed int
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { panic("bad frame") })
	s.OnClosed(func() error {
		closed++
		return nil
	})

	err := s.Start()
	var herr *HandlerError
	if !errors.As(err, &herr) || herr.Panic != "bad frame" {
		t.Fatalf("expected recovered panic, got %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed called %d times, want 1", closed)
	}
}

func TestClosedHandlerErrorIsReturned(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: 1})
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { return nil })
	s.OnClosed(func() error { return errBoom })

	err := s.Start()
	var herr *HandlerError
	if !errors.As(err, &herr) || herr.Role != RoleClosed || !errors.Is(err, errBoom) {
		t.Fatalf("expected closed HandlerError wrapping errBoom, got %v", err)
	}
	if !s.Control().IsFinished() {
		t.Fatal("session should still finish")
	}
}

func TestEngineInitiatedClose(t *testing.T) {
	stream := &fakeStream{limit: 3}
	s, _ := newTestSession(t, stream)

	var frames, closed int
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error {
		frames++
		return nil
	})
	s.OnClosed(func() error {
		closed++
		return nil
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if frames != 3 || closed != 1 {
		t.Fatalf("frames=%d closed=%d, want 3 and 1", frames, closed)
	}
	if s.Control().StopRequested() {
		t.Fatal("engine close must not set the stop flag")
	}
	if got := s.Metrics().Snapshot().FramesDelivered; got != 3 {
		t.Fatalf("FramesDelivered = %d, want 3", got)
	}
}

func TestEngineRunErrorIsTagged(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: 0, runErr: errBoom})
	var closed int
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { return nil })
	s.OnClosed(func() error {
		closed++
		return nil
	})

	err := s.Start()
	if !errors.Is(err, ErrEngine) || !errors.Is(err, errBoom) {
		t.Fatalf("expected engine error wrapping errBoom, got %v", err)
	}
	if closed != 1 {
		t.Fatal("closed handler must run after an engine failure")
	}
}

func TestEngineOpenFailureLeavesSessionConfigured(t *testing.T) {
	eng := &fakeEngine{openErr: errBoom}
	s, err := NewSession(eng, DefaultSettings())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { return nil })
	s.OnClosed(func() error { return nil })

	if err := s.Start(); !errors.Is(err, ErrEngine) {
		t.Fatalf("expected ErrEngine, got %v", err)
	}
	if s.State() != StateConfigured {
		t.Fatalf("state = %s, want configured", s.State())
	}

	eng.openErr = nil
	eng.stream = &fakeStream{limit: 1}
	if err := s.Start(); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
}

func TestEngineReceivesConfig(t *testing.T) {
	eng := &fakeEngine{stream: &fakeStream{limit: 0}}
	settings := DefaultSettings()
	settings.WindowName = "Untitled"
	settings.DrawBorder = Disabled
	settings.MinimumUpdateInterval = 50 * time.Millisecond
	s, err := NewSession(eng, settings)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { return nil })
	s.OnClosed(func() error { return nil })
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cfg := eng.lastCfg
	if cfg.Target != WindowName("Untitled") {
		t.Fatalf("target = %v", cfg.Target)
	}
	if cfg.DrawBorder != Disabled || cfg.CursorCapture != Enabled {
		t.Fatalf("toggles = border %s cursor %s", cfg.DrawBorder, cfg.CursorCapture)
	}
	if cfg.MinimumUpdateInterval != 50*time.Millisecond {
		t.Fatalf("interval = %s", cfg.MinimumUpdateInterval)
	}
}

func TestInvalidRawFrameEndsSession(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: -1})
	s.engine = engineFunc(func(Config) (Stream, error) { return badStream{}, nil })
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error { return nil })
	s.OnClosed(func() error { return nil })

	if err := s.Start(); !errors.Is(err, frame.ErrInvalidStride) {
		t.Fatalf("expected ErrInvalidStride, got %v", err)
	}
}

type engineFunc func(Config) (Stream, error)

func (f engineFunc) Open(cfg Config) (Stream, error) { return f(cfg) }

type badStream struct{}

func (badStream) Run(stop StopSignal, sink Sink) error {
	defer sink.Closed()
	return sink.Frame(RawFrame{Pix: make([]byte, 16), Width: 2, Height: 2, Stride: 4, Layout: frame.LayoutBGRA8})
}

func (badStream) Close() error { return nil }

func TestToggleResolve(t *testing.T) {
	if !Default.Resolve(true) || Default.Resolve(false) {
		t.Fatal("Default should follow the engine default")
	}
	if !Enabled.Resolve(false) || Disabled.Resolve(true) {
		t.Fatal("explicit toggles should override the default")
	}
	if ToggleOf(true) != Enabled || ToggleOf(false) != Disabled {
		t.Fatal("ToggleOf mismatch")
	}
}

// stopIgnoringStream keeps calling Frame after a stop request, as a buggy
// engine would.
type stopIgnoringStream struct {
	afterFirst func()
}

func (s stopIgnoringStream) Run(stop StopSignal, sink Sink) error {
	defer sink.Closed()
	for i := 0; i < 3; i++ {
		_ = sink.Frame(testRaw(i))
		if i == 0 {
			s.afterFirst()
		}
	}
	return nil
}

func (stopIgnoringStream) Close() error { return nil }

func TestNoFrameDeliveredAfterExternalStop(t *testing.T) {
	s, _ := newTestSession(t, &fakeStream{limit: -1})
	s.engine = engineFunc(func(Config) (Stream, error) {
		return stopIgnoringStream{afterFirst: s.Control().RequestStop}, nil
	})
	var calls atomic.Int32
	s.OnFrameArrived(func(*frame.Frame, FrameControl) error {
		calls.Add(1)
		return nil
	})
	s.OnClosed(func() error { return nil })

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("frame handler calls = %d, want 1", n)
	}
	if snap := s.Metrics().Snapshot(); snap.FramesDropped != 2 {
		t.Fatalf("dropped = %d, want 2", snap.FramesDropped)
	}
}

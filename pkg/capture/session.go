// Package capture delivers frames from a capture engine to consumer handlers
// and lets consumers stop the capture cooperatively from any goroutine.
//
// A Session runs in push mode: the engine calls into the session for every
// frame and the session dispatches synchronously to the registered handler.
// A DuplicationSession runs in pull mode: the consumer calls AcquireFrame.
// PollingEngine runs a pull-mode engine through the push-mode Session so
// both styles share one state machine.
package capture

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/capture/internal/logging"
)

var log = logging.L("capture")

// errDeliveryEnded is returned to engines that keep calling Sink.Frame after
// the session left Running.
var errDeliveryEnded = errors.New("capture: delivery ended")

// State is a session lifecycle state.
type State int32

const (
	StateConfigured State = iota
	StateRunning
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one push-mode capture run: Configured → Running → Stopping →
// Closed. A closed session cannot be restarted.
type Session struct {
	id       string
	engine   Engine
	cfg      Config
	dispatch dispatcher
	control  *Control
	metrics  *Metrics
	log      *slog.Logger

	startMu sync.Mutex
	state   atomic.Int32
}

// NewSession validates settings and returns a Configured session. It fails
// with ErrConfig when more than one capture target is set.
func NewSession(engine Engine, settings Settings) (*Session, error) {
	cfg, err := settings.config()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	return &Session{
		id:      id,
		engine:  engine,
		cfg:     cfg,
		control: newControl(),
		metrics: newMetrics(),
		log:     logging.WithSession(log, id, cfg.Target.String()),
	}, nil
}

func (s *Session) ID() string { return s.id }
func (s *Session) Config() Config { return s.cfg }
func (s *Session) State() State { return State(s.state.Load()) }
func (s *Session) Metrics() *Metrics { return s.metrics }
func (s *Session) Control() *Control { return s.control }

// Register sets the handler for role. fn must be a FrameHandler (or
// func(*frame.Frame, FrameControl) error) for RoleFrameArrived and a
// ClosedHandler (func() error, or func()) for RoleClosed.
func (s *Session) Register(role Role, fn any) error {
	return s.dispatch.register(role, fn)
}

// OnFrameArrived registers the frame handler.
func (s *Session) OnFrameArrived(h FrameHandler) {
	_ = s.dispatch.register(RoleFrameArrived, h)
}

// OnClosed registers the closed handler.
func (s *Session) OnClosed(h ClosedHandler) {
	_ = s.dispatch.register(RoleClosed, h)
}

// Start runs the capture on the calling goroutine and returns once the
// session is Closed. The returned error is the one that ended delivery, if
// any. Another goroutine may stop the run through Control().
func (s *Session) Start() error {
	run, err := s.begin()
	if err != nil {
		return err
	}
	return run()
}

// StartDetached runs the capture on a new goroutine and returns a handle
// immediately. Delivery errors are reported by Handle.Wait.
func (s *Session) StartDetached() (*Handle, error) {
	run, err := s.begin()
	if err != nil {
		return nil, err
	}
	go func() {
		_ = run()
	}()
	return &Handle{Control: s.control, id: s.id}, nil
}

// begin performs the Configured → Running transition. Handlers are checked
// before the engine is opened; on any failure the session stays Configured.
func (s *Session) begin() (func() error, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	switch s.State() {
	case StateRunning, StateStopping:
		return nil, ErrAlreadyStarted
	case StateClosed:
		return nil, ErrClosed
	}
	if err := s.dispatch.ready(); err != nil {
		return nil, err
	}
	onFrame, onClosed := s.dispatch.handlers()

	stream, err := s.engine.Open(s.cfg)
	if err != nil {
		return nil, engineError("open", err)
	}
	s.state.Store(int32(StateRunning))
	s.log.Debug("capture session running", "colorFormat", s.cfg.ColorFormat.String())

	return func() error {
		k := &sessionSink{s: s, onFrame: onFrame}
		runErr := stream.Run(s.control, k)
		return s.finish(stream, onClosed, k.err, runErr)
	}, nil
}

// finish performs Running/Stopping → Closed: it releases the stream, invokes
// the closed handler exactly once, then marks the control finished.
func (s *Session) finish(stream Stream, onClosed ClosedHandler, deliveryErr, runErr error) error {
	s.state.Store(int32(StateStopping))

	var errs []error
	if deliveryErr != nil {
		errs = append(errs, deliveryErr)
	}
	if runErr != nil && !errors.Is(runErr, errDeliveryEnded) && (deliveryErr == nil || !errors.Is(runErr, deliveryErr)) {
		errs = append(errs, engineError("run", runErr))
	}
	if err := stream.Close(); err != nil {
		s.log.Warn("capture stream close failed", logging.KeyError, err)
		errs = append(errs, engineError("close", err))
	}
	if err := dispatchClosed(onClosed); err != nil {
		s.metrics.recordHandlerError()
		errs = append(errs, err)
	}

	var err error
	switch len(errs) {
	case 0:
	case 1:
		err = errs[0]
	default:
		err = errors.Join(errs...)
	}

	s.state.Store(int32(StateClosed))
	s.control.finish(err)

	snap := s.metrics.Snapshot()
	if err != nil {
		s.log.Warn("capture session closed with error", logging.KeyError, err, "frames", snap.FramesDelivered)
	} else {
		s.log.Debug("capture session closed", "frames", snap.FramesDelivered, "uptime", snap.Uptime.String())
	}
	return err
}

// sessionSink adapts a Session to the engine's Sink. It is only used from
// the stream's goroutine.
type sessionSink struct {
	s            *Session
	onFrame      FrameHandler
	err          error
	engineClosed atomic.Bool
}

func (k *sessionSink) Frame(raw RawFrame) error {
	s := k.s
	if s.State() != StateRunning || s.control.StopRequested() {
		s.metrics.recordDrop()
		return errDeliveryEnded
	}

	f, err := toFrame(raw)
	if err != nil {
		k.fail(err)
		return err
	}

	start := time.Now()
	err = dispatchFrame(k.onFrame, f, FrameControl{c: s.control})
	s.metrics.recordDispatch(time.Since(start))
	if err != nil {
		s.metrics.recordHandlerError()
		k.fail(err)
		return err
	}

	if s.control.StopRequested() {
		s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	}
	return nil
}

func (k *sessionSink) Closed() {
	if k.engineClosed.CompareAndSwap(false, true) {
		k.s.log.Debug("capture engine reported closed", "stopRequested", k.s.control.StopRequested())
	}
}

func (k *sessionSink) fail(err error) {
	k.err = err
	k.s.control.RequestStop()
	k.s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
}

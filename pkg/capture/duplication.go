package capture

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/breeze-rmm/capture/internal/logging"
	"github.com/breeze-rmm/capture/pkg/frame"
)

// DefaultAcquireTimeout is the per-call wait used when a caller passes 0.
const DefaultAcquireTimeout = 16 * time.Millisecond

// DuplicationSession is a pull-mode capture. The consumer calls AcquireFrame
// repeatedly; each returned frame is valid until the next AcquireFrame,
// Recreate, SwitchTarget or Close call.
type DuplicationSession struct {
	id      string
	cfg     Config
	metrics *Metrics
	log     *slog.Logger

	mu     sync.Mutex
	dup    Duplicator
	closed bool
}

// NewDuplicationSession validates settings and opens the duplication.
func NewDuplicationSession(engine DuplicationEngine, settings Settings) (*DuplicationSession, error) {
	cfg, err := settings.config()
	if err != nil {
		return nil, err
	}
	dup, err := engine.OpenDuplication(cfg)
	if err != nil {
		return nil, engineError("open duplication", err)
	}
	id := uuid.NewString()
	d := &DuplicationSession{
		id:      id,
		cfg:     cfg,
		metrics: newMetrics(),
		log:     logging.WithSession(log, id, cfg.Target.String()),
		dup:     dup,
	}
	d.log.Debug("duplication session opened")
	return d, nil
}

func (d *DuplicationSession) ID() string { return d.id }
func (d *DuplicationSession) Metrics() *Metrics { return d.metrics }

// Target returns the current capture target.
func (d *DuplicationSession) Target() Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Target
}

// AcquireFrame waits up to timeout for the next frame. It returns (nil, nil)
// when nothing changed in that time. An error matching ErrAccessLost means
// Recreate must be called before acquiring again.
func (d *DuplicationSession) AcquireFrame(timeout time.Duration) (*frame.Frame, error) {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	raw, err := d.dup.AcquireNextFrame(timeout)
	if errors.Is(err, ErrNoFrameYet) {
		d.metrics.recordEmpty()
		return nil, nil
	}
	if err != nil {
		return nil, engineError("acquire frame", err)
	}
	f, err := toFrame(raw)
	if err != nil {
		return nil, err
	}
	d.metrics.recordDispatch(time.Since(start))
	return f, nil
}

// Recreate rebuilds the duplication for the current target.
func (d *DuplicationSession) Recreate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.dup.Recreate(); err != nil {
		return engineError("recreate", err)
	}
	d.log.Debug("duplication recreated")
	return nil
}

// SwitchTarget moves the duplication to t.
func (d *DuplicationSession) SwitchTarget(t Target) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.dup.SwitchTarget(t); err != nil {
		return engineError("switch target", err)
	}
	d.log.Debug("duplication switched target", "from", d.cfg.Target.String(), "to", t.String())
	d.cfg.Target = t
	return nil
}

// SwitchMonitor moves the duplication to the monitor at index.
func (d *DuplicationSession) SwitchMonitor(index int) error {
	return d.SwitchTarget(Monitor(index))
}

// Close releases the duplication. Further calls return ErrClosed.
func (d *DuplicationSession) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.dup.Close(); err != nil {
		return engineError("close duplication", err)
	}
	return nil
}

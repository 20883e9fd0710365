package engine

import (
	"errors"
	"time"

	"github.com/breeze-rmm/capture/internal/logging"
	"github.com/breeze-rmm/capture/pkg/capture"
)

// pushStream grabs on a ticker and delivers changed frames to the sink.
type pushStream struct {
	c        *capturer
	interval time.Duration
}

func (p *pushStream) Run(stop capture.StopSignal, sink capture.Sink) error {
	defer sink.Closed()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if stop.StopRequested() {
			return nil
		}
		raw, changed, err := p.c.next()
		switch {
		case errors.Is(err, errResized):
			log.Debug("capture target resized", "bounds", p.c.rect.String())
		case errors.Is(err, ErrWindowNotFound):
			// The window closed: end the session like an engine-side close.
			log.Info("capture target went away", logging.KeyTarget, p.c.target.String())
			return nil
		case err != nil:
			return err
		case changed:
			if err := sink.Frame(raw); err != nil {
				return err
			}
		}
		<-ticker.C
	}
}

func (p *pushStream) Close() error {
	total, skipped := p.c.differ.Stats()
	log.Debug("push stream closed", "grabs", total, "unchanged", skipped)
	return nil
}

// pollStep bounds how long AcquireNextFrame sleeps between grabs.
const pollStep = 10 * time.Millisecond

// duplicator serves pull-mode sessions. After a resize it reports
// capture.ErrAccessLost until Recreate or SwitchTarget is called.
type duplicator struct {
	c    *capturer
	lost bool
}

func (d *duplicator) AcquireNextFrame(timeout time.Duration) (capture.RawFrame, error) {
	if d.lost {
		return capture.RawFrame{}, capture.ErrAccessLost
	}
	deadline := time.Now().Add(timeout)
	for {
		raw, changed, err := d.c.next()
		if errors.Is(err, errResized) {
			d.lost = true
			return capture.RawFrame{}, capture.ErrAccessLost
		}
		if err != nil {
			return capture.RawFrame{}, err
		}
		if changed {
			return raw, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return capture.RawFrame{}, capture.ErrNoFrameYet
		}
		time.Sleep(min(remaining, pollStep))
	}
}

func (d *duplicator) Recreate() error {
	if err := d.c.refresh(); err != nil {
		return err
	}
	d.lost = false
	return nil
}

func (d *duplicator) SwitchTarget(t capture.Target) error {
	if err := d.c.retarget(t); err != nil {
		return err
	}
	d.lost = false
	return nil
}

func (d *duplicator) Close() error {
	return nil
}

package capture

import (
	"errors"
	"time"
)

// DefaultMaxRecreates bounds consecutive access-lost recoveries in a poll loop.
const DefaultMaxRecreates = 3

// PollingEngine runs a pull-mode engine as a push-mode Engine: its stream
// polls AcquireNextFrame in a loop and hands each new frame to the session.
// The stop flag is checked at the top of every iteration, so a stop is
// observed within one acquire timeout.
type PollingEngine struct {
	source       DuplicationEngine
	timeout      time.Duration
	maxRecreates int
}

// NewPollingEngine wraps source. timeout is the per-acquire wait (0 uses
// DefaultAcquireTimeout).
func NewPollingEngine(source DuplicationEngine, timeout time.Duration) *PollingEngine {
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}
	return &PollingEngine{source: source, timeout: timeout, maxRecreates: DefaultMaxRecreates}
}

// WithMaxRecreates sets how many consecutive ErrAccessLost results are
// recovered with Recreate before the run fails.
func (p *PollingEngine) WithMaxRecreates(n int) *PollingEngine {
	if n < 0 {
		n = 0
	}
	p.maxRecreates = n
	return p
}

func (p *PollingEngine) Open(cfg Config) (Stream, error) {
	dup, err := p.source.OpenDuplication(cfg)
	if err != nil {
		return nil, err
	}
	return &pollStream{dup: dup, timeout: p.timeout, maxRecreates: p.maxRecreates}, nil
}

type pollStream struct {
	dup          Duplicator
	timeout      time.Duration
	maxRecreates int
}

func (p *pollStream) Run(stop StopSignal, sink Sink) error {
	defer sink.Closed()

	lost := 0
	for !stop.StopRequested() {
		raw, err := p.dup.AcquireNextFrame(p.timeout)
		switch {
		case errors.Is(err, ErrNoFrameYet):
			continue
		case errors.Is(err, ErrAccessLost):
			lost++
			if lost > p.maxRecreates {
				return err
			}
			log.Debug("poll loop recreating duplication", "attempt", lost)
			if rerr := p.dup.Recreate(); rerr != nil {
				return rerr
			}
			continue
		case err != nil:
			return err
		}

		lost = 0
		if err := sink.Frame(raw); err != nil {
			return err
		}
	}
	return nil
}

func (p *pollStream) Close() error {
	return p.dup.Close()
}

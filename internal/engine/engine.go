// Package engine is the software capture engine used by the CLI. It grabs
// monitors and windows through github.com/kbinani/screenshot, detects
// unchanged frames and reports dirty regions by per-tile CRC32, and serves
// both push-mode (capture.Engine) and pull-mode (capture.DuplicationEngine)
// sessions.
package engine

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/breeze-rmm/capture/internal/logging"
	"github.com/breeze-rmm/capture/pkg/capture"
	"github.com/breeze-rmm/capture/pkg/frame"
)

var log = logging.L("engine")

var (
	// ErrNotSupported is returned for targets or formats this engine cannot serve.
	ErrNotSupported = errors.New("engine: not supported on this platform")

	// ErrWindowNotFound is returned when no window matches the target.
	ErrWindowNotFound = errors.New("engine: window not found")

	// ErrDisplayNotFound is returned when the monitor index is out of range.
	ErrDisplayNotFound = errors.New("engine: display not found")
)

// DefaultInterval paces the push loop when the session sets no minimum
// update interval.
const DefaultInterval = 33 * time.Millisecond

// grabber is the screen access the engine needs. screenGrabber is the real
// one; tests substitute a synthetic screen.
type grabber interface {
	NumDisplays() int
	DisplayBounds(index int) image.Rectangle
	Capture(r image.Rectangle) (*image.RGBA, error)
}

type screenGrabber struct{}

func (screenGrabber) NumDisplays() int { return screenshot.NumActiveDisplays() }
func (screenGrabber) DisplayBounds(i int) image.Rectangle { return screenshot.GetDisplayBounds(i) }
func (screenGrabber) Capture(r image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(r)
}

// Screen implements capture.Engine and capture.DuplicationEngine.
type Screen struct {
	grab     grabber
	windows  windowLocator
	interval time.Duration
	tileSize int
}

// New returns an engine over the local displays.
func New() *Screen {
	return &Screen{grab: screenGrabber{}, windows: platformWindows{}, interval: DefaultInterval, tileSize: DefaultTileSize}
}

func (s *Screen) Open(cfg capture.Config) (capture.Stream, error) {
	c, err := s.newCapturer(cfg)
	if err != nil {
		return nil, err
	}
	interval := cfg.MinimumUpdateInterval
	if interval <= 0 {
		interval = s.interval
	}
	return &pushStream{c: c, interval: interval}, nil
}

func (s *Screen) OpenDuplication(cfg capture.Config) (capture.Duplicator, error) {
	c, err := s.newCapturer(cfg)
	if err != nil {
		return nil, err
	}
	return &duplicator{c: c}, nil
}

func (s *Screen) newCapturer(cfg capture.Config) (*capturer, error) {
	switch cfg.ColorFormat {
	case frame.LayoutBGRA8, frame.LayoutRGBA8:
	default:
		return nil, fmt.Errorf("%w: color format %s", ErrNotSupported, cfg.ColorFormat)
	}
	if cfg.CursorCapture != capture.Default || cfg.DrawBorder != capture.Default || cfg.SecondaryWindow != capture.Default {
		log.Debug("cursor, border and secondary window toggles have no effect on the software engine",
			"cursor", cfg.CursorCapture.String(), "border", cfg.DrawBorder.String(), "secondary", cfg.SecondaryWindow.String())
	}
	// Dirty regions are always computed; Enabled would also ask for them to
	// be drawn, which the software engine cannot do.
	if cfg.DirtyRegion == capture.Enabled {
		log.Debug("dirty regions are reported but not rendered by the software engine")
	}

	c := &capturer{
		grab:    s.grab,
		windows: s.windows,
		layout:  cfg.ColorFormat,
		target:  cfg.Target,
		differ:  newTileDiffer(s.tileSize),
		start:   time.Now(),
	}
	rect, err := c.resolve()
	if err != nil {
		return nil, err
	}
	c.rect = rect
	log.Debug("capture target resolved", logging.KeyTarget, cfg.Target.String(), "bounds", rect.String())
	return c, nil
}

// windowLocator finds window bounds on platforms that support window capture.
type windowLocator interface {
	ByName(name string) (image.Rectangle, error)
	ByHandle(h uintptr) (image.Rectangle, error)
}

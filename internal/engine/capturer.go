package engine

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/breeze-rmm/capture/pkg/capture"
	"github.com/breeze-rmm/capture/pkg/frame"
)

// capturer grabs one target. It is used from a single goroutine.
type capturer struct {
	grab    grabber
	windows windowLocator
	layout  frame.Layout
	target  capture.Target
	rect    image.Rectangle
	differ  *tileDiffer
	start   time.Time
}

// resolve computes the screen rectangle for the current target.
func (c *capturer) resolve() (image.Rectangle, error) {
	switch c.target.Kind {
	case capture.TargetWindowName:
		return c.windows.ByName(c.target.WindowName)
	case capture.TargetWindowHandle:
		return c.windows.ByHandle(c.target.WindowHandle)
	default:
		n := c.grab.NumDisplays()
		if c.target.MonitorIndex < 0 || c.target.MonitorIndex >= n {
			return image.Rectangle{}, fmt.Errorf("%w: index %d of %d", ErrDisplayNotFound, c.target.MonitorIndex, n)
		}
		return c.grab.DisplayBounds(c.target.MonitorIndex), nil
	}
}

// errResized reports that the target's size changed since the last grab.
var errResized = errors.New("engine: target resized")

// next grabs the target once. changed is false when no tile differs from
// the previous grab. The target is re-resolved on every grab so window moves
// are followed; a size change returns errResized after updating the bounds.
func (c *capturer) next() (raw capture.RawFrame, changed bool, err error) {
	rect, err := c.resolve()
	if err != nil {
		return capture.RawFrame{}, false, err
	}
	if rect.Dx() != c.rect.Dx() || rect.Dy() != c.rect.Dy() {
		c.rect = rect
		c.differ.Reset()
		return capture.RawFrame{}, false, errResized
	}
	c.rect = rect
	if rect.Empty() {
		return capture.RawFrame{}, false, fmt.Errorf("%w: empty bounds for %s", ErrWindowNotFound, c.target)
	}

	img, err := c.grab.Capture(rect)
	if err != nil {
		return capture.RawFrame{}, false, fmt.Errorf("engine: capture %s: %w", rect, err)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()

	dirty, changed := c.differ.Diff(img.Pix, w, h, img.Stride)
	if !changed {
		return capture.RawFrame{}, false, nil
	}
	if c.layout == frame.LayoutBGRA8 {
		swapRB(img.Pix, w, h, img.Stride)
	}
	return capture.RawFrame{
		Pix:       img.Pix,
		Width:     w,
		Height:    h,
		Stride:    img.Stride,
		Layout:    c.layout,
		Timestamp: int64(time.Since(c.start) / (time.Second / frame.TicksPerSecond)),
		Dirty:     dirty,
	}, true, nil
}

// retarget switches to t, resolving its bounds immediately.
func (c *capturer) retarget(t capture.Target) error {
	prev := c.target
	c.target = t
	rect, err := c.resolve()
	if err != nil {
		c.target = prev
		return err
	}
	c.rect = rect
	c.differ.Reset()
	return nil
}

// refresh re-resolves the current target after a mode change.
func (c *capturer) refresh() error {
	rect, err := c.resolve()
	if err != nil {
		return err
	}
	c.rect = rect
	c.differ.Reset()
	return nil
}

// swapRB converts RGBA rows to BGRA in place.
func swapRB(pix []byte, w, h, stride int) {
	for y := 0; y < h; y++ {
		row := pix[y*stride : y*stride+w*4]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+2] = row[i+2], row[i]
		}
	}
}

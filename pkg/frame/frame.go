package frame

import (
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"
)

// TicksPerSecond is the resolution of Frame timestamps (100ns ticks).
const TicksPerSecond = 10_000_000

// Frame is the envelope delivered to consumers for one captured frame. It is
// read-only: ToBGR, Crop, Save and RawBytes return new values and never
// modify the pixels. Unless created by Clone, a Frame borrows engine memory
// and must not be used after its delivery ends.
type Frame struct {
	view      View
	layout    Layout
	timestamp int64
	dirty     []image.Rectangle

	mu  sync.Mutex
	bgr *BGR
}

// New builds a frame over view. The view's pixel size must match layout.
func New(view View, layout Layout, timestamp int64, dirty ...image.Rectangle) (*Frame, error) {
	if layout.BytesPerPixel() != view.bpp {
		return nil, fmt.Errorf("%w: %s with %d bytes per pixel", ErrUnsupportedLayout, layout, view.bpp)
	}
	return &Frame{view: view, layout: layout, timestamp: timestamp, dirty: dirty}, nil
}

func (f *Frame) Width() int { return f.view.width }
func (f *Frame) Height() int { return f.view.height }
func (f *Frame) Layout() Layout { return f.layout }
func (f *Frame) View() View { return f.view }

// Timestamp returns the capture time in 100ns ticks as reported by the engine.
func (f *Frame) Timestamp() int64 { return f.timestamp }

// Elapsed converts Timestamp to a time.Duration.
func (f *Frame) Elapsed() time.Duration {
	return time.Duration(f.timestamp) * (time.Second / TicksPerSecond)
}

// DirtyRegions returns the changed rectangles reported by the engine, if any.
func (f *Frame) DirtyRegions() []image.Rectangle {
	if len(f.dirty) == 0 {
		return nil
	}
	out := make([]image.Rectangle, len(f.dirty))
	copy(out, f.dirty)
	return out
}

// ToBGR returns the frame in B,G,R order. The zero-copy result is computed
// once per frame and reused; copyPixels always returns a fresh packed copy.
func (f *Frame) ToBGR(copyPixels bool) (BGR, error) {
	if copyPixels {
		return ToBGR(f.view, f.layout, true)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bgr != nil {
		return *f.bgr, nil
	}
	bgr, err := ToBGR(f.view, f.layout, false)
	if err != nil {
		return BGR{}, err
	}
	f.bgr = &bgr
	return bgr, nil
}

// Crop returns the sub-frame [x0,x1) x [y0,y1) sharing this frame's memory.
func (f *Frame) Crop(x0, y0, x1, y1 int) (*Frame, error) {
	if x0 < 0 || x0 >= x1 || x1 > f.view.width || y0 < 0 || y0 >= y1 || y1 > f.view.height {
		return nil, fmt.Errorf("%w: (%d,%d)-(%d,%d) in %dx%d", ErrRange, x0, y0, x1, y1, f.view.width, f.view.height)
	}
	rect := image.Rect(x0, y0, x1, y1)
	var dirty []image.Rectangle
	for _, d := range f.dirty {
		in := d.Intersect(rect)
		if in.Empty() {
			continue
		}
		dirty = append(dirty, in.Sub(rect.Min))
	}
	return &Frame{
		view:      f.view.Sub(x0, y0, x1, y1),
		layout:    f.layout,
		timestamp: f.timestamp,
		dirty:     dirty,
	}, nil
}

// RawBytes returns an owned copy of the pixels in the frame's layout with
// row padding removed.
func (f *Frame) RawBytes() []byte {
	return f.view.Bytes()
}

// Clone returns a frame backed by an owned copy of the pixels, safe to keep
// after the delivery ends.
func (f *Frame) Clone() *Frame {
	pix := f.view.Bytes()
	rowSize := f.view.width * f.view.bpp
	return &Frame{
		view:      View{pix: pix, width: f.view.width, height: f.view.height, stride: rowSize, bpp: f.view.bpp},
		layout:    f.layout,
		timestamp: f.timestamp,
		dirty:     f.DirtyRegions(),
	}
}

// Encode writes the frame to w in the given image format.
func (f *Frame) Encode(w io.Writer, format Format) error {
	bgr, err := f.ToBGR(false)
	if err != nil {
		return err
	}
	return encodeImage(w, bgr.Image(), format)
}

// Save encodes the frame to path, picking the codec from the file extension.
func (f *Frame) Save(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("frame: create %s: %w", path, err)
	}
	if err := f.Encode(file, format); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("frame: encode %s: %w", path, err)
	}
	return file.Close()
}

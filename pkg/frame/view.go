package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStride is returned when a row stride is smaller than width*bpp.
	ErrInvalidStride = errors.New("frame: row stride smaller than row size")

	// ErrShortBuffer is returned when the buffer cannot hold height rows of the given stride.
	ErrShortBuffer = errors.New("frame: buffer shorter than declared geometry")

	// ErrInvalidDimensions is returned for negative sizes or a zero pixel size.
	ErrInvalidDimensions = errors.New("frame: invalid dimensions")

	// ErrRange is returned when crop bounds fall outside the frame.
	ErrRange = errors.New("frame: crop bounds out of range")

	// ErrUnsupportedLayout is returned for a channel layout this package cannot convert.
	ErrUnsupportedLayout = errors.New("frame: unsupported channel layout")

	// ErrUnsupportedFormat is returned when no image codec matches the requested format.
	ErrUnsupportedFormat = errors.New("frame: unsupported image format")
)

// View interprets a borrowed byte region as a width x height pixel grid whose
// rows start stride bytes apart. Pad bytes at the end of each row are never
// exposed. Geometry is validated once in NewView; accessors do not re-check.
type View struct {
	pix    []byte
	width  int
	height int
	stride int
	bpp    int
}

// NewView wraps pix without copying.
func NewView(pix []byte, width, height, stride, bpp int) (View, error) {
	if width < 0 || height < 0 || bpp <= 0 {
		return View{}, fmt.Errorf("%w: %dx%d bpp=%d", ErrInvalidDimensions, width, height, bpp)
	}
	rowSize := width * bpp
	if stride < rowSize {
		return View{}, fmt.Errorf("%w: stride %d < %d", ErrInvalidStride, stride, rowSize)
	}
	if height > 0 {
		need := (height-1)*stride + rowSize
		if len(pix) < need {
			return View{}, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(pix), need)
		}
	}
	return View{pix: pix, width: width, height: height, stride: stride, bpp: bpp}, nil
}

func (v View) Width() int { return v.width }
func (v View) Height() int { return v.height }
func (v View) Stride() int { return v.stride }
func (v View) BytesPerPixel() int { return v.bpp }

// RowSize is the number of pixel bytes in one row, excluding padding.
func (v View) RowSize() int { return v.width * v.bpp }

// Row returns the pixel bytes of row r. The slice capacity ends at the last
// pixel so appends never spill into pad bytes or the next row.
func (v View) Row(r int) []byte {
	off := r * v.stride
	end := off + v.width*v.bpp
	return v.pix[off:end:end]
}

// At returns the bytes of the pixel at (row, col).
func (v View) At(row, col int) []byte {
	off := row*v.stride + col*v.bpp
	end := off + v.bpp
	return v.pix[off:end:end]
}

// Contiguous returns the whole pixel grid as one slice when rows carry no
// padding. The second result is false for padded views.
func (v View) Contiguous() ([]byte, bool) {
	n := v.width * v.bpp * v.height
	if v.stride != v.width*v.bpp {
		return nil, false
	}
	if n == 0 {
		return []byte{}, true
	}
	return v.pix[:n:n], true
}

// Sub returns the view of the rectangle [x0,x1) x [y0,y1) sharing v's memory
// and stride. Bounds are the caller's responsibility; Frame.Crop validates them.
func (v View) Sub(x0, y0, x1, y1 int) View {
	w, h := x1-x0, y1-y0
	if w <= 0 || h <= 0 {
		return View{stride: v.stride, bpp: v.bpp}
	}
	off := y0*v.stride + x0*v.bpp
	end := off + (h-1)*v.stride + w*v.bpp
	return View{pix: v.pix[off:end:end], width: w, height: h, stride: v.stride, bpp: v.bpp}
}

// Bytes returns an owned, stride-stripped copy of the pixel grid.
func (v View) Bytes() []byte {
	rowSize := v.width * v.bpp
	out := make([]byte, rowSize*v.height)
	if src, ok := v.Contiguous(); ok {
		copy(out, src)
		return out
	}
	for y := 0; y < v.height; y++ {
		copy(out[y*rowSize:(y+1)*rowSize], v.Row(y))
	}
	return out
}

package frame

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"github.com/x448/float16"
)

// BGR is a height x width grid of 8-bit B,G,R pixels. It is either packed
// (3 bytes per pixel, no row padding, owned or zero-copy) or a strided view
// into a 4-byte-per-pixel source whose channel offsets select B, G and R.
type BGR struct {
	pix    []byte
	width  int
	height int
	stride int
	step   int
	b, g   int
	r      int
}

func (c BGR) Width() int { return c.width }
func (c BGR) Height() int { return c.height }

// Packed reports whether the pixels are laid out as contiguous B,G,R triples.
func (c BGR) Packed() bool {
	return c.step == 3 && c.b == 0 && c.g == 1 && c.r == 2 && c.stride == c.width*3
}

// At returns the channels of the pixel at (row, col).
func (c BGR) At(row, col int) (b, g, r uint8) {
	off := row*c.stride + col*c.step
	return c.pix[off+c.b], c.pix[off+c.g], c.pix[off+c.r]
}

// Bytes returns the grid as height*width*3 bytes in B,G,R order. Packed
// grids are returned without copying; strided views are materialized.
func (c BGR) Bytes() []byte {
	n := c.width * c.height * 3
	if c.Packed() {
		return c.pix[:n:n]
	}
	out := make([]byte, n)
	i := 0
	for y := 0; y < c.height; y++ {
		row := c.pix[y*c.stride:]
		for x := 0; x < c.width; x++ {
			p := x * c.step
			out[i] = row[p+c.b]
			out[i+1] = row[p+c.g]
			out[i+2] = row[p+c.r]
			i += 3
		}
	}
	return out
}

// Image adapts the grid to image.Image for the encoders in codec.go.
func (c BGR) Image() image.Image { return bgrImage{c} }

type bgrImage struct{ c BGR }

func (m bgrImage) ColorModel() color.Model { return color.RGBAModel }

func (m bgrImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.c.width, m.c.height) }

func (m bgrImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.c.width || y >= m.c.height {
		return color.RGBA{}
	}
	b, g, r := m.c.At(y, x)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// ToBGR converts v, interpreted with layout, to BGR. Without copyPixels the 8-bit
// layouts return a zero-copy strided view over v; RGBA16F always materializes.
func ToBGR(v View, layout Layout, copyPixels bool) (BGR, error) {
	if layout.BytesPerPixel() != v.bpp {
		return BGR{}, fmt.Errorf("%w: %s with %d bytes per pixel", ErrUnsupportedLayout, layout, v.bpp)
	}
	switch layout {
	case LayoutBGRA8:
		view := BGR{pix: v.pix, width: v.width, height: v.height, stride: v.stride, step: 4, b: 0, g: 1, r: 2}
		if copyPixels {
			return packBGR(view), nil
		}
		return view, nil
	case LayoutRGBA8:
		view := BGR{pix: v.pix, width: v.width, height: v.height, stride: v.stride, step: 4, b: 2, g: 1, r: 0}
		if copyPixels {
			return packBGR(view), nil
		}
		return view, nil
	case LayoutRGBA16F:
		return halfToBGR(v), nil
	default:
		return BGR{}, fmt.Errorf("%w: %s", ErrUnsupportedLayout, layout)
	}
}

func packBGR(view BGR) BGR {
	return BGR{pix: view.Bytes(), width: view.width, height: view.height, stride: view.width * 3, step: 3, b: 0, g: 1, r: 2}
}

// halfToBGR clamps each RGBA16F component to [0,1], scales to 255 and rounds.
func halfToBGR(v View) BGR {
	out := make([]byte, v.width*v.height*3)
	i := 0
	for y := 0; y < v.height; y++ {
		row := v.Row(y)
		for x := 0; x < v.width; x++ {
			p := row[x*8 : x*8+8]
			r := halfToByte(binary.LittleEndian.Uint16(p[0:2]))
			g := halfToByte(binary.LittleEndian.Uint16(p[2:4]))
			b := halfToByte(binary.LittleEndian.Uint16(p[4:6]))
			out[i], out[i+1], out[i+2] = b, g, r
			i += 3
		}
	}
	return BGR{pix: out, width: v.width, height: v.height, stride: v.width * 3, step: 3, b: 0, g: 1, r: 2}
}

func halfToByte(bits uint16) uint8 {
	f := float16.Frombits(bits).Float32()
	// !(f > 0) also catches NaN.
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}

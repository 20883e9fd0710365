// Package frame holds the per-delivery pixel types handed to capture
// consumers: borrowed views over engine buffers, BGR conversion, and the
// frame envelope with its crop, save and copy operations.
//
// Nothing in this package owns engine memory. A View, and every Frame or BGR
// derived from it without a copy, is only valid while the engine buffer it
// points into is live: for the duration of a frame callback in push mode, or
// until the next AcquireFrame call in pull mode. Use Frame.RawBytes,
// Frame.Clone or ToBGR(copy=true) to keep pixels beyond that point.
package frame

import (
	"fmt"
	"strings"
)

// Layout is the per-pixel byte ordering and numeric format of a buffer.
type Layout int

const (
	LayoutBGRA8   Layout = iota // 8-bit B,G,R,A
	LayoutRGBA8                 // 8-bit R,G,B,A
	LayoutRGBA16F               // IEEE half float R,G,B,A
)

// BytesPerPixel returns the size of one pixel, or 0 for an unknown layout.
func (l Layout) BytesPerPixel() int {
	switch l {
	case LayoutBGRA8, LayoutRGBA8:
		return 4
	case LayoutRGBA16F:
		return 8
	default:
		return 0
	}
}

func (l Layout) String() string {
	switch l {
	case LayoutBGRA8:
		return "bgra8"
	case LayoutRGBA8:
		return "rgba8"
	case LayoutRGBA16F:
		return "rgba16f"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Valid reports whether l is one of the supported layouts.
func (l Layout) Valid() bool {
	return l.BytesPerPixel() != 0
}

// ParseLayout maps a color format name ("bgra8", "rgba8", "rgba16f") to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bgra8", "bgra":
		return LayoutBGRA8, nil
	case "rgba8", "rgba":
		return LayoutRGBA8, nil
	case "rgba16f":
		return LayoutRGBA16F, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedLayout, s)
	}
}

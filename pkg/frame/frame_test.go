package frame

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// gridFrame returns a w x h BGRA8 frame where pixel (x,y) = (x, y, x+y, 255),
// with 4 bytes of row padding.
func gridFrame(t *testing.T, w, h int) *Frame {
	t.Helper()
	stride := w*4 + 4
	buf := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(buf[y*stride+x*4:], []byte{byte(x), byte(y), byte(x + y), 255})
		}
	}
	v, err := NewView(buf, w, h, stride, 4)
	if err != nil {
		t.Fatal(err)
	}
	f, err := New(v, LayoutBGRA8, 42*TicksPerSecond, image.Rect(0, 0, 2, 2), image.Rect(2, 2, 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestCropReturnsSubView(t *testing.T) {
	f := gridFrame(t, 4, 4)
	c, err := f.Crop(1, 1, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if c.Width() != 2 || c.Height() != 2 {
		t.Fatalf("crop size = %dx%d, want 2x2", c.Width(), c.Height())
	}
	if !bytes.Equal(c.View().At(0, 0), f.View().At(1, 1)) {
		t.Fatalf("crop(0,0) = %v, want %v", c.View().At(0, 0), f.View().At(1, 1))
	}
	if c.View().Stride() != f.View().Stride() {
		t.Fatalf("crop stride = %d, want %d", c.View().Stride(), f.View().Stride())
	}
	if c.Timestamp() != f.Timestamp() {
		t.Fatalf("crop timestamp = %d, want %d", c.Timestamp(), f.Timestamp())
	}
	// Both dirty rects overlap the crop by one pixel.
	dirty := c.DirtyRegions()
	if len(dirty) != 2 || dirty[0] != image.Rect(0, 0, 1, 1) || dirty[1] != image.Rect(1, 1, 2, 2) {
		t.Fatalf("crop dirty = %v", dirty)
	}
}

func TestCropRejectsBadBounds(t *testing.T) {
	f := gridFrame(t, 4, 4)
	bad := [][4]int{
		{2, 0, 2, 4}, // x1 == x0
		{3, 0, 1, 4}, // x1 < x0
		{0, 1, 4, 1}, // y1 == y0
		{-1, 0, 2, 2},
		{0, 0, 5, 4},
		{0, 0, 4, 5},
	}
	for _, b := range bad {
		if _, err := f.Crop(b[0], b[1], b[2], b[3]); !errors.Is(err, ErrRange) {
			t.Fatalf("Crop(%v) err = %v, want ErrRange", b, err)
		}
	}
}

func TestToBGRCachedOnFrame(t *testing.T) {
	f := gridFrame(t, 2, 2)
	a, err := f.ToBGR(false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.ToBGR(false)
	if err != nil {
		t.Fatal(err)
	}
	if &a.pix[0] != &b.pix[0] || f.bgr == nil {
		t.Fatal("zero-copy ToBGR should be cached on the frame")
	}
	c, err := f.ToBGR(true)
	if err != nil {
		t.Fatal(err)
	}
	if &c.pix[0] == &a.pix[0] {
		t.Fatal("ToBGR(true) must not return the cached view")
	}
}

func TestRawBytesRoundTrip(t *testing.T) {
	f := gridFrame(t, 3, 2)
	raw := f.RawBytes()
	if len(raw) != 3*2*4 {
		t.Fatalf("len = %d, want 24", len(raw))
	}
	v, err := NewView(raw, 3, 2, 3*4, 4)
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if !bytes.Equal(v.At(y, x), f.View().At(y, x)) {
				t.Fatalf("pixel (%d,%d) = %v, want %v", y, x, v.At(y, x), f.View().At(y, x))
			}
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	f := gridFrame(t, 2, 2)
	c := f.Clone()
	f.view.pix[0] = 200
	if c.View().At(0, 0)[0] != 0 {
		t.Fatalf("clone pixel = %d, want 0", c.View().At(0, 0)[0])
	}
	if _, ok := c.View().Contiguous(); !ok {
		t.Fatal("clone should be contiguous")
	}
}

func TestSavePNG(t *testing.T) {
	f := gridFrame(t, 4, 3)
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := f.Save(path); err != nil {
		t.Fatal(err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("decoded bounds = %v", img.Bounds())
	}
	// Pixel (3,2) is stored B=3 G=2 R=5.
	r, g, b, _ := img.At(3, 2).RGBA()
	if r>>8 != 5 || g>>8 != 2 || b>>8 != 3 {
		t.Fatalf("pixel = (%d,%d,%d), want (5,2,3)", r>>8, g>>8, b>>8)
	}
}

func TestSaveUnknownExtension(t *testing.T) {
	f := gridFrame(t, 1, 1)
	err := f.Save(filepath.Join(t.TempDir(), "frame.webp"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestEncodeAllFormats(t *testing.T) {
	f := gridFrame(t, 2, 2)
	for _, format := range []Format{FormatPNG, FormatJPEG, FormatBMP, FormatTIFF} {
		var buf bytes.Buffer
		if err := f.Encode(&buf, format); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if buf.Len() == 0 {
			t.Fatalf("%s: empty output", format)
		}
	}
}

func TestSaveRemovesFileOnEncodeFailure(t *testing.T) {
	view, err := NewView(nil, 0, 0, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	f, err := New(view, LayoutBGRA8, 0)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "empty.png")
	// PNG cannot encode a 0x0 image.
	if err := f.Save(path); err == nil {
		t.Fatal("expected encode error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("stat after failed save: %v, want not exist", err)
	}
	if got := f.RawBytes(); len(got) != 0 {
		t.Fatalf("RawBytes len = %d, want 0", len(got))
	}
}

package engine

import (
	"hash/crc32"
	"image"
)

// DefaultTileSize is the edge length of the change-detection grid.
const DefaultTileSize = 64

// tileDiffer detects changed tiles between successive grabs by CRC32 of each
// tile's pixel rows. Changed tiles on one grid row are merged into a single
// rectangle.
type tileDiffer struct {
	size   int
	w, h   int
	hashes []uint32
	valid  bool

	total   uint64
	skipped uint64
}

func newTileDiffer(size int) *tileDiffer {
	if size <= 0 {
		size = DefaultTileSize
	}
	return &tileDiffer{size: size}
}

// Diff compares a 4-byte-per-pixel buffer with the previous call. The first
// call, and any call after Reset or a size change, reports the whole frame.
func (d *tileDiffer) Diff(pix []byte, w, h, stride int) (dirty []image.Rectangle, changed bool) {
	d.total++
	cols := (w + d.size - 1) / d.size
	rows := (h + d.size - 1) / d.size
	if !d.valid || d.w != w || d.h != h || len(d.hashes) != cols*rows {
		d.w, d.h = w, h
		d.hashes = make([]uint32, cols*rows)
		for ty := 0; ty < rows; ty++ {
			for tx := 0; tx < cols; tx++ {
				d.hashes[ty*cols+tx] = d.tileHash(pix, stride, tx, ty)
			}
		}
		d.valid = true
		if w == 0 || h == 0 {
			return nil, true
		}
		return []image.Rectangle{image.Rect(0, 0, w, h)}, true
	}

	for ty := 0; ty < rows; ty++ {
		runStart := -1
		for tx := 0; tx <= cols; tx++ {
			diff := false
			if tx < cols {
				sum := d.tileHash(pix, stride, tx, ty)
				idx := ty*cols + tx
				diff = sum != d.hashes[idx]
				d.hashes[idx] = sum
			}
			switch {
			case diff && runStart < 0:
				runStart = tx
			case !diff && runStart >= 0:
				dirty = append(dirty, d.tileRect(runStart, tx, ty))
				runStart = -1
			}
		}
	}
	if len(dirty) == 0 {
		d.skipped++
		return nil, false
	}
	return dirty, true
}

func (d *tileDiffer) tileHash(pix []byte, stride, tx, ty int) uint32 {
	x0, y0 := tx*d.size*4, ty*d.size
	x1 := min((tx+1)*d.size, d.w) * 4
	y1 := min(y0+d.size, d.h)
	var sum uint32
	for y := y0; y < y1; y++ {
		sum = crc32.Update(sum, crc32.IEEETable, pix[y*stride+x0:y*stride+x1])
	}
	return sum
}

// tileRect covers tiles [tx0, tx1) on grid row ty, clipped to the frame.
func (d *tileDiffer) tileRect(tx0, tx1, ty int) image.Rectangle {
	return image.Rect(tx0*d.size, ty*d.size, min(tx1*d.size, d.w), min((ty+1)*d.size, d.h))
}

// Reset forces the next Diff to report the whole frame.
func (d *tileDiffer) Reset() {
	d.valid = false
}

// Stats returns (grabs compared, grabs skipped as unchanged).
func (d *tileDiffer) Stats() (total, skipped uint64) {
	return d.total, d.skipped
}

package raster

import (
	"image"
	"image/color"
)

// BinaryMask is a 2-D boolean raster with the same spatial dimensions as the
// image it was derived from. True marks a foreground (tissue candidate) pixel.
type BinaryMask struct {
	Bits   []bool
	Width  int
	Height int
}

// NewBinaryMask allocates an all-background mask.
func NewBinaryMask(width, height int) *BinaryMask {
	return &BinaryMask{
		Bits:   make([]bool, width*height),
		Width:  width,
		Height: height,
	}
}

// Get reports whether (x, y) is foreground. Coordinates outside the mask
// read as background; callers that need a different border rule check the
// bounds themselves.
func (m *BinaryMask) Get(x, y int) bool {
	if x < 0 || x >= m.Width || y < 0 || y >= m.Height {
		return false
	}
	return m.Bits[y*m.Width+x]
}

// Set marks (x, y) as foreground or background.
func (m *BinaryMask) Set(x, y int, v bool) {
	m.Bits[y*m.Width+x] = v
}

// Area returns the number of foreground pixels.
func (m *BinaryMask) Area() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Clone returns an independent copy of the mask.
func (m *BinaryMask) Clone() *BinaryMask {
	out := NewBinaryMask(m.Width, m.Height)
	copy(out.Bits, m.Bits)
	return out
}

// Equal reports whether two masks have identical dimensions and bits.
func (m *BinaryMask) Equal(other *BinaryMask) bool {
	if m.Width != other.Width || m.Height != other.Height {
		return false
	}
	for i, b := range m.Bits {
		if b != other.Bits[i] {
			return false
		}
	}
	return true
}

// ToGray renders the mask as an 8-bit image, foreground white.
func (m *BinaryMask) ToGray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Get(x, y) {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

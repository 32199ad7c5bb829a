// Package morphology implements binary mathematical morphology with a disk
// structuring element: erosion, dilation, and the opening/closing pair used
// to clean a thresholded tissue mask.
//
// Border handling is asymmetric: erosion reads pixels outside the mask as
// foreground while dilation reads them as background. Tissue flush against
// the image edge therefore survives erosion, and closing never shrinks a
// region below its opened extent even at the border.
package morphology

import (
	"fmt"

	"tissueseg/pkg/raster"
)

// StructuringElement is a set of neighborhood offsets centered on the origin.
type StructuringElement struct {
	offsets [][2]int
	radius  int
}

// Disk returns a circular structuring element of the given radius: every
// offset (dx, dy) with dx²+dy² ≤ r² is included. Radius 0 is the identity
// element (just the center pixel).
func Disk(radius int) StructuringElement {
	if radius < 0 {
		radius = 0
	}
	var offsets [][2]int
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return StructuringElement{offsets: offsets, radius: radius}
}

// Radius returns the radius the element was built with.
func (se StructuringElement) Radius() int { return se.radius }

// Size returns the number of pixels in the element.
func (se StructuringElement) Size() int { return len(se.offsets) }

// String describes the element for logging.
func (se StructuringElement) String() string {
	return fmt.Sprintf("disk(r=%d, %d px)", se.radius, len(se.offsets))
}

// Erode keeps a foreground pixel only if the structuring element, centered on
// it, lies entirely within foreground. Offsets that land outside the image
// count as foreground, so regions touching the border are not eaten from the
// outside.
func Erode(m *raster.BinaryMask, se StructuringElement) *raster.BinaryMask {
	out := raster.NewBinaryMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !m.Get(x, y) {
				continue
			}
			keep := true
			for _, o := range se.offsets {
				nx, ny := x+o[0], y+o[1]
				if nx < 0 || nx >= m.Width || ny < 0 || ny >= m.Height {
					continue
				}
				if !m.Get(nx, ny) {
					keep = false
					break
				}
			}
			out.Set(x, y, keep)
		}
	}
	return out
}

// Dilate turns a background pixel into foreground if the structuring element,
// centered on it, overlaps any foreground pixel.
func Dilate(m *raster.BinaryMask, se StructuringElement) *raster.BinaryMask {
	out := raster.NewBinaryMask(m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			hit := false
			for _, o := range se.offsets {
				if m.Get(x+o[0], y+o[1]) {
					hit = true
					break
				}
			}
			out.Set(x, y, hit)
		}
	}
	return out
}

// Open applies erosion then dilation. Opening removes foreground specks
// smaller than the structuring element without growing what remains.
func Open(m *raster.BinaryMask, se StructuringElement) *raster.BinaryMask {
	return Dilate(Erode(m, se), se)
}

// Close applies dilation then erosion. Closing fills background gaps smaller
// than the structuring element without shrinking what remains.
func Close(m *raster.BinaryMask, se StructuringElement) *raster.BinaryMask {
	return Erode(Dilate(m, se), se)
}

// Clean runs opening then closing with the same element, the standard noise
// cleanup for a thresholded mask. The combined filter is idempotent: cleaning
// an already cleaned mask changes nothing.
func Clean(m *raster.BinaryMask, se StructuringElement) *raster.BinaryMask {
	return Close(Open(m, se), se)
}

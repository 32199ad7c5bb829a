package models

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Space identifies the pixel coordinate frame a geometry lives in.
//
// Visium datasets ship the same tissue image at several resolutions, and
// geometry is only comparable within a single frame. Keeping the frame on the
// geometry value prevents the two classic mistakes of this kind of pipeline:
// applying the hires-to-fullres rescale twice, or comparing a flipped
// (Cartesian) polygon against unflipped raster coordinates.
type Space int

const (
	// RasterSpace is the raw row/column frame of the segmented image:
	// x grows right, y grows down, one unit per pixel.
	RasterSpace Space = iota

	// HiresPixelSpace is the pixel frame of the tissue_hires_image.
	HiresPixelSpace

	// FullresPixelSpace is the pixel frame of the full-resolution scan,
	// the frame spot positions are reported in.
	FullresPixelSpace
)

// String returns a human-readable name for the space.
func (s Space) String() string {
	switch s {
	case RasterSpace:
		return "raster"
	case HiresPixelSpace:
		return "hires"
	case FullresPixelSpace:
		return "fullres"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

// ParseSpace inverts Space.String. Unrecognized names map to RasterSpace.
func ParseSpace(s string) Space {
	switch s {
	case "hires":
		return HiresPixelSpace
	case "fullres":
		return FullresPixelSpace
	default:
		return RasterSpace
	}
}

// Orientation records which way the y axis runs.
type Orientation int

const (
	// RowMajor means y grows downward, matching raster storage order.
	RowMajor Orientation = iota

	// Cartesian means y grows upward, matching geometric convention.
	Cartesian
)

// String returns a human-readable name for the orientation.
func (o Orientation) String() string {
	if o == Cartesian {
		return "cartesian"
	}
	return "row-major"
}

// ParseOrientation inverts Orientation.String. Unrecognized names map to
// RowMajor.
func ParseOrientation(s string) Orientation {
	if s == "cartesian" {
		return Cartesian
	}
	return RowMajor
}

// Geometry is a multipolygon tagged with the coordinate frame it is valid in.
// All conversions return a new value; the receiver is never mutated.
type Geometry struct {
	// Space is the pixel frame the coordinates are expressed in.
	Space Space

	// Orient tells whether y grows down (RowMajor) or up (Cartesian).
	Orient Orientation

	// Height is the pixel height of the frame's image. It is required to
	// flip between orientations and is rescaled together with coordinates.
	Height float64

	// MultiPolygon holds the actual rings.
	MultiPolygon orb.MultiPolygon
}

// FlipY mirrors the geometry vertically, converting between RowMajor and
// Cartesian orientation. The frame height must be known.
func (g Geometry) FlipY() (Geometry, error) {
	if g.Height <= 0 {
		return Geometry{}, fmt.Errorf("cannot flip geometry: frame height unknown")
	}

	flipped := g.MultiPolygon.Clone()
	for _, poly := range flipped {
		for _, ring := range poly {
			for i := range ring {
				ring[i][1] = g.Height - ring[i][1]
			}
		}
	}

	orient := Cartesian
	if g.Orient == Cartesian {
		orient = RowMajor
	}

	return Geometry{
		Space:        g.Space,
		Orient:       orient,
		Height:       g.Height,
		MultiPolygon: flipped,
	}, nil
}

// ToFullres converts hires-frame geometry into the full-resolution frame by
// dividing every coordinate by the hires scale factor. The scale factor is the
// fullres-to-hires ratio and is below one, so dividing enlarges coordinates.
// Converting geometry already in FullresPixelSpace is an error: the rescale
// must be applied exactly once.
func (g Geometry) ToFullres(hiresScale float64) (Geometry, error) {
	if g.Space != HiresPixelSpace {
		return Geometry{}, fmt.Errorf("cannot rescale %s geometry to fullres: expected hires", g.Space)
	}
	if hiresScale <= 0 || hiresScale > 1 {
		return Geometry{}, fmt.Errorf("invalid hires scale factor %g: must be in (0,1]", hiresScale)
	}

	scaled := g.MultiPolygon.Clone()
	for _, poly := range scaled {
		for _, ring := range poly {
			for i := range ring {
				ring[i][0] /= hiresScale
				ring[i][1] /= hiresScale
			}
		}
	}

	return Geometry{
		Space:        FullresPixelSpace,
		Orient:       g.Orient,
		Height:       g.Height / hiresScale,
		MultiPolygon: scaled,
	}, nil
}

// Bound returns the bounding box of the geometry.
func (g Geometry) Bound() orb.Bound {
	return g.MultiPolygon.Bound()
}

// VertexCount returns the number of ring vertices over all polygons.
// Useful for reporting the effect of simplification.
func (g Geometry) VertexCount() int {
	n := 0
	for _, poly := range g.MultiPolygon {
		for _, ring := range poly {
			n += len(ring)
		}
	}
	return n
}

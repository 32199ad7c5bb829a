package vectorize

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"tissueseg/internal/models"
	"tissueseg/pkg/raster"
	"tissueseg/pkg/regions"
)

// labelRows builds a labeled mask from a string picture, digits marking
// label values and '.' marking background.
func labelRows(rows []string) *regions.LabeledMask {
	lm := regions.NewLabeledMask(len(rows[0]), len(rows))
	max := 0
	for y, row := range rows {
		for x, c := range row {
			if c == '.' {
				continue
			}
			label := int(c - '0')
			lm.Set(x, y, label)
			if label > max {
				max = label
			}
		}
	}
	lm.MaxLabel = max
	return lm
}

// labelFromMask labels a binary picture built with '#'.
func labelFromMask(rows []string) *regions.LabeledMask {
	m := raster.NewBinaryMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				m.Set(x, y, true)
			}
		}
	}
	return regions.Label(m)
}

func TestTraceSinglePixel(t *testing.T) {
	lm := labelRows([]string{
		"...",
		".1.",
		"...",
	})

	set := Trace(lm, models.HiresPixelSpace)
	if len(set.Geometry.MultiPolygon) != 1 {
		t.Fatalf("Expected 1 polygon, got %d", len(set.Geometry.MultiPolygon))
	}

	shell := set.Geometry.MultiPolygon[0][0]
	if len(shell) != 5 {
		t.Errorf("Expected a closed 4-corner ring (5 points), got %d points", len(shell))
	}
	if shell[0] != shell[len(shell)-1] {
		t.Error("Expected the ring to be explicitly closed")
	}
	if a := signedArea(shell); a != 1 {
		t.Errorf("Expected unit area, got %f", a)
	}
	if set.Geometry.Space != models.HiresPixelSpace || set.Geometry.Orient != models.RowMajor {
		t.Errorf("Expected row-major hires geometry, got %s %s", set.Geometry.Space, set.Geometry.Orient)
	}
}

// TestTraceRectangleMergesCollinear checks that straight pixel runs collapse
// to single segments.
func TestTraceRectangleMergesCollinear(t *testing.T) {
	lm := labelFromMask([]string{
		".....",
		".###.",
		".###.",
		".....",
	})

	set := Trace(lm, models.HiresPixelSpace)
	if len(set.Geometry.MultiPolygon) != 1 {
		t.Fatalf("Expected 1 polygon, got %d", len(set.Geometry.MultiPolygon))
	}
	shell := set.Geometry.MultiPolygon[0][0]
	if len(shell) != 5 {
		t.Errorf("Expected the 3x2 rectangle to trace as 4 corners, got %d points", len(shell))
	}
	if a := signedArea(shell); a != 6 {
		t.Errorf("Expected area 6, got %f", a)
	}
}

func TestTraceRingWithHole(t *testing.T) {
	lm := labelFromMask([]string{
		".....",
		".###.",
		".#.#.",
		".###.",
		".....",
	})

	set := Trace(lm, models.HiresPixelSpace)
	if len(set.Geometry.MultiPolygon) != 1 {
		t.Fatalf("Expected 1 polygon, got %d", len(set.Geometry.MultiPolygon))
	}

	poly := set.Geometry.MultiPolygon[0]
	if len(poly) != 2 {
		t.Fatalf("Expected a shell and one hole, got %d rings", len(poly))
	}
	if a := signedArea(poly[0]); a != 8 {
		t.Errorf("Expected shell area 8, got %f", a)
	}
	if a := signedArea(poly[1]); a != -1 {
		t.Errorf("Expected hole area -1, got %f", a)
	}
}

// TestTraceDiagonalPinch verifies that two pixels touching only at a corner
// trace as one self-touching shell whose area is the pixel count.
func TestTraceDiagonalPinch(t *testing.T) {
	lm := labelFromMask([]string{
		"#.",
		".#",
	})
	if lm.MaxLabel != 1 {
		t.Fatalf("Expected one 8-connected component, got %d", lm.MaxLabel)
	}

	set := Trace(lm, models.HiresPixelSpace)
	var total float64
	for _, poly := range set.Geometry.MultiPolygon {
		total += signedArea(poly[0])
	}
	if total != 2 {
		t.Errorf("Expected total shell area 2, got %f", total)
	}
	for _, label := range set.Labels {
		if label != 1 {
			t.Errorf("Expected all polygons to carry label 1, got %d", label)
		}
	}
}

func TestTraceTwoLabels(t *testing.T) {
	lm := labelRows([]string{
		"11.22",
		"11.22",
	})

	set := Trace(lm, models.HiresPixelSpace)
	if len(set.Geometry.MultiPolygon) != 2 {
		t.Fatalf("Expected 2 polygons, got %d", len(set.Geometry.MultiPolygon))
	}
	if set.Labels[0] != 1 || set.Labels[1] != 2 {
		t.Errorf("Expected labels [1 2], got %v", set.Labels)
	}
}

func TestTraceEmptyMask(t *testing.T) {
	lm := regions.NewLabeledMask(4, 4)

	set := Trace(lm, models.HiresPixelSpace)
	if len(set.Geometry.MultiPolygon) != 0 {
		t.Errorf("Expected no polygons for an empty mask, got %d", len(set.Geometry.MultiPolygon))
	}
	if set.Dropped != 0 {
		t.Errorf("Expected no dropped regions, got %d", set.Dropped)
	}
}

// TestTraceAreaMatchesPixelCount checks the pixel-exactness of the outline:
// for a blob without holes the polygon area equals its pixel count.
func TestTraceAreaMatchesPixelCount(t *testing.T) {
	lm := labelFromMask([]string{
		"........",
		".####...",
		".#####..",
		".######.",
		".#####..",
		".###....",
		"........",
	})

	pixels := 0
	for _, l := range lm.Labels {
		if l != 0 {
			pixels++
		}
	}

	set := Trace(lm, models.HiresPixelSpace)
	var total float64
	for _, poly := range set.Geometry.MultiPolygon {
		for _, ring := range poly {
			total += signedArea(ring)
		}
	}
	if math.Abs(total-float64(pixels)) > 1e-9 {
		t.Errorf("Expected polygon area %d, got %f", pixels, total)
	}
}

func TestFlipYRoundTrip(t *testing.T) {
	lm := labelRows([]string{
		"...",
		".1.",
		"...",
	})
	set := Trace(lm, models.HiresPixelSpace)

	flipped, err := set.FlipY()
	if err != nil {
		t.Fatalf("Failed to flip: %v", err)
	}
	if flipped.Geometry.Orient != models.Cartesian {
		t.Errorf("Expected cartesian orientation after flip, got %s", flipped.Geometry.Orient)
	}

	// The pixel at (1,1) in a 3-high frame spans y 1..2 raster, so 1..2
	// Cartesian as well after mirroring around the frame.
	shell := flipped.Geometry.MultiPolygon[0][0]
	for _, p := range shell {
		if p[1] < 1 || p[1] > 2 {
			t.Errorf("Expected flipped y in [1,2], got %f", p[1])
		}
	}

	back, err := flipped.FlipY()
	if err != nil {
		t.Fatalf("Failed to flip back: %v", err)
	}
	if !back.Geometry.MultiPolygon.Equal(set.Geometry.MultiPolygon) {
		t.Error("Expected double flip to restore the original geometry")
	}
}

func TestToFullresOnce(t *testing.T) {
	lm := labelRows([]string{
		".1.",
		"...",
	})
	set := Trace(lm, models.HiresPixelSpace)

	full, err := set.ToFullres(0.5)
	if err != nil {
		t.Fatalf("Failed to rescale: %v", err)
	}
	if full.Geometry.Space != models.FullresPixelSpace {
		t.Errorf("Expected fullres space, got %s", full.Geometry.Space)
	}

	shell := full.Geometry.MultiPolygon[0][0]
	want := orb.Point{2, 0}
	if shell[0] != want {
		t.Errorf("Expected first vertex %v after doubling, got %v", want, shell[0])
	}
	if full.Geometry.Height != 4 {
		t.Errorf("Expected frame height 4 after rescale, got %f", full.Geometry.Height)
	}

	// A second rescale must be rejected: the division happens exactly once.
	if _, err := full.ToFullres(0.5); err == nil {
		t.Error("Expected an error when rescaling fullres geometry again")
	}
}

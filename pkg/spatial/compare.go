package spatial

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Category is the three-way agreement call between the vendor's in-tissue
// flag and the computed tissue boundary.
type Category string

const (
	// CategorySame means the flag and the boundary intersection agree,
	// whether both say tissue or both say background.
	CategorySame Category = "same"

	// CategoryExternalOnly means only the vendor flag says tissue.
	CategoryExternalOnly Category = "external-only"

	// CategorySegmentationOnly means only the computed boundary says tissue.
	CategorySegmentationOnly Category = "segmentation-only"
)

// Classification is the per-spot comparison result.
type Classification struct {
	Barcode string

	// Intersects reports whether the spot footprint shares any point with
	// the tissue boundary; touching the boundary edge counts.
	Intersects bool

	// Covered reports whether the footprint lies entirely inside the
	// boundary. It does not feed Category; it is carried for stricter
	// downstream filters.
	Covered bool

	// Category compares the vendor flag against Intersects.
	Category Category
}

// Summary aggregates the classification for reporting.
type Summary struct {
	Total            int
	Same             int
	ExternalOnly     int
	SegmentationOnly int

	// AgreementRate is Same / Total, zero when there are no spots.
	AgreementRate float64
}

// Classify compares every spot against the named boundary geometry and
// returns one classification per spot, in spot order. Footprints must have
// been built first. Every spot receives exactly one category.
func (d *Dataset) Classify(boundaryName string) ([]Classification, Summary, error) {
	boundary, ok := d.Boundary(boundaryName)
	if !ok {
		return nil, Summary{}, fmt.Errorf("no boundary named %q attached to dataset", boundaryName)
	}

	out := make([]Classification, len(d.Spots))
	var sum Summary
	sum.Total = len(d.Spots)

	for i, s := range d.Spots {
		if len(s.Footprint) == 0 {
			return nil, Summary{}, fmt.Errorf("spot %s has no footprint: call BuildFootprints first", s.Barcode)
		}

		c := Classification{Barcode: s.Barcode}
		c.Intersects = ringIntersectsMulti(s.Footprint, boundary.MultiPolygon)
		c.Covered = ringCoveredByMulti(s.Footprint, boundary.MultiPolygon)

		if s.InTissue == c.Intersects {
			c.Category = CategorySame
			sum.Same++
		} else if s.InTissue {
			c.Category = CategoryExternalOnly
			sum.ExternalOnly++
		} else {
			c.Category = CategorySegmentationOnly
			sum.SegmentationOnly++
		}
		out[i] = c
	}

	if sum.Total > 0 {
		sum.AgreementRate = float64(sum.Same) / float64(sum.Total)
	}
	return out, sum, nil
}

// CheckScale compares the bounding boxes of the boundary and the spot
// footprints and reports whether their coordinate ranges are plausibly the
// same frame. A false return means a scale factor was probably applied the
// wrong number of times; the caller should warn, not abort.
func (d *Dataset) CheckScale(boundaryName string) (bool, error) {
	boundary, ok := d.Boundary(boundaryName)
	if !ok {
		return false, fmt.Errorf("no boundary named %q attached to dataset", boundaryName)
	}
	if len(boundary.MultiPolygon) == 0 || len(d.Spots) == 0 {
		return true, nil // nothing to compare is not a mismatch
	}

	bb := boundary.Bound()
	var sb orb.Bound
	for i, s := range d.Spots {
		p := orb.Point{s.PxlCol, d.FullresHeight - s.PxlRow}
		if i == 0 {
			sb = orb.Bound{Min: p, Max: p}
		} else {
			sb = sb.Extend(p)
		}
	}

	boundarySpan := maxSpan(bb)
	spotSpan := maxSpan(sb)
	if boundarySpan == 0 || spotSpan == 0 {
		return true, nil
	}
	ratio := boundarySpan / spotSpan
	return ratio > 0.2 && ratio < 5, nil
}

func maxSpan(b orb.Bound) float64 {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if h > w {
		return h
	}
	return w
}

// ringIntersectsMulti reports whether the footprint ring shares any point
// with the multipolygon. Three cases cover all configurations: a footprint
// vertex inside the polygon, a polygon vertex inside the footprint, or a
// crossing pair of edges. Boundary contact counts as intersecting.
func ringIntersectsMulti(ring orb.Ring, mp orb.MultiPolygon) bool {
	for _, p := range ring {
		if planar.MultiPolygonContains(mp, p) {
			return true
		}
	}
	for _, poly := range mp {
		for _, r := range poly {
			for _, p := range r {
				if planar.RingContains(ring, p) {
					return true
				}
			}
		}
		if ringEdgesCross(ring, poly) {
			return true
		}
	}
	return false
}

// ringCoveredByMulti reports whether the footprint lies entirely inside the
// multipolygon: every footprint vertex contained, no edge crossing any
// polygon ring, and no interior ring (hole) vertex strictly inside the
// footprint (a hole poking into the footprint breaks coverage without any
// vertex of the footprint leaving the polygon).
func ringCoveredByMulti(ring orb.Ring, mp orb.MultiPolygon) bool {
	for _, p := range ring {
		if !planar.MultiPolygonContains(mp, p) {
			return false
		}
	}
	for _, poly := range mp {
		if ringEdgesCross(ring, poly) {
			return false
		}
		for _, r := range poly[1:] {
			for _, p := range r {
				if planar.RingContains(ring, p) {
					return false
				}
			}
		}
	}
	return true
}

// ringEdgesCross reports whether any footprint edge properly crosses any
// edge of the polygon's rings.
func ringEdgesCross(ring orb.Ring, poly orb.Polygon) bool {
	for _, r := range poly {
		for i := 0; i < len(r)-1; i++ {
			for j := 0; j < len(ring)-1; j++ {
				if segmentsIntersect(r[i], r[i+1], ring[j], ring[j+1]) {
					return true
				}
			}
		}
	}
	return false
}

// segmentsIntersect is the standard orientation test for proper and
// collinear-overlap segment intersection.
func segmentsIntersect(a, b, c, d orb.Point) bool {
	o1 := orient(a, b, c)
	o2 := orient(a, b, d)
	o3 := orient(c, d, a)
	o4 := orient(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}

	// Collinear touching cases.
	if o1 == 0 && onSegment(a, b, c) {
		return true
	}
	if o2 == 0 && onSegment(a, b, d) {
		return true
	}
	if o3 == 0 && onSegment(c, d, a) {
		return true
	}
	if o4 == 0 && onSegment(c, d, b) {
		return true
	}
	return false
}

// orient returns the sign of the cross product (b-a)×(c-a).
func orient(a, b, c orb.Point) int {
	v := (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether p lies within the bounding box of segment ab;
// callers have already established collinearity.
func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

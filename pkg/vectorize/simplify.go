package vectorize

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// Simplify reduces the vertex count of every ring to roughly the given keep
// fraction of its original point count using Visvalingam's area-based
// criterion, which removes the least significant vertices first and cannot
// introduce self-intersections on these outlines.
//
// keep must be in (0,1]; keep=1 returns an unmodified copy. A shell ring that
// degenerates below three distinct vertices drops its polygon (and that
// polygon's holes) silently; a degenerate hole ring is dropped alone.
func Simplify(set PolygonSet, keep float64) (PolygonSet, error) {
	if keep <= 0 || keep > 1 {
		return PolygonSet{}, fmt.Errorf("keep fraction %g out of range (0,1]", keep)
	}

	out := PolygonSet{
		Geometry: set.Geometry,
		Dropped:  set.Dropped,
	}
	out.Geometry.MultiPolygon = nil

	for i, poly := range set.Geometry.MultiPolygon {
		var simplified orb.Polygon
		for ringIdx, ring := range poly {
			r := simplifyRing(ring, keep)
			if r == nil {
				if ringIdx == 0 {
					simplified = nil
					break // shell collapsed, whole polygon goes
				}
				continue // hole collapsed, keep the rest
			}
			simplified = append(simplified, r)
		}
		if simplified == nil {
			out.Dropped++
			continue
		}
		out.Geometry.MultiPolygon = append(out.Geometry.MultiPolygon, simplified)
		out.Labels = append(out.Labels, set.Labels[i])
	}
	return out, nil
}

// simplifyRing runs Visvalingam point-count simplification on one ring,
// treating it as an open line so the closure vertex is not double counted.
// Returns nil when the ring degenerates.
func simplifyRing(ring orb.Ring, keep float64) orb.Ring {
	open := orb.LineString(ring)
	closed := len(ring) >= 2 && ring[0] == ring[len(ring)-1]
	if closed {
		open = orb.LineString(ring[:len(ring)-1])
	}

	if keep >= 1 {
		return ring.Clone()
	}

	toKeep := int(math.Ceil(keep * float64(len(open))))
	if toKeep < 3 {
		toKeep = 3
	}
	if toKeep >= len(open) {
		return ring.Clone()
	}

	result, ok := simplify.VisvalingamKeep(toKeep).Simplify(open.Clone()).(orb.LineString)
	if !ok || len(result) < 3 {
		return nil
	}

	r := orb.Ring(result)
	if r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	if signedArea(r) == 0 {
		return nil
	}
	return r
}

// Package vectorize converts a filtered labeled mask into polygon geometry:
// pixel-exact boundary rings per region, an optional vertical flip into
// Cartesian orientation, and topology-preserving simplification.
package vectorize

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"tissueseg/internal/models"
	"tissueseg/pkg/regions"
)

// PolygonSet is the vectorized outline of the surviving regions. Polygons[i]
// came from region Labels[i]; holes inside a region become interior rings of
// its polygon.
type PolygonSet struct {
	Geometry models.Geometry

	// Labels records the source region label of each polygon, parallel to
	// Geometry.MultiPolygon.
	Labels []int

	// Dropped counts regions that vectorized to a degenerate (zero-area)
	// outline and were silently discarded.
	Dropped int
}

// point is a lattice vertex on the pixel grid; x in 0..W, y in 0..H.
type point struct{ x, y int }

// Trace extracts the boundary of every labeled region as closed rings with
// vertices on the pixel grid: a pixel at (x, y) occupies the unit square from
// (x, y) to (x+1, y+1). Zero and negative labels are background and produce
// no geometry. The result is in the raster orientation of the mask (y down);
// the caller decides whether to flip it into Cartesian orientation.
func Trace(lm *regions.LabeledMask, space models.Space) PolygonSet {
	set := PolygonSet{
		Geometry: models.Geometry{
			Space:  space,
			Orient: models.RowMajor,
			Height: float64(lm.Height),
		},
	}

	for _, label := range lm.DistinctLabels() {
		polys, ok := traceLabel(lm, label)
		if !ok {
			set.Dropped++
			continue
		}
		for _, p := range polys {
			set.Geometry.MultiPolygon = append(set.Geometry.MultiPolygon, p)
			set.Labels = append(set.Labels, label)
		}
	}
	return set
}

// traceLabel builds the polygon(s) of one label. A label normally yields one
// polygon; components joined only diagonally can split into several touching
// shells, each returned as its own polygon.
func traceLabel(lm *regions.LabeledMask, label int) ([]orb.Polygon, bool) {
	edges := collectBoundaryEdges(lm, label)
	if len(edges) == 0 {
		return nil, false
	}

	rings := chainRings(edges)

	// Positive shoelace area marks a shell in the y-down emission
	// convention; negative marks a hole.
	var shells []orb.Ring
	var holes []orb.Ring
	for _, r := range rings {
		a := signedArea(r)
		switch {
		case a > 0:
			shells = append(shells, r)
		case a < 0:
			holes = append(holes, r)
		}
		// Zero-area rings are degenerate and dropped.
	}
	if len(shells) == 0 {
		return nil, false
	}

	// Assign each hole to the shell that contains it. Largest shells are
	// checked first so nested shells resolve to the innermost container.
	sort.Slice(shells, func(i, j int) bool {
		return signedArea(shells[i]) > signedArea(shells[j])
	})
	polys := make([]orb.Polygon, len(shells))
	for i, s := range shells {
		polys[i] = orb.Polygon{s}
	}
	for _, h := range holes {
		for i := len(shells) - 1; i >= 0; i-- {
			if planar.RingContains(shells[i], h[0]) {
				polys[i] = append(polys[i], h)
				break
			}
		}
	}
	return polys, true
}

// collectBoundaryEdges emits one directed unit edge for every pixel side that
// separates the label from anything else, oriented so the region interior
// stays on a consistent side of the walk.
func collectBoundaryEdges(lm *regions.LabeledMask, label int) map[point][]point {
	edges := make(map[point][]point)
	add := func(a, b point) {
		edges[a] = append(edges[a], b)
	}

	for y := 0; y < lm.Height; y++ {
		for x := 0; x < lm.Width; x++ {
			if lm.Get(x, y) != label {
				continue
			}
			if lm.Get(x, y-1) != label { // top side
				add(point{x, y}, point{x + 1, y})
			}
			if lm.Get(x+1, y) != label { // right side
				add(point{x + 1, y}, point{x + 1, y + 1})
			}
			if lm.Get(x, y+1) != label { // bottom side
				add(point{x + 1, y + 1}, point{x, y + 1})
			}
			if lm.Get(x-1, y) != label { // left side
				add(point{x, y + 1}, point{x, y})
			}
		}
	}
	return edges
}

// chainRings links the directed edges into closed rings, collapsing runs of
// collinear vertices. At lattice points where four edges meet (diagonal pixel
// contacts) the walk prefers the left turn, which keeps each ring tracing a
// single side of the pinch.
func chainRings(edges map[point][]point) []orb.Ring {
	var rings []orb.Ring

	for len(edges) > 0 {
		// Pick a deterministic starting edge: smallest start point.
		start := smallestKey(edges)
		ring := orb.Ring{orb.Point{float64(start.x), float64(start.y)}}

		cur := start
		var dir point // incoming direction, zero before the first step
		for {
			next, ok := takeEdge(edges, cur, dir)
			if !ok {
				break // should not happen for well-formed edge sets
			}
			step := point{next.x - cur.x, next.y - cur.y}
			if step == dir && len(ring) > 0 {
				// Collinear continuation: move the last vertex forward.
				ring[len(ring)-1] = orb.Point{float64(next.x), float64(next.y)}
			} else {
				ring = append(ring, orb.Point{float64(next.x), float64(next.y)})
			}
			cur, dir = next, step
			if cur == start {
				break
			}
		}

		// Merge the closing segment if it continues the opening direction,
		// then close the ring explicitly.
		if len(ring) >= 2 && ring[0] == ring[len(ring)-1] {
			ring = ring[:len(ring)-1]
		}
		if len(ring) >= 3 {
			ring = append(ring, ring[0])
			rings = append(rings, ring)
		}
	}
	return rings
}

// smallestKey returns the lexicographically smallest start point that still
// has unused edges, making ring extraction order deterministic.
func smallestKey(edges map[point][]point) point {
	first := true
	var best point
	for p := range edges {
		if first || p.y < best.y || (p.y == best.y && p.x < best.x) {
			best = p
			first = false
		}
	}
	return best
}

// takeEdge removes and returns one outgoing edge at cur. When several are
// available the left turn relative to the incoming direction wins.
func takeEdge(edges map[point][]point, cur point, dir point) (point, bool) {
	outs := edges[cur]
	if len(outs) == 0 {
		return point{}, false
	}

	pick := 0
	if len(outs) > 1 && (dir.x != 0 || dir.y != 0) {
		// Preference order: left turn, straight, right turn. In the
		// y-down frame the left turn of (dx,dy) is (dy,-dx).
		prefs := []point{{dir.y, -dir.x}, dir, {-dir.y, dir.x}}
		best := len(prefs)
		for i, o := range outs {
			step := point{o.x - cur.x, o.y - cur.y}
			for rank, p := range prefs {
				if step == p && rank < best {
					best = rank
					pick = i
				}
			}
		}
	}

	next := outs[pick]
	outs[pick] = outs[len(outs)-1]
	outs = outs[:len(outs)-1]
	if len(outs) == 0 {
		delete(edges, cur)
	} else {
		edges[cur] = outs
	}
	return next, true
}

// signedArea is the shoelace area of a ring: positive for shells and negative
// for holes under the edge emission convention above.
func signedArea(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return sum / 2
}

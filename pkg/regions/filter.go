package regions

import (
	"container/list"
)

// CentroidSelector excludes whichever regions have their centroid within
// Radius pixels of (X, Y). Unlike a raw label ID, a centroid survives
// relabeling, so selectors written against one run remain meaningful when the
// mask is regenerated.
type CentroidSelector struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Radius float64 `yaml:"radius" json:"radius"`
}

// FilterParams controls which regions survive.
type FilterParams struct {
	// MinArea removes regions with fewer pixels than this.
	MinArea int

	// ExcludeLabels removes regions by literal label value. Valid only for
	// the labeling run the list was calibrated against.
	ExcludeLabels []int

	// ExcludeCentroids removes regions by centroid proximity.
	ExcludeCentroids []CentroidSelector
}

// excluded reports whether a region is named by the exclusion parameters.
func (p FilterParams) excluded(f Feature) bool {
	for _, l := range p.ExcludeLabels {
		if f.Label == l {
			return true
		}
	}
	for _, sel := range p.ExcludeCentroids {
		if f.DistanceTo(sel.X, sel.Y) <= sel.Radius {
			return true
		}
	}
	return false
}

// Filter zeroes out every region that is smaller than the area threshold or
// matches the exclusion parameters, then fills interior holes of the
// surviving regions. Exclusion runs before hole filling so that gaps opened
// by the removal of an enclosed region are closed as well.
//
// Removing every region is a legal degenerate result: the returned mask is
// all background and the returned table is empty.
func Filter(lm *LabeledMask, table FeatureTable, params FilterParams) (*LabeledMask, FeatureTable) {
	keep := make(map[int]bool, len(table))
	for label, f := range table {
		if f.Area >= params.MinArea && !params.excluded(f) {
			keep[label] = true
		}
	}

	out := NewLabeledMask(lm.Width, lm.Height)
	out.MaxLabel = lm.MaxLabel
	for i, label := range lm.Labels {
		if keep[label] {
			out.Labels[i] = label
		}
	}

	FillHoles(out)

	kept := make(FeatureTable, len(keep))
	for label := range keep {
		kept[label] = table[label]
	}
	return out, kept
}

// fourNeighbors is the background connectivity for hole detection. Using the
// complement connectivity of the 8-connected foreground keeps holes and
// regions topologically consistent.
var fourNeighbors = [][2]int{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

// FillHoles relabels, in place, every background pocket that is fully
// enclosed by a single region to that region's label. Background connected to
// the image border is left alone, as is any pocket bordered by more than one
// region (that is a gap between regions, not a hole in one).
func FillHoles(lm *LabeledMask) {
	w, h := lm.Width, lm.Height
	visited := make([]bool, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if visited[idx] || lm.Labels[idx] != 0 {
				continue
			}

			// Collect this background component and the labels around it.
			component, touchesBorder, owner := traceBackground(lm, visited, x, y)
			if touchesBorder || owner == 0 {
				continue
			}
			for _, i := range component {
				lm.Labels[i] = owner
			}
		}
	}
}

// traceBackground flood-fills a background component. It returns the pixel
// indices of the component, whether the component touches the image border,
// and the single enclosing label (0 when the neighbors carry more than one
// distinct label).
func traceBackground(lm *LabeledMask, visited []bool, seedX, seedY int) (component []int, touchesBorder bool, owner int) {
	w, h := lm.Width, lm.Height

	q := list.New()
	seed := seedY*w + seedX
	q.PushBack(seed)
	visited[seed] = true

	ownerSet := false
	multiOwner := false

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		idx := e.Value.(int)
		component = append(component, idx)

		cx, cy := idx%w, idx/w
		if cx == 0 || cx == w-1 || cy == 0 || cy == h-1 {
			touchesBorder = true
		}

		for _, d := range fourNeighbors {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= w || ny < 0 || ny >= h {
				continue
			}
			ni := ny*w + nx
			label := lm.Labels[ni]
			if label == 0 {
				if !visited[ni] {
					visited[ni] = true
					q.PushBack(ni)
				}
				continue
			}
			if !ownerSet {
				owner = label
				ownerSet = true
			} else if owner != label {
				multiOwner = true
			}
		}
	}

	if multiOwner {
		owner = 0
	}
	return component, touchesBorder, owner
}

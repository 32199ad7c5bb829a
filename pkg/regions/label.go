// Package regions turns a cleaned binary mask into labeled connected
// components, measures per-region shape features, and filters regions by
// area and by an explicit exclusion list before hole filling.
package regions

import (
	"container/list"

	"tissueseg/pkg/raster"
)

// LabeledMask assigns a positive integer label to every pixel of a connected
// foreground region; zero is background and never denotes a real region.
//
// Labels follow component discovery order (row-major scan), so they are not
// stable across different masks: an exclusion list keyed on literal label
// values is a calibration artifact for one specific run, not portable logic.
type LabeledMask struct {
	Labels []int
	Width  int
	Height int

	// MaxLabel is the highest label assigned; labels run 1..MaxLabel but
	// filtering may have removed some of them.
	MaxLabel int
}

// NewLabeledMask allocates an all-background labeled mask.
func NewLabeledMask(width, height int) *LabeledMask {
	return &LabeledMask{
		Labels: make([]int, width*height),
		Width:  width,
		Height: height,
	}
}

// Get returns the label at (x, y); out-of-bounds coordinates are background.
func (l *LabeledMask) Get(x, y int) int {
	if x < 0 || x >= l.Width || y < 0 || y >= l.Height {
		return 0
	}
	return l.Labels[y*l.Width+x]
}

// Set stores a label at (x, y).
func (l *LabeledMask) Set(x, y, label int) {
	l.Labels[y*l.Width+x] = label
}

// Clone returns an independent copy.
func (l *LabeledMask) Clone() *LabeledMask {
	out := NewLabeledMask(l.Width, l.Height)
	copy(out.Labels, l.Labels)
	out.MaxLabel = l.MaxLabel
	return out
}

// DistinctLabels returns the sorted positive labels present in the mask.
func (l *LabeledMask) DistinctLabels() []int {
	seen := make(map[int]bool)
	for _, v := range l.Labels {
		if v > 0 {
			seen[v] = true
		}
	}
	out := make([]int, 0, len(seen))
	for label := 1; label <= l.MaxLabel; label++ {
		if seen[label] {
			out = append(out, label)
		}
	}
	return out
}

// eightNeighbors is the connectivity used for foreground labeling.
var eightNeighbors = [][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Label performs connected-component labeling over 8-connectivity, assigning
// consecutive positive integers in row-major discovery order. An all-
// background mask yields an all-zero labeling, which is legal.
func Label(mask *raster.BinaryMask) *LabeledMask {
	out := NewLabeledMask(mask.Width, mask.Height)
	next := 1

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if !mask.Get(x, y) || out.Get(x, y) != 0 {
				continue
			}
			floodFill(mask, out, x, y, next, eightNeighbors)
			next++
		}
	}
	out.MaxLabel = next - 1
	return out
}

// floodFill labels the connected region containing the seed via BFS.
func floodFill(mask *raster.BinaryMask, out *LabeledMask, seedX, seedY, label int, neighbors [][2]int) {
	q := list.New()
	q.PushBack([2]int{seedX, seedY})
	out.Set(seedX, seedY, label)

	for q.Len() > 0 {
		e := q.Front()
		q.Remove(e)
		p := e.Value.([2]int)

		for _, d := range neighbors {
			nx, ny := p[0]+d[0], p[1]+d[1]
			if nx < 0 || nx >= mask.Width || ny < 0 || ny >= mask.Height {
				continue
			}
			if mask.Get(nx, ny) && out.Get(nx, ny) == 0 {
				out.Set(nx, ny, label)
				q.PushBack([2]int{nx, ny})
			}
		}
	}
}

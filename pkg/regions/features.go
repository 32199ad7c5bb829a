package regions

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"tissueseg/pkg/raster"
)

// Feature holds the shape descriptors of one labeled region.
type Feature struct {
	// Label is the region's integer label in the mask.
	Label int

	// Area is the pixel count of the region.
	Area int

	// CentroidX and CentroidY are the mean pixel coordinates of the region,
	// a stable descriptor usable for exclusion across relabeling runs.
	CentroidX float64
	CentroidY float64

	// MinX, MinY, MaxX, MaxY bound the region (inclusive).
	MinX, MinY, MaxX, MaxY int

	// MeanIntensity and StdIntensity summarize the source-channel
	// intensities under the region. Zero when no image was supplied.
	MeanIntensity float64
	StdIntensity  float64
}

// FeatureTable maps each positive label in a LabeledMask to its features.
// It has exactly one row per distinct label, background excluded.
type FeatureTable map[int]Feature

// Labels returns the table's labels in ascending order.
func (t FeatureTable) Labels() []int {
	out := make([]int, 0, len(t))
	for label := range t {
		out = append(out, label)
	}
	sort.Ints(out)
	return out
}

// SortedByArea returns the features largest-first, a convenient order for
// inspecting which regions an area threshold would keep.
func (t FeatureTable) SortedByArea() []Feature {
	out := make([]Feature, 0, len(t))
	for _, f := range t {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Area != out[j].Area {
			return out[i].Area > out[j].Area
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Measure computes the feature table for a labeled mask. The channel image is
// optional: when non-nil it must be single-channel with matching dimensions,
// and per-region intensity statistics are filled in from it.
func Measure(lm *LabeledMask, channel *raster.FloatImage) (FeatureTable, error) {
	if channel != nil {
		if channel.Channels != 1 {
			return nil, fmt.Errorf("intensity image must be single-channel, got %d channels", channel.Channels)
		}
		if channel.Width != lm.Width || channel.Height != lm.Height {
			return nil, fmt.Errorf("intensity image %dx%d does not match mask %dx%d",
				channel.Width, channel.Height, lm.Width, lm.Height)
		}
	}

	type accum struct {
		area         int
		sumX, sumY   float64
		minX, minY   int
		maxX, maxY   int
		intensities  []float64
	}
	acc := make(map[int]*accum)

	for y := 0; y < lm.Height; y++ {
		for x := 0; x < lm.Width; x++ {
			label := lm.Get(x, y)
			if label == 0 {
				continue
			}
			a, ok := acc[label]
			if !ok {
				a = &accum{minX: x, minY: y, maxX: x, maxY: y}
				acc[label] = a
			}
			a.area++
			a.sumX += float64(x)
			a.sumY += float64(y)
			if x < a.minX {
				a.minX = x
			}
			if x > a.maxX {
				a.maxX = x
			}
			if y < a.minY {
				a.minY = y
			}
			if y > a.maxY {
				a.maxY = y
			}
			if channel != nil {
				a.intensities = append(a.intensities, channel.At(x, y, 0))
			}
		}
	}

	table := make(FeatureTable, len(acc))
	for label, a := range acc {
		f := Feature{
			Label:     label,
			Area:      a.area,
			CentroidX: a.sumX / float64(a.area),
			CentroidY: a.sumY / float64(a.area),
			MinX:      a.minX,
			MinY:      a.minY,
			MaxX:      a.maxX,
			MaxY:      a.maxY,
		}
		if len(a.intensities) > 0 {
			f.MeanIntensity = stat.Mean(a.intensities, nil)
			if len(a.intensities) > 1 {
				f.StdIntensity = stat.StdDev(a.intensities, nil)
			}
		}
		table[label] = f
	}
	return table, nil
}

// DistanceTo returns the Euclidean distance from the region centroid to the
// given point, used by centroid-based exclusion selectors.
func (f Feature) DistanceTo(x, y float64) float64 {
	return math.Hypot(f.CentroidX-x, f.CentroidY-y)
}

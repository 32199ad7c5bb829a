package raster

import (
	"fmt"
)

// Direction selects which side of the threshold is foreground. For an
// H&E-style stain on a light background the tissue is dark, so foreground is
// the side below the threshold; fluorescence images are the other way round.
type Direction int

const (
	// ForegroundBelow marks pixels with intensity strictly below the
	// threshold as foreground.
	ForegroundBelow Direction = iota

	// ForegroundAbove marks pixels with intensity strictly above the
	// threshold as foreground.
	ForegroundAbove
)

// String returns a human-readable name for the direction.
func (d Direction) String() string {
	if d == ForegroundAbove {
		return "above"
	}
	return "below"
}

// ParseDirection converts the config spelling into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "below", "":
		return ForegroundBelow, nil
	case "above":
		return ForegroundAbove, nil
	default:
		return ForegroundBelow, fmt.Errorf("unknown foreground direction %q: want \"below\" or \"above\"", s)
	}
}

// Threshold builds a binary mask from one color channel of the image. The
// threshold is a literal tuning constant in [0,1]; it is not derived from the
// data (see OtsuThreshold for a data-driven suggestion to check it against).
func Threshold(img *FloatImage, channel int, threshold float64, dir Direction) (*BinaryMask, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold %g out of range [0,1]", threshold)
	}

	ch, err := img.Channel(channel)
	if err != nil {
		return nil, err
	}

	mask := NewBinaryMask(img.Width, img.Height)
	for i, v := range ch.Pix {
		if dir == ForegroundBelow {
			mask.Bits[i] = v < threshold
		} else {
			mask.Bits[i] = v > threshold
		}
	}
	return mask, nil
}

// otsuBins is the histogram resolution used for the threshold suggestion.
const otsuBins = 256

// OtsuThreshold computes the between-class-variance-maximizing threshold for
// one channel. The pipeline does not apply it; it is logged next to the
// configured constant so a badly tuned constant is visible.
func OtsuThreshold(img *FloatImage, channel int) (float64, error) {
	ch, err := img.Channel(channel)
	if err != nil {
		return 0, err
	}

	var hist [otsuBins]int
	for _, v := range ch.Pix {
		bin := int(v * (otsuBins - 1))
		if bin < 0 {
			bin = 0
		} else if bin >= otsuBins {
			bin = otsuBins - 1
		}
		hist[bin]++
	}

	total := len(ch.Pix)
	if total == 0 {
		return 0, fmt.Errorf("cannot compute threshold of empty image")
	}

	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i) * float64(n)
	}

	var (
		sumBg, wBg  float64
		bestVar     float64
		bestBin     int
	)
	for i := 0; i < otsuBins; i++ {
		wBg += float64(hist[i])
		if wBg == 0 {
			continue
		}
		wFg := float64(total) - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(i) * float64(hist[i])

		meanBg := sumBg / wBg
		meanFg := (sumAll - sumBg) / wFg
		between := wBg * wFg * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			bestBin = i
		}
	}

	// bestBin is the upper bin of the darker class. Returning the half-bin
	// point above it keeps that class strictly below the threshold, which
	// the strict comparison in Threshold relies on.
	return (float64(bestBin) + 0.5) / (otsuBins - 1), nil
}

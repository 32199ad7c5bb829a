// Package raster provides the in-memory image model for the segmentation
// pipeline: dense float intensity images in [0,1], binary foreground masks,
// and the threshold operation that turns one into the other.
package raster

import (
	"fmt"
	"image"
	"image/color"
)

// FloatImage is a dense 2-D image with one or more channels, stored as
// channel-interleaved float64 intensities in [0,1]. Transforms return new
// images rather than mutating their input.
type FloatImage struct {
	// Pix holds the samples in row-major, channel-interleaved order:
	// Pix[(y*Width+x)*Channels+c].
	Pix []float64

	// Width and Height are the spatial dimensions in pixels.
	Width  int
	Height int

	// Channels is the number of color bands (1 for grayscale, 3 for RGB).
	Channels int
}

// NewFloatImage allocates a zero-valued image of the given shape.
func NewFloatImage(width, height, channels int) *FloatImage {
	return &FloatImage{
		Pix:      make([]float64, width*height*channels),
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// At returns the sample at (x, y) in channel c. Callers are expected to stay
// in bounds; this mirrors the access discipline of the mask types.
func (f *FloatImage) At(x, y, c int) float64 {
	return f.Pix[(y*f.Width+x)*f.Channels+c]
}

// Set stores the sample at (x, y) in channel c.
func (f *FloatImage) Set(x, y, c int, v float64) {
	f.Pix[(y*f.Width+x)*f.Channels+c] = v
}

// Channel extracts a single color band as a new grayscale FloatImage.
func (f *FloatImage) Channel(c int) (*FloatImage, error) {
	if c < 0 || c >= f.Channels {
		return nil, fmt.Errorf("channel %d out of range: image has %d channels", c, f.Channels)
	}

	out := NewFloatImage(f.Width, f.Height, 1)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			out.Set(x, y, 0, f.At(x, y, c))
		}
	}
	return out, nil
}

// FromImage converts a decoded image into a 3-channel FloatImage with
// intensities scaled to [0,1]. Grayscale inputs become single-channel.
func FromImage(img image.Image) *FloatImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if _, isGray := img.(*image.Gray); isGray {
		out := NewFloatImage(w, h, 1)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				out.Set(x, y, 0, float64(g.Y)/255.0)
			}
		}
		return out
	}

	out := NewFloatImage(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out.Set(x, y, 0, float64(r)/65535.0)
			out.Set(x, y, 1, float64(g)/65535.0)
			out.Set(x, y, 2, float64(b)/65535.0)
		}
	}
	return out
}

// ToGray renders a single-channel FloatImage as an 8-bit grayscale image,
// clamping values outside [0,1]. Used when saving intermediary results.
func (f *FloatImage) ToGray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.At(x, y, 0)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return out
}

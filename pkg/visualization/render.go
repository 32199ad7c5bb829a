// Package visualization renders segmentation intermediaries as images so a
// run can be inspected visually: binary masks, colored label maps, and
// polygon outlines drawn over the source image.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"tissueseg/internal/models"
	"tissueseg/pkg/raster"
	"tissueseg/pkg/regions"
)

// labelPalette holds distinct colors cycled over label ids. Label 0
// (background) always renders black.
var labelPalette = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{255, 225, 25, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
	{70, 240, 240, 255},
	{240, 50, 230, 255},
	{210, 245, 60, 255},
	{250, 190, 190, 255},
	{0, 128, 128, 255},
	{170, 110, 40, 255},
}

// RenderLabels draws a labeled mask with one palette color per label.
func RenderLabels(lm *regions.LabeledMask) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, lm.Width, lm.Height))
	for y := 0; y < lm.Height; y++ {
		for x := 0; x < lm.Width; x++ {
			label := lm.Get(x, y)
			if label == 0 {
				img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
				continue
			}
			img.SetRGBA(x, y, labelPalette[(label-1)%len(labelPalette)])
		}
	}
	return img
}

// RenderOverlay draws polygon outlines over a grayscale render of the source
// channel. The geometry must be raster-frame and row-major so its
// coordinates line up with the image grid.
func RenderOverlay(channel *raster.FloatImage, g models.Geometry) (*image.RGBA, error) {
	if g.Space != models.RasterSpace || g.Orient != models.RowMajor {
		return nil, fmt.Errorf("overlay needs raster row-major geometry, got %s %s", g.Space, g.Orient)
	}

	base := channel.ToGray()
	bounds := base.Bounds()
	img := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := base.GrayAt(x, y).Y
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}

	outline := color.RGBA{230, 25, 75, 255}
	for _, poly := range g.MultiPolygon {
		for _, ring := range poly {
			for i := 0; i < len(ring)-1; i++ {
				drawLine(img,
					int(ring[i][0]), int(ring[i][1]),
					int(ring[i+1][0]), int(ring[i+1][1]),
					outline)
			}
		}
	}
	return img, nil
}

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SavePNG writes an image as PNG, creating parent directories as needed.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("error encoding png: %w", err)
	}
	return nil
}

// SaveLabelTIFF writes label ids as a 16-bit grayscale TIFF, preserving the
// exact label values for tools that reload the map numerically.
func SaveLabelTIFF(lm *regions.LabeledMask, path string) error {
	if lm.MaxLabel > 65535 {
		return fmt.Errorf("label count %d exceeds 16-bit range", lm.MaxLabel)
	}

	img := image.NewGray16(image.Rect(0, 0, lm.Width, lm.Height))
	for y := 0; y < lm.Height; y++ {
		for x := 0; x < lm.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(lm.Get(x, y))})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating label file: %w", err)
	}
	defer f.Close()

	opts := &tiff.Options{Compression: tiff.Deflate}
	if err := tiff.Encode(f, img, opts); err != nil {
		return fmt.Errorf("error encoding tiff: %w", err)
	}
	return nil
}

// SaveMaskPNG writes a binary mask as a black and white PNG.
func SaveMaskPNG(m *raster.BinaryMask, path string) error {
	return SavePNG(m.ToGray(), path)
}

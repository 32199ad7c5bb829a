package visualization

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"tissueseg/internal/models"
	"tissueseg/pkg/raster"
	"tissueseg/pkg/regions"
)

func testLabels() *regions.LabeledMask {
	lm := regions.NewLabeledMask(6, 4)
	for x := 0; x < 3; x++ {
		lm.Set(x, 1, 1)
	}
	lm.Set(5, 3, 2)
	lm.MaxLabel = 2
	return lm
}

func TestRenderLabels(t *testing.T) {
	img := RenderLabels(testLabels())

	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 4 {
		t.Errorf("Expected a 6x4 render, got %v", img.Bounds())
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected black background, got %v", got)
	}
	if got := img.RGBAAt(0, 1); got == (color.RGBA{0, 0, 0, 255}) {
		t.Error("Expected a palette color for label 1")
	}
	if img.RGBAAt(0, 1) == img.RGBAAt(5, 3) {
		t.Error("Expected distinct colors for distinct labels")
	}
}

func TestRenderOverlayFrameCheck(t *testing.T) {
	channel := raster.NewFloatImage(4, 4, 1)
	g := models.Geometry{
		Space:  models.FullresPixelSpace,
		Orient: models.Cartesian,
		Height: 4,
	}
	if _, err := RenderOverlay(channel, g); err == nil {
		t.Error("Expected an error for non-raster geometry")
	}
}

func TestRenderOverlayDrawsOutline(t *testing.T) {
	channel := raster.NewFloatImage(8, 8, 1)
	g := models.Geometry{
		Space:  models.RasterSpace,
		Orient: models.RowMajor,
		Height: 8,
		MultiPolygon: orb.MultiPolygon{{
			{{1, 1}, {6, 1}, {6, 6}, {1, 6}, {1, 1}},
		}},
	}

	img, err := RenderOverlay(channel, g)
	if err != nil {
		t.Fatalf("Failed to render overlay: %v", err)
	}
	outline := color.RGBA{230, 25, 75, 255}
	if got := img.RGBAAt(3, 1); got != outline {
		t.Errorf("Expected an outline pixel on the top edge, got %v", got)
	}
	if got := img.RGBAAt(3, 3); got == outline {
		t.Error("Expected the interior to stay unpainted")
	}
}

func TestSaveLabelTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.tiff")
	if err := SaveLabelTIFF(testLabels(), path); err != nil {
		t.Fatalf("Failed to save label TIFF: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Expected the TIFF to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected a non-empty TIFF file")
	}
}

func TestSaveMaskPNG(t *testing.T) {
	m := raster.NewBinaryMask(4, 4)
	m.Set(2, 2, true)

	path := filepath.Join(t.TempDir(), "sub", "mask.png")
	if err := SaveMaskPNG(m, path); err != nil {
		t.Fatalf("Failed to save mask PNG: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected the PNG to exist: %v", err)
	}
}

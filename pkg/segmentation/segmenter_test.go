package segmentation

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"tissueseg/pkg/raster"
	"tissueseg/pkg/regions"
)

// writeTestImage writes a 100x100 grayscale PNG: bright slide background
// with a dark 40x40 tissue block at (30,30).
func writeTestImage(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			v := uint8(230)
			if x >= 30 && x < 70 && y >= 30 && y < 70 {
				v = 50
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
}

// writeTestSpots writes a scale factor file and a positions table with one
// spot inside the tissue block and one outside, both correctly flagged.
func writeTestSpots(t *testing.T, scalePath, positionsPath string) {
	t.Helper()
	scale := `{"tissue_hires_scalef": 0.5, "tissue_lowres_scalef": 0.15,
		"fiducial_diameter_fullres": 20, "spot_diameter_fullres": 10}`
	if err := os.WriteFile(scalePath, []byte(scale), 0644); err != nil {
		t.Fatalf("Failed to write scale factors: %v", err)
	}

	// The hires block spans 30..70; at scale 0.5 that is 60..140 fullres.
	positions := strings.Join([]string{
		"INSIDE-1,1,0,0,100,100",
		"OUTSIDE-1,0,0,1,20,20",
	}, "\n")
	if err := os.WriteFile(positionsPath, []byte(positions), 0644); err != nil {
		t.Fatalf("Failed to write positions: %v", err)
	}
}

func testParams(tmpDir string) *Params {
	return &Params{
		ImagePath:         filepath.Join(tmpDir, "hires.png"),
		OutputDir:         filepath.Join(tmpDir, "output"),
		Channel:           0,
		Threshold:         0.5,
		Foreground:        raster.ForegroundBelow,
		StructuringRadius: 1,
		Filter:            regions.FilterParams{MinArea: 10},
		KeepFraction:      0.8,
		FlipY:             true,
		FootprintVertices: 8,
		BoundaryName:      "tissue",
	}
}

func TestProcessImageOnly(t *testing.T) {
	tmpDir := t.TempDir()
	params := testParams(tmpDir)
	writeTestImage(t, params.ImagePath)

	seg := NewSegmenter(params, zerolog.Nop())
	if err := seg.Process(); err != nil {
		t.Fatalf("Failed to process: %v", err)
	}

	metrics := seg.Metrics()
	// The cleanup opens away the four corner pixels of the 40x40 block.
	if metrics.MaskArea != 1596 {
		t.Errorf("Expected mask area 1596, got %d", metrics.MaskArea)
	}
	if metrics.RegionCount != 1 || metrics.FilteredCount != 1 {
		t.Errorf("Expected a single surviving region, got %d of %d",
			metrics.FilteredCount, metrics.RegionCount)
	}
	if metrics.ThresholdUsed != 0.5 {
		t.Errorf("Expected the configured threshold, got %f", metrics.ThresholdUsed)
	}

	boundary := seg.Boundary()
	if len(boundary.MultiPolygon) != 1 {
		t.Fatalf("Expected 1 boundary polygon, got %d", len(boundary.MultiPolygon))
	}

	if _, err := os.Stat(filepath.Join(params.OutputDir, "tissue.geojson")); err != nil {
		t.Errorf("Expected the boundary GeoJSON to be written: %v", err)
	}
}

func TestProcessWithSpots(t *testing.T) {
	tmpDir := t.TempDir()
	params := testParams(tmpDir)
	params.ScaleFactorsPath = filepath.Join(tmpDir, "scalefactors_json.json")
	params.PositionsPath = filepath.Join(tmpDir, "tissue_positions_list.csv")
	writeTestImage(t, params.ImagePath)
	writeTestSpots(t, params.ScaleFactorsPath, params.PositionsPath)

	seg := NewSegmenter(params, zerolog.Nop())
	if err := seg.Process(); err != nil {
		t.Fatalf("Failed to process: %v", err)
	}

	metrics := seg.Metrics()
	if metrics.Spots.Total != 2 {
		t.Fatalf("Expected 2 classified spots, got %d", metrics.Spots.Total)
	}
	if metrics.Spots.Same != 2 {
		t.Errorf("Expected both spots to agree with their flags, got %d", metrics.Spots.Same)
	}
	if metrics.Spots.AgreementRate != 1 {
		t.Errorf("Expected full agreement, got %f", metrics.Spots.AgreementRate)
	}

	data, err := os.ReadFile(filepath.Join(params.OutputDir, "tissue_positions_annotated.csv"))
	if err != nil {
		t.Fatalf("Expected the annotated table to be written: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "INSIDE-1,1") || !strings.Contains(text, "same") {
		t.Errorf("Unexpected annotated table contents:\n%s", text)
	}
}

func TestProcessAutoThreshold(t *testing.T) {
	tmpDir := t.TempDir()
	params := testParams(tmpDir)
	params.Threshold = -1
	writeTestImage(t, params.ImagePath)

	seg := NewSegmenter(params, zerolog.Nop())
	if err := seg.Process(); err != nil {
		t.Fatalf("Failed to process: %v", err)
	}

	metrics := seg.Metrics()
	if metrics.ThresholdUsed <= 0 || metrics.ThresholdUsed >= 1 {
		t.Errorf("Expected an automatic threshold in (0,1), got %f", metrics.ThresholdUsed)
	}
	if metrics.MaskArea != 1596 {
		t.Errorf("Expected the Otsu threshold to isolate the block, got area %d", metrics.MaskArea)
	}
}

// TestProcessEmptyResult verifies that a threshold selecting nothing
// produces an empty boundary without an error.
func TestProcessEmptyResult(t *testing.T) {
	tmpDir := t.TempDir()
	params := testParams(tmpDir)
	params.Threshold = 0.01 // below every intensity in the test image
	writeTestImage(t, params.ImagePath)

	seg := NewSegmenter(params, zerolog.Nop())
	if err := seg.Process(); err != nil {
		t.Fatalf("Failed to process: %v", err)
	}

	metrics := seg.Metrics()
	if metrics.MaskArea != 0 || metrics.FilteredCount != 0 {
		t.Errorf("Expected an empty result, got area %d and %d regions",
			metrics.MaskArea, metrics.FilteredCount)
	}
	if len(seg.Boundary().MultiPolygon) != 0 {
		t.Error("Expected an empty boundary")
	}
}

func TestProcessInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"missing image", func(p *Params) { p.ImagePath = "" }},
		{"bad threshold", func(p *Params) { p.Threshold = 1.5 }},
		{"bad keep fraction", func(p *Params) { p.KeepFraction = 0 }},
		{"negative radius", func(p *Params) { p.StructuringRadius = -1 }},
		{"positions without scale", func(p *Params) {
			p.PositionsPath = "positions.csv"
			p.ScaleFactorsPath = ""
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			params := testParams(t.TempDir())
			c.mutate(params)

			seg := NewSegmenter(params, zerolog.Nop())
			err := seg.Process()
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestProcessSavesIntermediaries(t *testing.T) {
	tmpDir := t.TempDir()
	params := testParams(tmpDir)
	params.SaveIntermediaryResults = true
	params.IntermediaryDir = filepath.Join(tmpDir, "intermediary")
	writeTestImage(t, params.ImagePath)

	seg := NewSegmenter(params, zerolog.Nop())
	if err := seg.Process(); err != nil {
		t.Fatalf("Failed to process: %v", err)
	}

	for _, name := range []string{
		"01_threshold_mask.png",
		"02_cleaned_mask.png",
		"03_filtered_labels.tiff",
		"04_boundary_overlay.png",
	} {
		if _, err := os.Stat(filepath.Join(params.IntermediaryDir, name)); err != nil {
			t.Errorf("Expected intermediary %s to exist: %v", name, err)
		}
	}
}

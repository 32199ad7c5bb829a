// Package segmentation drives the full tissue detection pipeline: load the
// hires image, threshold a channel, clean the mask morphologically, label and
// filter connected regions, vectorize the surviving regions into polygons,
// rescale them into the full-resolution frame, and compare every capture spot
// against the resulting boundary.
package segmentation

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"tissueseg/internal/models"
	"tissueseg/pkg/morphology"
	"tissueseg/pkg/raster"
	"tissueseg/pkg/regions"
	"tissueseg/pkg/spatial"
	"tissueseg/pkg/vectorize"
	"tissueseg/pkg/visualization"
)

// ErrInvalidInput marks parameter and input-file problems detected before
// any processing starts. Callers can match it with errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// Params holds the segmentation pipeline configuration.
type Params struct {
	// ImagePath is the tissue_hires_image to segment.
	ImagePath string

	// PositionsPath is the optional tissue positions CSV. When empty, the
	// spot comparison stages are skipped.
	PositionsPath string

	// ScaleFactorsPath is the scalefactors_json.json path. Required when
	// PositionsPath is set; without it polygons stay in the hires frame.
	ScaleFactorsPath string

	// OutputDir receives the annotated spot table and boundary GeoJSON.
	OutputDir string

	// Channel selects which image channel to threshold.
	Channel int

	// Threshold is the normalized cutoff in [0,1]. A negative value selects
	// an automatic Otsu threshold.
	Threshold float64

	// Foreground selects which side of the threshold is tissue.
	Foreground raster.Direction

	// StructuringRadius is the disk radius for the open/close cleanup.
	// Zero skips the cleanup pass entirely.
	StructuringRadius int

	// Filter controls region area filtering and exclusion.
	Filter regions.FilterParams

	// KeepFraction is the polygon simplification ratio in (0,1].
	KeepFraction float64

	// FlipY converts polygons to Cartesian orientation. The spot
	// comparison requires it; disabling it keeps raw raster polygons and
	// skips classification.
	FlipY bool

	// FootprintVertices is the vertex count of each spot footprint polygon.
	FootprintVertices int

	// BoundaryName is the key the tissue boundary is stored and written
	// under.
	BoundaryName string

	// SaveIntermediaryResults enables per-stage image dumps.
	SaveIntermediaryResults bool

	// IntermediaryDir is where stage dumps land when enabled.
	IntermediaryDir string
}

// Metrics reports what the pipeline did, stage by stage.
type Metrics struct {
	// ThresholdUsed is the cutoff actually applied, after Otsu when auto.
	ThresholdUsed float64

	// MaskArea is the foreground pixel count after cleanup.
	MaskArea int

	// RegionCount is the number of connected components found.
	RegionCount int

	// FilteredCount is the number of regions surviving the filter.
	FilteredCount int

	// VerticesTraced and VerticesKept record the simplification effect.
	VerticesTraced int
	VerticesKept   int

	// DroppedPolygons counts regions and holes that degenerated during
	// tracing or simplification.
	DroppedPolygons int

	// Spots holds the classification summary, zero-valued when the spot
	// stages were skipped.
	Spots spatial.Summary
}

// Segmenter runs the pipeline and keeps the intermediate products around for
// inspection.
type Segmenter struct {
	params *Params
	log    zerolog.Logger

	image    *raster.FloatImage
	channel  *raster.FloatImage
	mask     *raster.BinaryMask
	labels   *regions.LabeledMask
	filtered *regions.LabeledMask
	table    regions.FeatureTable
	polygons vectorize.PolygonSet
	boundary models.Geometry
	dataset  *spatial.Dataset

	metrics Metrics
}

// NewSegmenter creates a segmenter with the provided parameters and logger.
func NewSegmenter(params *Params, log zerolog.Logger) *Segmenter {
	return &Segmenter{
		params: params,
		log:    log.With().Str("component", "segmenter").Logger(),
	}
}

// Metrics returns the stage metrics collected by the last Process run.
func (s *Segmenter) Metrics() Metrics { return s.metrics }

// Dataset returns the spot dataset, or nil when the spot stages were skipped.
func (s *Segmenter) Dataset() *spatial.Dataset { return s.dataset }

// Boundary returns the final boundary geometry produced by Process.
func (s *Segmenter) Boundary() models.Geometry { return s.boundary }

// validate rejects parameter combinations the pipeline cannot run with.
// Everything it reports wraps ErrInvalidInput.
func (s *Segmenter) validate() error {
	p := s.params
	if p.ImagePath == "" {
		return fmt.Errorf("%w: image path is required", ErrInvalidInput)
	}
	if p.Channel < 0 {
		return fmt.Errorf("%w: channel %d must not be negative", ErrInvalidInput, p.Channel)
	}
	if p.Threshold > 1 {
		return fmt.Errorf("%w: threshold %g must be in [0,1] or negative for auto", ErrInvalidInput, p.Threshold)
	}
	if p.StructuringRadius < 0 {
		return fmt.Errorf("%w: structuring radius %d must not be negative", ErrInvalidInput, p.StructuringRadius)
	}
	if p.KeepFraction <= 0 || p.KeepFraction > 1 {
		return fmt.Errorf("%w: keep fraction %g must be in (0,1]", ErrInvalidInput, p.KeepFraction)
	}
	if p.PositionsPath != "" {
		if p.ScaleFactorsPath == "" {
			return fmt.Errorf("%w: scale factors are required with a positions table", ErrInvalidInput)
		}
		if p.FootprintVertices < 3 {
			return fmt.Errorf("%w: footprint vertices %d must be at least 3", ErrInvalidInput, p.FootprintVertices)
		}
	}
	if p.BoundaryName == "" {
		p.BoundaryName = "tissue"
	}
	return nil
}

// Process runs the complete segmentation pipeline.
func (s *Segmenter) Process() error {
	if err := s.validate(); err != nil {
		return err
	}

	if s.params.SaveIntermediaryResults {
		if err := os.MkdirAll(s.params.IntermediaryDir, 0755); err != nil {
			return fmt.Errorf("failed to create intermediary directory: %w", err)
		}
	}

	if err := s.buildMask(); err != nil {
		return err
	}
	if err := s.labelAndFilter(); err != nil {
		return err
	}
	if err := s.vectorizeRegions(); err != nil {
		return err
	}
	if s.params.PositionsPath == "" {
		s.log.Info().Msg("no positions table given, skipping spot comparison")
		return s.persist(nil)
	}
	classes, err := s.compareSpots()
	if err != nil {
		return err
	}
	return s.persist(classes)
}

// buildMask loads the image, thresholds the configured channel and applies
// the morphological cleanup.
func (s *Segmenter) buildMask() error {
	s.log.Info().Str("path", s.params.ImagePath).Msg("loading image")
	img, err := raster.Open(s.params.ImagePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.image = img

	ch, err := img.Channel(s.params.Channel)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.channel = ch

	threshold := s.params.Threshold
	if threshold < 0 {
		threshold, err = raster.OtsuThreshold(img, s.params.Channel)
		if err != nil {
			return fmt.Errorf("automatic threshold failed: %w", err)
		}
		s.log.Info().Float64("threshold", threshold).Msg("using automatic Otsu threshold")
	} else if suggestion, err := raster.OtsuThreshold(img, s.params.Channel); err == nil {
		// Report how far the configured cutoff is from the data-driven one.
		s.log.Debug().
			Float64("configured", threshold).
			Float64("otsu", suggestion).
			Msg("threshold versus Otsu suggestion")
	}
	s.metrics.ThresholdUsed = threshold

	mask, err := raster.Threshold(img, s.params.Channel, threshold, s.params.Foreground)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s.saveMask("01_threshold_mask.png", mask)

	if s.params.StructuringRadius > 0 {
		se := morphology.Disk(s.params.StructuringRadius)
		mask = morphology.Clean(mask, se)
		s.saveMask("02_cleaned_mask.png", mask)
	}
	s.mask = mask
	s.metrics.MaskArea = mask.Area()

	s.log.Info().
		Int("width", mask.Width).
		Int("height", mask.Height).
		Int("area", s.metrics.MaskArea).
		Float64("threshold", threshold).
		Str("foreground", s.params.Foreground.String()).
		Msg("mask built")
	return nil
}

// labelAndFilter finds connected components, measures them, and applies the
// area and exclusion filter followed by hole filling.
func (s *Segmenter) labelAndFilter() error {
	s.labels = regions.Label(s.mask)
	s.metrics.RegionCount = s.labels.MaxLabel

	table, err := regions.Measure(s.labels, s.channel)
	if err != nil {
		return fmt.Errorf("failed to measure regions: %w", err)
	}

	s.filtered, s.table = regions.Filter(s.labels, table, s.params.Filter)
	s.metrics.FilteredCount = len(s.table)
	s.saveLabels("03_filtered_labels.tiff", s.filtered)

	s.log.Info().
		Int("found", s.metrics.RegionCount).
		Int("kept", s.metrics.FilteredCount).
		Int("minArea", s.params.Filter.MinArea).
		Msg("regions labeled and filtered")

	if s.metrics.FilteredCount == 0 {
		s.log.Warn().Msg("no regions survive filtering, boundary will be empty")
	}
	return nil
}

// vectorizeRegions traces region outlines, simplifies them, and moves the
// geometry into its output frame.
func (s *Segmenter) vectorizeRegions() error {
	set := vectorize.Trace(s.filtered, models.HiresPixelSpace)
	s.metrics.VerticesTraced = set.Geometry.VertexCount()

	set, err := vectorize.Simplify(set, s.params.KeepFraction)
	if err != nil {
		return fmt.Errorf("failed to simplify polygons: %w", err)
	}
	s.metrics.VerticesKept = set.Geometry.VertexCount()
	s.metrics.DroppedPolygons = set.Dropped
	if set.Dropped > 0 {
		s.log.Warn().Int("dropped", set.Dropped).Msg("degenerate outlines discarded")
	}

	if s.params.SaveIntermediaryResults {
		if overlay, err := visualization.RenderOverlay(s.channel, rasterFrame(set.Geometry)); err == nil {
			s.savePNG("04_boundary_overlay.png", overlay)
		}
	}

	if s.params.FlipY {
		set, err = set.FlipY()
		if err != nil {
			return fmt.Errorf("failed to flip polygons: %w", err)
		}
	}
	s.polygons = set
	s.boundary = set.Geometry

	s.log.Info().
		Int("polygons", len(set.Geometry.MultiPolygon)).
		Int("verticesTraced", s.metrics.VerticesTraced).
		Int("verticesKept", s.metrics.VerticesKept).
		Msg("boundary vectorized")
	return nil
}

// rasterFrame retags hires geometry as raster frame for overlay drawing. The
// hires image is the raster being segmented, so the coordinates are the same.
func rasterFrame(g models.Geometry) models.Geometry {
	g.Space = models.RasterSpace
	return g
}

// compareSpots loads the spot table, rescales the boundary to fullres, and
// classifies every spot against it.
func (s *Segmenter) compareSpots() ([]spatial.Classification, error) {
	if !s.params.FlipY {
		s.log.Warn().Msg("flipY disabled, spot comparison needs cartesian polygons; skipping")
		return nil, nil
	}

	scale, err := spatial.LoadScaleFactors(s.params.ScaleFactorsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	spots, err := spatial.LoadPositions(s.params.PositionsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	full, err := s.polygons.ToFullres(scale.TissueHiresScalef)
	if err != nil {
		return nil, fmt.Errorf("failed to rescale boundary: %w", err)
	}
	s.polygons = full
	s.boundary = full.Geometry

	fullresHeight := float64(s.image.Height) / scale.TissueHiresScalef
	dataset, err := spatial.NewDataset(spots, scale, fullresHeight)
	if err != nil {
		return nil, err
	}
	if err := dataset.BuildFootprints(s.params.FootprintVertices); err != nil {
		return nil, err
	}
	if err := dataset.SetBoundary(s.params.BoundaryName, s.boundary); err != nil {
		return nil, err
	}
	s.dataset = dataset

	if ok, err := dataset.CheckScale(s.params.BoundaryName); err != nil {
		s.log.Warn().Err(err).Msg("could not compare boundary and spot extents")
	} else if !ok {
		s.log.Warn().Msg("boundary and spot extents differ by more than a scale step, check scale factors")
	}

	classes, summary, err := dataset.Classify(s.params.BoundaryName)
	if err != nil {
		return nil, err
	}
	s.metrics.Spots = summary

	s.log.Info().
		Int("spots", summary.Total).
		Int("same", summary.Same).
		Int("externalOnly", summary.ExternalOnly).
		Int("segmentationOnly", summary.SegmentationOnly).
		Float64("agreement", summary.AgreementRate).
		Msg("spots classified")
	return classes, nil
}

// persist writes the boundary GeoJSON and, when classifications exist, the
// annotated spot table.
func (s *Segmenter) persist(classes []spatial.Classification) error {
	if s.params.OutputDir == "" {
		s.log.Info().Msg("no output directory given, skipping persistence")
		return nil
	}
	if err := os.MkdirAll(s.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	geoPath := filepath.Join(s.params.OutputDir, s.params.BoundaryName+".geojson")
	if err := spatial.WriteBoundaryGeoJSON(geoPath, s.params.BoundaryName, s.boundary); err != nil {
		return err
	}
	s.log.Info().Str("path", geoPath).Msg("boundary written")

	if classes != nil && s.dataset != nil {
		csvPath := filepath.Join(s.params.OutputDir, "tissue_positions_annotated.csv")
		if err := s.dataset.WriteAnnotatedCSV(csvPath, classes); err != nil {
			return err
		}
		s.log.Info().Str("path", csvPath).Msg("annotated spot table written")
	}
	return nil
}

func (s *Segmenter) saveMask(name string, m *raster.BinaryMask) {
	if !s.params.SaveIntermediaryResults {
		return
	}
	path := filepath.Join(s.params.IntermediaryDir, name)
	if err := visualization.SaveMaskPNG(m, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to save intermediary mask")
	}
}

func (s *Segmenter) saveLabels(name string, lm *regions.LabeledMask) {
	if !s.params.SaveIntermediaryResults {
		return
	}
	path := filepath.Join(s.params.IntermediaryDir, name)
	if err := visualization.SaveLabelTIFF(lm, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to save intermediary labels")
	}
	png := filepath.Join(s.params.IntermediaryDir, strings.TrimSuffix(name, filepath.Ext(name))+".png")
	if err := visualization.SavePNG(visualization.RenderLabels(lm), png); err != nil {
		s.log.Warn().Err(err).Str("path", png).Msg("failed to save intermediary label render")
	}
}

func (s *Segmenter) savePNG(name string, img image.Image) {
	if !s.params.SaveIntermediaryResults {
		return
	}
	path := filepath.Join(s.params.IntermediaryDir, name)
	if err := visualization.SavePNG(img, path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to save intermediary image")
	}
}

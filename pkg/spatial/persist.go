package spatial

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"tissueseg/internal/models"
)

// WriteAnnotatedCSV writes the spot table with the comparison columns
// appended. Row order follows the dataset's spot order; classifications must
// come from Classify on the same dataset.
func (d *Dataset) WriteAnnotatedCSV(path string, classes []Classification) error {
	if len(classes) != len(d.Spots) {
		return fmt.Errorf("classification count %d does not match spot count %d", len(classes), len(d.Spots))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create annotated table: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"barcode", "in_tissue", "array_row", "array_col",
		"pxl_row_in_fullres", "pxl_col_in_fullres",
		"intersects", "covered", "category",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, s := range d.Spots {
		c := classes[i]
		if c.Barcode != s.Barcode {
			return fmt.Errorf("classification %d is for %q, spot is %q", i, c.Barcode, s.Barcode)
		}
		rec := []string{
			s.Barcode,
			boolFlag(s.InTissue),
			strconv.Itoa(s.ArrayRow),
			strconv.Itoa(s.ArrayCol),
			strconv.FormatFloat(s.PxlRow, 'f', -1, 64),
			strconv.FormatFloat(s.PxlCol, 'f', -1, 64),
			boolFlag(c.Intersects),
			boolFlag(c.Covered),
			string(c.Category),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", s.Barcode, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush annotated table: %w", err)
	}
	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteBoundaryGeoJSON serializes a boundary geometry as a GeoJSON
// FeatureCollection with one multipolygon feature. The coordinate frame and
// orientation are recorded as feature properties so downstream tools can
// tell which frame they are reading.
func WriteBoundaryGeoJSON(path string, name string, g models.Geometry) error {
	feat := geojson.NewFeature(g.MultiPolygon)
	feat.Properties = geojson.Properties{
		"name":        name,
		"space":       g.Space.String(),
		"orientation": g.Orient.String(),
		"height":      g.Height,
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(feat)

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode boundary %q: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write boundary %q: %w", name, err)
	}
	return nil
}

// LoadBoundaryGeoJSON reads a boundary written by WriteBoundaryGeoJSON back
// into a geometry, restoring the recorded frame tags.
func LoadBoundaryGeoJSON(path string) (models.Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Geometry{}, fmt.Errorf("failed to read boundary file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return models.Geometry{}, fmt.Errorf("failed to parse boundary file: %w", err)
	}
	if len(fc.Features) == 0 {
		return models.Geometry{}, fmt.Errorf("boundary file %s has no features", path)
	}

	feat := fc.Features[0]
	var mp orb.MultiPolygon
	switch geom := feat.Geometry.(type) {
	case orb.MultiPolygon:
		mp = geom
	case orb.Polygon:
		mp = orb.MultiPolygon{geom}
	default:
		return models.Geometry{}, fmt.Errorf("boundary feature is %T, want polygon or multipolygon", feat.Geometry)
	}

	g := models.Geometry{
		MultiPolygon: mp,
		Space:        models.ParseSpace(feat.Properties.MustString("space", "")),
		Orient:       models.ParseOrientation(feat.Properties.MustString("orientation", "")),
		Height:       feat.Properties.MustFloat64("height", 0),
	}
	return g, nil
}

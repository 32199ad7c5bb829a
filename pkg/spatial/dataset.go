package spatial

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/paulmach/orb"

	"tissueseg/internal/models"
)

// Spot is one spatially barcoded capture location.
type Spot struct {
	// Barcode identifies the spot.
	Barcode string

	// InTissue is the vendor's prior in-tissue call for this spot.
	InTissue bool

	// ArrayRow and ArrayCol are the spot's grid coordinates on the slide.
	ArrayRow int
	ArrayCol int

	// PxlRow and PxlCol position the spot center in the full-resolution
	// raster frame (row grows down).
	PxlRow float64
	PxlCol float64

	// Footprint is the spot's circular footprint, approximated as a closed
	// ring in the Cartesian full-resolution frame. Built by
	// Dataset.BuildFootprints.
	Footprint orb.Ring
}

// Dataset holds the spot table together with the scale factors and any
// attached annotation geometry.
type Dataset struct {
	Spots []Spot
	Scale *ScaleFactors

	// FullresHeight is the pixel height of the full-resolution frame,
	// needed to express spot rows in Cartesian orientation.
	FullresHeight float64

	boundaries map[string]models.Geometry
}

// NewDataset assembles a dataset from loaded parts. fullresHeight is usually
// derived from the hires image height divided by the hires scale factor.
func NewDataset(spots []Spot, scale *ScaleFactors, fullresHeight float64) (*Dataset, error) {
	if scale == nil {
		return nil, fmt.Errorf("dataset requires scale factors")
	}
	if fullresHeight <= 0 {
		return nil, fmt.Errorf("fullres height %g must be positive", fullresHeight)
	}
	return &Dataset{
		Spots:         spots,
		Scale:         scale,
		FullresHeight: fullresHeight,
		boundaries:    make(map[string]models.Geometry),
	}, nil
}

// SetBoundary attaches an annotation geometry under a fixed name. The
// geometry must be in the Cartesian full-resolution frame, the frame spot
// footprints live in.
func (d *Dataset) SetBoundary(name string, g models.Geometry) error {
	if g.Space != models.FullresPixelSpace {
		return fmt.Errorf("boundary %q is in %s space, want fullres", name, g.Space)
	}
	if g.Orient != models.Cartesian {
		return fmt.Errorf("boundary %q is %s oriented, want cartesian", name, g.Orient)
	}
	d.boundaries[name] = g
	return nil
}

// Boundary returns a previously attached annotation geometry.
func (d *Dataset) Boundary(name string) (models.Geometry, bool) {
	g, ok := d.boundaries[name]
	return g, ok
}

// BuildFootprints constructs each spot's footprint as a regular polygon with
// the given vertex count, inscribed in the spot diameter, centered on the
// spot's full-resolution position converted to Cartesian orientation.
func (d *Dataset) BuildFootprints(vertices int) error {
	if vertices < 3 {
		return fmt.Errorf("footprint needs at least 3 vertices, got %d", vertices)
	}
	radius := d.Scale.SpotDiameterFullres / 2

	for i := range d.Spots {
		s := &d.Spots[i]
		cx := s.PxlCol
		cy := d.FullresHeight - s.PxlRow

		ring := make(orb.Ring, vertices+1)
		for v := 0; v < vertices; v++ {
			angle := 2 * math.Pi * float64(v) / float64(vertices)
			ring[v] = orb.Point{cx + radius*math.Cos(angle), cy + radius*math.Sin(angle)}
		}
		ring[vertices] = ring[0]
		s.Footprint = ring
	}
	return nil
}

// positionColumns is the Visium tissue position table layout:
// barcode, in_tissue, array_row, array_col, pxl_row_in_fullres, pxl_col_in_fullres.
const positionColumns = 6

// LoadPositions reads a tissue_positions CSV. Both layouts spaceranger has
// shipped are accepted: the headerless tissue_positions_list.csv and the
// tissue_positions.csv variant whose first row names the columns.
func LoadPositions(path string) ([]Spot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open positions table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = positionColumns

	var spots []Spot
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read positions table: %w", err)
		}
		if first {
			first = false
			if rec[0] == "barcode" {
				continue // header row
			}
		}

		spot, err := parseSpot(rec)
		if err != nil {
			return nil, fmt.Errorf("bad position row for %q: %w", rec[0], err)
		}
		spots = append(spots, spot)
	}

	if len(spots) == 0 {
		return nil, fmt.Errorf("positions table %s contains no spots", path)
	}
	return spots, nil
}

func parseSpot(rec []string) (Spot, error) {
	inTissue, err := strconv.Atoi(rec[1])
	if err != nil {
		return Spot{}, fmt.Errorf("in_tissue: %w", err)
	}
	arrayRow, err := strconv.Atoi(rec[2])
	if err != nil {
		return Spot{}, fmt.Errorf("array_row: %w", err)
	}
	arrayCol, err := strconv.Atoi(rec[3])
	if err != nil {
		return Spot{}, fmt.Errorf("array_col: %w", err)
	}
	pxlRow, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return Spot{}, fmt.Errorf("pxl_row_in_fullres: %w", err)
	}
	pxlCol, err := strconv.ParseFloat(rec[5], 64)
	if err != nil {
		return Spot{}, fmt.Errorf("pxl_col_in_fullres: %w", err)
	}

	return Spot{
		Barcode:  rec[0],
		InTissue: inTissue != 0,
		ArrayRow: arrayRow,
		ArrayCol: arrayCol,
		PxlRow:   pxlRow,
		PxlCol:   pxlCol,
	}, nil
}

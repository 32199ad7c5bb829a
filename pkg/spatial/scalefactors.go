// Package spatial models the spot side of a Visium dataset: per-spot
// positions and footprints, the scale-factor record relating the image
// resolutions, the geometric comparison of spots against a computed tissue
// boundary, and serialization of the annotated result.
package spatial

import (
	"encoding/json"
	"fmt"
	"os"
)

// ScaleFactors is the spaceranger scalefactors_json.json record. It is a
// fixed four-field struct rather than an open map so that a missing or
// malformed field fails at load time instead of deep inside the pipeline.
type ScaleFactors struct {
	// TissueHiresScalef maps full-resolution pixel coordinates into the
	// hires image frame; always below one.
	TissueHiresScalef float64 `json:"tissue_hires_scalef"`

	// TissueLowresScalef maps full-resolution coordinates into the lowres
	// image frame.
	TissueLowresScalef float64 `json:"tissue_lowres_scalef"`

	// FiducialDiameterFullres is the fiducial marker diameter in
	// full-resolution pixels.
	FiducialDiameterFullres float64 `json:"fiducial_diameter_fullres"`

	// SpotDiameterFullres is the capture spot diameter in full-resolution
	// pixels, the size of each spot's footprint.
	SpotDiameterFullres float64 `json:"spot_diameter_fullres"`
}

// Validate checks the record for physically meaningful values.
func (s *ScaleFactors) Validate() error {
	if s.TissueHiresScalef <= 0 || s.TissueHiresScalef > 1 {
		return fmt.Errorf("tissue_hires_scalef %g out of range (0,1]", s.TissueHiresScalef)
	}
	if s.TissueLowresScalef <= 0 || s.TissueLowresScalef > 1 {
		return fmt.Errorf("tissue_lowres_scalef %g out of range (0,1]", s.TissueLowresScalef)
	}
	if s.SpotDiameterFullres <= 0 {
		return fmt.Errorf("spot_diameter_fullres %g must be positive", s.SpotDiameterFullres)
	}
	if s.FiducialDiameterFullres <= 0 {
		return fmt.Errorf("fiducial_diameter_fullres %g must be positive", s.FiducialDiameterFullres)
	}
	return nil
}

// LoadScaleFactors reads and validates a scalefactors_json.json file.
func LoadScaleFactors(path string) (*ScaleFactors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scale factors: %w", err)
	}
	var sf ScaleFactors
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse scale factors: %w", err)
	}
	if err := sf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scale factors in %s: %w", path, err)
	}
	return &sf, nil
}

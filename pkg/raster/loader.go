package raster

import (
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff" // register TIFF decoder for fullres scans
)

// Open decodes the image at path into a FloatImage. PNG, JPEG, TIFF and BMP
// are accepted; Visium hires images are PNG, fullres scans usually TIFF.
//
// An image with an unexpected channel count (anything that decodes to fewer
// than one band) cannot occur with the registered decoders, so the only
// failure modes are I/O and decode errors.
func Open(path string) (*FloatImage, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return FromImage(img), nil
}

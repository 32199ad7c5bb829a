package vectorize

// FlipY mirrors the polygon set vertically, converting the raster row-major
// orientation into Cartesian (or back). Applied once, before the geometry is
// handed to anything that thinks in geometric y-up coordinates.
func (s PolygonSet) FlipY() (PolygonSet, error) {
	g, err := s.Geometry.FlipY()
	if err != nil {
		return PolygonSet{}, err
	}
	return PolygonSet{Geometry: g, Labels: s.Labels, Dropped: s.Dropped}, nil
}

// ToFullres rescales the set from the hires pixel frame into the
// full-resolution frame by dividing every coordinate by the hires scale
// factor. The frame tag guarantees the division happens exactly once.
func (s PolygonSet) ToFullres(hiresScale float64) (PolygonSet, error) {
	g, err := s.Geometry.ToFullres(hiresScale)
	if err != nil {
		return PolygonSet{}, err
	}
	return PolygonSet{Geometry: g, Labels: s.Labels, Dropped: s.Dropped}, nil
}

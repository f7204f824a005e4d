package spatialmath

import (
	"github.com/pkg/errors"
)

func newBadGeometryDimensionsError(g Geometry) error {
	return errors.Errorf("invalid dimension(s) for a %T", g)
}

func newBadInflationError(g Geometry, padding, scale float64) error {
	return errors.Errorf("cannot inflate %s with padding %g and scale %g", g.Label(), padding, scale)
}

// NewUnsupportedGeometryTypeError is used when a geometry config names a type that cannot be built.
func NewUnsupportedGeometryTypeError(geometryType GeometryType) error {
	return errors.Errorf("unsupported geometry type %q", geometryType)
}

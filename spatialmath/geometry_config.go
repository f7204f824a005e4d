package spatialmath

import (
	"github.com/golang/geo/r3"
)

// GeometryConfig specifies a geometry in a serializable form. Dimensions are full extents in
// meters: X, Y, Z for boxes, R for spheres, R and L for cylinders.
type GeometryConfig struct {
	Type GeometryType `json:"type"`

	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
	Z float64 `json:"z,omitempty"`
	R float64 `json:"r,omitempty"`
	L float64 `json:"l,omitempty"`

	TranslationOffset r3.Vector   `json:"translation,omitempty"`
	OrientationOffset EulerAngles `json:"orientation,omitempty"`
	Label             string      `json:"label,omitempty"`
}

// ParseConfig builds the configured geometry, placed at its offset.
func (config *GeometryConfig) ParseConfig() (Geometry, error) {
	offset := NewPose(config.TranslationOffset, &config.OrientationOffset)
	switch config.Type {
	case BoxType:
		return NewBox(offset, r3.Vector{X: config.X, Y: config.Y, Z: config.Z}, config.Label)
	case SphereType:
		return NewSphere(offset, config.R, config.Label)
	case CylinderType:
		return NewCylinder(offset, config.R, config.L, config.Label)
	default:
		return nil, NewUnsupportedGeometryTypeError(config.Type)
	}
}

// NewGeometryConfig serializes a geometry back into its config form.
func NewGeometryConfig(g Geometry) (*GeometryConfig, error) {
	config := &GeometryConfig{
		TranslationOffset: g.Pose().Point(),
		OrientationOffset: *g.Pose().Orientation().EulerAngles(),
		Label:             g.Label(),
	}
	switch gType := g.(type) {
	case *box:
		config.Type = BoxType
		config.X, config.Y, config.Z = 2*gType.halfSize.X, 2*gType.halfSize.Y, 2*gType.halfSize.Z
	case *sphere:
		config.Type = SphereType
		config.R = gType.radius
	case *cylinder:
		config.Type = CylinderType
		config.R, config.L = gType.radius, gType.length
	default:
		return nil, NewUnsupportedGeometryTypeError(GeometryType("unknown"))
	}
	return config, nil
}

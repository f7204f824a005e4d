package spatialmath

import (
	"github.com/golang/geo/r3"
)

// GeometryType is the name of a geometry shape, as used in configs and URDF collision elements.
type GeometryType string

// The geometry types understood by ParseConfig.
const (
	BoxType      = GeometryType("box")
	SphereType   = GeometryType("sphere")
	CylinderType = GeometryType("cylinder")
)

// Geometry is a closed volume placed in space by a pose.
type Geometry interface {
	Pose() Pose
	Label() string
	SetLabel(string)
	// Transform premultiplies the geometry pose with the given transform, moving the geometry.
	Transform(toPremultiply Pose) Geometry
	// ContainsPoint reports whether pt lies strictly inside the volume. Points on the surface
	// are outside.
	ContainsPoint(pt r3.Vector) bool
	// BoundingRadius is the radius of a sphere about Pose().Point() enclosing the volume.
	BoundingRadius() float64
	// Inflate scales the linear dimensions of the geometry by `scale` and then grows its surface
	// outward by `padding`.
	Inflate(padding, scale float64) (Geometry, error)
	String() string
}

// toLocal expresses a world point in the frame of the given pose.
func toLocal(pose Pose, pt r3.Vector) r3.Vector {
	return TransformPoint(PoseInverse(pose), pt)
}

func checkInflation(padding, scale float64, g Geometry) error {
	if scale <= 0 {
		return newBadInflationError(g, padding, scale)
	}
	return nil
}

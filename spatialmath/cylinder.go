package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// cylinder is a right circular cylinder centered on its pose with its axis along the local Z
// axis, as URDF defines it.
type cylinder struct {
	pose   Pose
	radius float64
	length float64
	label  string
}

// NewCylinder instantiates a new cylinder Geometry.
func NewCylinder(pose Pose, radius, length float64, label string) (Geometry, error) {
	if radius < 0 || length < 0 {
		return nil, newBadGeometryDimensionsError(&cylinder{})
	}
	return &cylinder{pose: pose, radius: radius, length: length, label: label}, nil
}

func (c *cylinder) Pose() Pose {
	return c.pose
}

func (c *cylinder) Label() string {
	return c.label
}

func (c *cylinder) SetLabel(label string) {
	c.label = label
}

func (c *cylinder) Transform(toPremultiply Pose) Geometry {
	return &cylinder{pose: Compose(toPremultiply, c.pose), radius: c.radius, length: c.length, label: c.label}
}

func (c *cylinder) ContainsPoint(pt r3.Vector) bool {
	local := toLocal(c.pose, pt)
	return math.Abs(local.Z) < c.length/2 && local.X*local.X+local.Y*local.Y < c.radius*c.radius
}

func (c *cylinder) BoundingRadius() float64 {
	return math.Hypot(c.radius, c.length/2)
}

func (c *cylinder) Inflate(padding, scale float64) (Geometry, error) {
	if err := checkInflation(padding, scale, c); err != nil {
		return nil, err
	}
	return NewCylinder(c.pose, c.radius*scale+padding, c.length*scale+2*padding, c.label)
}

func (c *cylinder) String() string {
	pt := c.pose.Point()
	return fmt.Sprintf("Type: Cylinder | Position: X:%.3f, Y:%.3f, Z:%.3f | Radius: %.3f | Length: %.3f",
		pt.X, pt.Y, pt.Z, c.radius, c.length)
}

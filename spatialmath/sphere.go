package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
)

type sphere struct {
	pose   Pose
	radius float64
	label  string
}

// NewSphere instantiates a new sphere Geometry.
func NewSphere(pose Pose, radius float64, label string) (Geometry, error) {
	if radius < 0 {
		return nil, newBadGeometryDimensionsError(&sphere{})
	}
	return &sphere{pose: pose, radius: radius, label: label}, nil
}

func (s *sphere) Pose() Pose {
	return s.pose
}

func (s *sphere) Label() string {
	return s.label
}

func (s *sphere) SetLabel(label string) {
	s.label = label
}

func (s *sphere) Transform(toPremultiply Pose) Geometry {
	return &sphere{pose: Compose(toPremultiply, s.pose), radius: s.radius, label: s.label}
}

func (s *sphere) ContainsPoint(pt r3.Vector) bool {
	return pt.Sub(s.pose.Point()).Norm2() < s.radius*s.radius
}

func (s *sphere) BoundingRadius() float64 {
	return s.radius
}

func (s *sphere) Inflate(padding, scale float64) (Geometry, error) {
	if err := checkInflation(padding, scale, s); err != nil {
		return nil, err
	}
	return NewSphere(s.pose, s.radius*scale+padding, s.label)
}

func (s *sphere) String() string {
	pt := s.pose.Point()
	return fmt.Sprintf("Type: Sphere | Position: X:%.3f, Y:%.3f, Z:%.3f | Radius: %.3f", pt.X, pt.Y, pt.Z, s.radius)
}

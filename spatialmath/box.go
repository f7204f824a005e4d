package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// box is a collision geometry that represents a 3D rectangular prism, it has a pose and half size
// that fully define it.
type box struct {
	pose     Pose
	halfSize r3.Vector
	label    string
}

// NewBox instantiates a new box Geometry with the given full dimensions.
func NewBox(pose Pose, dims r3.Vector, label string) (Geometry, error) {
	// Negative dimensions not allowed. Zero dimensions are allowed for degenerate boxes.
	if dims.X < 0 || dims.Y < 0 || dims.Z < 0 {
		return nil, newBadGeometryDimensionsError(&box{})
	}
	return &box{pose: pose, halfSize: dims.Mul(0.5), label: label}, nil
}

func (b *box) Pose() Pose {
	return b.pose
}

func (b *box) Label() string {
	return b.label
}

func (b *box) SetLabel(label string) {
	b.label = label
}

func (b *box) Transform(toPremultiply Pose) Geometry {
	return &box{pose: Compose(toPremultiply, b.pose), halfSize: b.halfSize, label: b.label}
}

func (b *box) ContainsPoint(pt r3.Vector) bool {
	local := toLocal(b.pose, pt)
	return math.Abs(local.X) < b.halfSize.X &&
		math.Abs(local.Y) < b.halfSize.Y &&
		math.Abs(local.Z) < b.halfSize.Z
}

func (b *box) BoundingRadius() float64 {
	return b.halfSize.Norm()
}

func (b *box) Inflate(padding, scale float64) (Geometry, error) {
	if err := checkInflation(padding, scale, b); err != nil {
		return nil, err
	}
	dims := b.halfSize.Mul(2 * scale).Add(r3.Vector{X: 2 * padding, Y: 2 * padding, Z: 2 * padding})
	return NewBox(b.pose, dims, b.label)
}

// String returns a human readable string that represents the box.
func (b *box) String() string {
	pt := b.pose.Point()
	return fmt.Sprintf("Type: Box | Position: X:%.3f, Y:%.3f, Z:%.3f | Dims: X:%.3f, Y:%.3f, Z:%.3f",
		pt.X, pt.Y, pt.Z, 2*b.halfSize.X, 2*b.halfSize.Y, 2*b.halfSize.Z)
}

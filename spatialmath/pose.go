package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a 6dof rigid transform. Applying a pose to a point rotates the point by the
// orientation and then translates it by the position.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

type basicPose struct {
	point r3.Vector
	q     quat.Number
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return &basicPose{q: quat.Number{Real: 1}}
}

// NewPose returns a pose at the given point with the given orientation.
func NewPose(point r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(point)
	}
	return &basicPose{point: point, q: Normalize(o.Quaternion())}
}

// NewPoseFromPoint returns a pose at the given point with no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return &basicPose{point: point, q: quat.Number{Real: 1}}
}

// NewPoseFromOrientation returns a pose at the origin with the given orientation.
func NewPoseFromOrientation(o Orientation) Pose {
	return NewPose(r3.Vector{}, o)
}

func (p *basicPose) Point() r3.Vector {
	return p.point
}

func (p *basicPose) Orientation() Orientation {
	q := Quaternion(p.q)
	return &q
}

func (p *basicPose) String() string {
	ea := QuatToEulerAngles(p.q)
	return fmt.Sprintf("X:%.4f Y:%.4f Z:%.4f Roll:%.4f Pitch:%.4f Yaw:%.4f",
		p.point.X, p.point.Y, p.point.Z, ea.Roll, ea.Pitch, ea.Yaw)
}

// Compose returns the pose that results from applying b and then a, i.e. b expressed in a's
// parent frame when b is given relative to a.
func Compose(a, b Pose) Pose {
	qa := a.Orientation().Quaternion()
	return &basicPose{
		point: a.Point().Add(RotateVector(qa, b.Point())),
		q:     Normalize(quat.Mul(qa, b.Orientation().Quaternion())),
	}
}

// PoseInverse returns the pose that undoes p.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(Normalize(p.Orientation().Quaternion()))
	return &basicPose{
		point: RotateVector(inv, p.Point()).Mul(-1),
		q:     inv,
	}
}

// PoseBetween returns the pose that transforms a into b, such that Compose(a, PoseBetween(a, b))
// is b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint applies the pose to a point.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return p.Point().Add(RotateVector(p.Orientation().Quaternion(), pt))
}

// Interpolate returns the pose `by` of the way from p1 to p2, linearly interpolating the
// translation and slerping the orientation.
func Interpolate(p1, p2 Pose, by float64) Pose {
	a, b := p1.Point(), p2.Point()
	return &basicPose{
		point: a.Add(b.Sub(a).Mul(by)),
		q:     Slerp(Normalize(p1.Orientation().Quaternion()), Normalize(p2.Orientation().Quaternion()), by),
	}
}

// PoseAlmostEqual returns whether two poses are within 1e-8 in translation and describe the same
// rotation within 1e-5.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-8)
}

// PoseAlmostEqualEps is PoseAlmostEqual with a configurable translation epsilon.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon) &&
		OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

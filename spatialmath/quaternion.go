package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is an Orientation expressed as a unit quaternion.
type Quaternion quat.Number

// NewQuaternion returns the normalized orientation with the given components. ROS messages order
// them x, y, z, w; this constructor takes w first.
func NewQuaternion(w, x, y, z float64) *Quaternion {
	q := Quaternion(Normalize(quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}))
	return &q
}

// Quaternion returns the orientation in quaternion representation.
func (q *Quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// AxisAngles returns the orientation in axis angle representation.
func (q *Quaternion) AxisAngles() *R4AA {
	return QuatToR4AA(q.Quaternion())
}

// EulerAngles returns the orientation in Euler angle representation.
func (q *Quaternion) EulerAngles() *EulerAngles {
	return QuatToEulerAngles(q.Quaternion())
}

// Normalize scales a quaternion to unit length. The zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// Slerp spherically interpolates between two unit quaternions along the shorter arc. `by` is
// expected in [0, 1].
func Slerp(q0, q1 quat.Number, by float64) quat.Number {
	dot := q0.Real*q1.Real + q0.Imag*q1.Imag + q0.Jmag*q1.Jmag + q0.Kmag*q1.Kmag
	if dot < 0 {
		q1 = quat.Scale(-1, q1)
		dot = -dot
	}
	// Nearly parallel quaternions fall back to a normalized lerp.
	if dot > 0.9995 {
		return Normalize(quat.Add(q0, quat.Scale(by, quat.Sub(q1, q0))))
	}
	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	s0 := math.Sin((1-by)*theta) / sinTheta
	s1 := math.Sin(by*theta) / sinTheta
	return quat.Add(quat.Scale(s0, q0), quat.Scale(s1, q1))
}

// QuaternionAlmostEqual is an equality test for two quaternions representing the same rotation.
// q and -q are treated as equal.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := math.Abs(a.Real-b.Real) < tol && math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol && math.Abs(a.Kmag-b.Kmag) < tol
	if same {
		return true
	}
	return math.Abs(a.Real+b.Real) < tol && math.Abs(a.Imag+b.Imag) < tol &&
		math.Abs(a.Jmag+b.Jmag) < tol && math.Abs(a.Kmag+b.Kmag) < tol
}

// QuatToR4AA converts a unit quaternion to an axis angle.
func QuatToR4AA(q quat.Number) *R4AA {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	denom := math.Sqrt(1 - q.Real*q.Real)
	if denom < 1e-12 {
		return NewR4AA()
	}
	return &R4AA{
		Theta: 2 * math.Acos(math.Min(1, q.Real)),
		RX:    q.Imag / denom,
		RY:    q.Jmag / denom,
		RZ:    q.Kmag / denom,
	}
}

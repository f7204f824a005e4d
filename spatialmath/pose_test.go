package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestComposeAndInverse(t *testing.T) {
	// a quarter turn about Z, then a meter along X
	p := NewPose(r3.Vector{X: 1}, &EulerAngles{Yaw: math.Pi / 2})
	pt := TransformPoint(p, r3.Vector{X: 1})
	test.That(t, R3VectorAlmostEqual(pt, r3.Vector{X: 1, Y: 1}, 1e-9), test.ShouldBeTrue)

	identity := Compose(p, PoseInverse(p))
	test.That(t, PoseAlmostEqual(identity, NewZeroPose()), test.ShouldBeTrue)

	back := TransformPoint(PoseInverse(p), pt)
	test.That(t, R3VectorAlmostEqual(back, r3.Vector{X: 1}, 1e-9), test.ShouldBeTrue)

	q := NewPose(r3.Vector{Z: 2}, &R4AA{Theta: math.Pi, RX: 1})
	composed := Compose(p, q)
	direct := TransformPoint(p, TransformPoint(q, r3.Vector{Y: 1}))
	test.That(t, R3VectorAlmostEqual(TransformPoint(composed, r3.Vector{Y: 1}), direct, 1e-9), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Compose(p, PoseBetween(p, q)), q), test.ShouldBeTrue)
}

func TestEulerRoundTrip(t *testing.T) {
	ea := &EulerAngles{Roll: 0.3, Pitch: -0.4, Yaw: 1.2}
	back := QuatToEulerAngles(ea.Quaternion())
	test.That(t, back.Roll, test.ShouldAlmostEqual, ea.Roll)
	test.That(t, back.Pitch, test.ShouldAlmostEqual, ea.Pitch)
	test.That(t, back.Yaw, test.ShouldAlmostEqual, ea.Yaw)

	// roll alone rotates Y into Z
	rolled := RotateVector((&EulerAngles{Roll: math.Pi / 2}).Quaternion(), r3.Vector{Y: 1})
	test.That(t, R3VectorAlmostEqual(rolled, r3.Vector{Z: 1}, 1e-9), test.ShouldBeTrue)

	aa := ea.AxisAngles()
	test.That(t, OrientationAlmostEqual(aa, ea), test.ShouldBeTrue)
}

func TestInterpolate(t *testing.T) {
	start := NewZeroPose()
	end := NewPose(r3.Vector{X: 2, Y: -2}, &EulerAngles{Yaw: math.Pi / 2})

	mid := Interpolate(start, end, 0.5)
	test.That(t, R3VectorAlmostEqual(mid.Point(), r3.Vector{X: 1, Y: -1}, 1e-9), test.ShouldBeTrue)
	test.That(t, mid.Orientation().EulerAngles().Yaw, test.ShouldAlmostEqual, math.Pi/4)

	test.That(t, PoseAlmostEqual(Interpolate(start, end, 0), start), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Interpolate(start, end, 1), end), test.ShouldBeTrue)

	// nearly identical orientations take the lerp branch
	near := NewPose(r3.Vector{}, &EulerAngles{Yaw: 1e-4})
	test.That(t, Interpolate(start, near, 0.5).Orientation().EulerAngles().Yaw, test.ShouldAlmostEqual, 5e-5)
}

func TestQuaternionSignInsensitive(t *testing.T) {
	q := NewQuaternion(0, 0, 0, 1)
	negated := NewQuaternion(0, 0, 0, -1)
	test.That(t, OrientationAlmostEqual(q, negated), test.ShouldBeTrue)
	test.That(t, OrientationAlmostEqual(q, NewZeroOrientation()), test.ShouldBeFalse)

	between := OrientationBetween(NewZeroOrientation(), q)
	test.That(t, OrientationAlmostEqual(between, q), test.ShouldBeTrue)

	// a zero quaternion normalizes to the identity
	test.That(t, OrientationAlmostEqual(NewQuaternion(0, 0, 0, 0), NewZeroOrientation()), test.ShouldBeTrue)
}

func TestIsFinite(t *testing.T) {
	test.That(t, IsFinite(r3.Vector{X: 1, Y: -2, Z: 3}), test.ShouldBeTrue)
	test.That(t, IsFinite(r3.Vector{X: math.NaN()}), test.ShouldBeFalse)
	test.That(t, IsFinite(r3.Vector{Y: math.Inf(1)}), test.ShouldBeFalse)
	test.That(t, IsFinite(r3.Vector{Z: math.Inf(-1)}), test.ShouldBeFalse)

	test.That(t, PoseIsFinite(NewPoseFromPoint(r3.Vector{X: 1})), test.ShouldBeTrue)
	test.That(t, PoseIsFinite(NewPoseFromPoint(r3.Vector{X: math.NaN()})), test.ShouldBeFalse)
	test.That(t, PoseIsFinite(NewPose(r3.Vector{}, NewQuaternion(1, math.NaN(), 0, 0))), test.ShouldBeFalse)
	test.That(t, PoseIsFinite(NewPose(r3.Vector{}, NewQuaternion(math.Inf(1), 0, 0, 0))), test.ShouldBeFalse)
}

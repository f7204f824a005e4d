package referenceframe

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/spatialmath"
)

const armURDF = `<?xml version="1.0"?>
<robot name="arm">
  <link name="BODY">
    <collision>
      <geometry><box size="0.4 0.4 0.2"/></geometry>
    </collision>
  </link>
  <link name="upper">
    <collision>
      <origin xyz="0 0 0.25" rpy="0 0 0"/>
      <geometry><cylinder radius="0.05" length="0.5"/></geometry>
    </collision>
  </link>
  <link name="hand">
    <collision>
      <geometry><sphere radius="0.05"/></geometry>
    </collision>
  </link>
  <link name="camera">
    <collision>
      <geometry><mesh filename="package://arm/camera.stl"/></geometry>
    </collision>
  </link>
  <link name="slider"/>
  <joint name="shoulder" type="revolute">
    <parent link="BODY"/>
    <child link="upper"/>
    <origin xyz="0 0 0.1"/>
    <axis xyz="0 1 0"/>
    <limit lower="-1.5" upper="1.5"/>
  </joint>
  <joint name="wrist" type="fixed">
    <parent link="upper"/>
    <child link="hand"/>
    <origin xyz="0 0 0.5"/>
  </joint>
  <joint name="camera_mount" type="continuous">
    <parent link="BODY"/>
    <child link="camera"/>
    <origin xyz="0.2 0 0" rpy="0 0 1.5707963267948966"/>
    <axis xyz="0 0 1"/>
  </joint>
  <joint name="rail" type="prismatic">
    <parent link="BODY"/>
    <child link="slider"/>
    <axis xyz="1 0 0"/>
    <limit lower="0" upper="0.3"/>
  </joint>
</robot>`

func TestParseURDF(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	m, err := ParseURDF([]byte(armURDF), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Name(), test.ShouldEqual, "arm")
	test.That(t, m.LinkNames(), test.ShouldResemble, []string{"BODY", "camera", "hand", "slider", "upper"})
	test.That(t, m.MovableJointNames(), test.ShouldResemble, []string{"camera_mount", "rail", "shoulder"})
	test.That(t, m.Roots(), test.ShouldResemble, []string{"BODY"})

	upper, ok := m.Link("upper")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, upper.Geometry, test.ShouldNotBeNil)
	test.That(t, upper.Geometry.Label(), test.ShouldEqual, "upper")

	camera, ok := m.Link("camera")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, camera.Geometry, test.ShouldBeNil)
	test.That(t, camera.UnsupportedShape, test.ShouldEqual, "mesh")
	test.That(t, logs.FilterMessage("skipping link collision geometry").Len(), test.ShouldEqual, 1)

	slider, ok := m.Link("slider")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, slider.Geometry, test.ShouldBeNil)
	test.That(t, slider.UnsupportedShape, test.ShouldEqual, "")

	_, ok = m.Link("missing")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestParseURDFErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := ParseURDF(nil, logger)
	test.That(t, err, test.ShouldEqual, ErrNoModelInformation)

	_, err = ParseURDF([]byte("<robot"), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = ParseURDF([]byte(`<robot name="r"><link name="a"/>
		<joint name="j" type="fixed"><parent link="a"/><child link="b"/></joint></robot>`), logger)
	test.That(t, err, test.ShouldBeError, NewFrameNotInListOfTransformsError("b"))

	_, err = ParseURDF([]byte(`<robot name="r"><link name="a"/><link name="b"/>
		<joint name="j" type="screw"><parent link="a"/><child link="b"/></joint></robot>`), logger)
	test.That(t, err, test.ShouldBeError, NewUnsupportedJointTypeError("screw"))

	_, err = ParseURDFFile("does-not-exist.urdf", logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLinkPoses(t *testing.T) {
	m, err := ParseURDF([]byte(armURDF), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	bodyPose := spatialmath.NewPoseFromPoint(r3.Vector{X: 1})
	poses, err := m.LinkPoses("BODY", bodyPose, map[string]float64{"shoulder": math.Pi / 2, "rail": 0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(poses), test.ShouldEqual, 5)

	// a quarter turn about Y swings the upper arm from +Z to +X
	hand := poses["hand"].Point()
	test.That(t, spatialmath.R3VectorAlmostEqual(hand, r3.Vector{X: 1.5, Z: 0.1}, 1e-9), test.ShouldBeTrue)
	slider := poses["slider"].Point()
	test.That(t, spatialmath.R3VectorAlmostEqual(slider, r3.Vector{X: 1.2}, 1e-9), test.ShouldBeTrue)
	// missing joint positions default to zero
	test.That(t, poses["camera"].Orientation().EulerAngles().Yaw, test.ShouldAlmostEqual, math.Pi/2)

	// walking up from the hand lands the body in the same place
	fromHand, err := m.LinkPoses("hand", poses["hand"], map[string]float64{"shoulder": math.Pi / 2, "rail": 0.2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqualEps(fromHand["BODY"], bodyPose, 1e-9), test.ShouldBeTrue)
	test.That(t, spatialmath.PoseAlmostEqualEps(fromHand["slider"], poses["slider"], 1e-9), test.ShouldBeTrue)

	// a bad position leaves the links behind that joint unposed
	partial, err := m.LinkPoses("BODY", bodyPose, map[string]float64{"shoulder": math.NaN()})
	test.That(t, err, test.ShouldNotBeNil)
	_, ok := partial["upper"]
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = partial["hand"]
	test.That(t, ok, test.ShouldBeFalse)
	_, ok = partial["slider"]
	test.That(t, ok, test.ShouldBeTrue)

	_, err = m.LinkPoses("nope", bodyPose, nil)
	test.That(t, err, test.ShouldBeError, NewLinkNotFoundError("nope"))
}

func TestNewJointConfiguration(t *testing.T) {
	stamp := time.Unix(10, 0)
	jc, err := NewJointConfiguration(stamp, []string{"a", "b"}, []float64{1, 2}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, jc.Timestamp(), test.ShouldEqual, stamp)
	test.That(t, jc.Positions, test.ShouldResemble, map[string]float64{"a": 1, "b": 2})
	test.That(t, spatialmath.PoseAlmostEqual(jc.BodyPose, spatialmath.NewZeroPose()), test.ShouldBeTrue)

	_, err = NewJointConfiguration(stamp, []string{"a"}, nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

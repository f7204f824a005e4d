package referenceframe

import (
	"time"

	"go.viam.com/selfcollision/spatialmath"
)

// JointConfiguration is one timestamped sample of the robot's joint positions together with the
// pose of its root body link in the world frame.
type JointConfiguration struct {
	Stamp     time.Time
	Positions map[string]float64
	BodyPose  spatialmath.Pose
}

// NewJointConfiguration pairs up joint names and positions as they arrive in a joint state
// message. A nil body pose is the identity.
func NewJointConfiguration(stamp time.Time, names []string, positions []float64, bodyPose spatialmath.Pose) (JointConfiguration, error) {
	if len(names) != len(positions) {
		return JointConfiguration{}, newJointLengthMismatchError(len(names), len(positions))
	}
	if bodyPose == nil {
		bodyPose = spatialmath.NewZeroPose()
	}
	jc := JointConfiguration{
		Stamp:     stamp,
		Positions: make(map[string]float64, len(names)),
		BodyPose:  bodyPose,
	}
	for i, name := range names {
		jc.Positions[name] = positions[i]
	}
	return jc, nil
}

// Timestamp returns the time the configuration was sampled.
func (jc JointConfiguration) Timestamp() time.Time {
	return jc.Stamp
}

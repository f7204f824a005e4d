// Package collision decides, for each point cloud paired with a joint state, whether any sensed
// point lies inside the robot's own padded body.
package collision

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"

	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/pointcloud"
	"go.viam.com/selfcollision/referenceframe"
	"go.viam.com/selfcollision/selfmask"
	"go.viam.com/selfcollision/spatialmath"
	"go.viam.com/selfcollision/transform"
)

// PosedGeometry is the robot body as a set of volumes posed from a joint configuration.
type PosedGeometry interface {
	// RebuildPose poses the body for cfg. It must not fail; problems are the model's to report.
	RebuildPose(cfg referenceframe.JointConfiguration)
	// Containment tests a world point against the most recent pose.
	Containment(pt r3.Vector) selfmask.Containment
}

// SensorOriginSetter is implemented by geometry models that treat points near the sensor specially.
type SensorOriginSetter interface {
	SetSensorOrigin(pt r3.Vector)
}

// Outcome is the result of one evaluation cycle.
type Outcome struct {
	// Collision is the decision. It is meaningless when Skipped is set.
	Collision bool
	// Skipped means no decision was made because the sample could not be placed in the world frame.
	Skipped bool
	Err     error
	// Scanned is the number of points examined, including non-finite ones.
	Scanned int
	// NonFinite is the number of points skipped for having a NaN or infinite coordinate.
	NonFinite int
}

// Evaluator turns a point cloud and joint configuration into a collision decision. Evaluations
// are serialized because they share the pose of the geometry model.
type Evaluator struct {
	resolver   transform.Resolver
	model      PosedGeometry
	worldFrame string
	logger     logging.Logger

	mu sync.Mutex
}

// NewEvaluator returns an Evaluator that places samples in worldFrame using resolver and tests
// them against model.
func NewEvaluator(resolver transform.Resolver, model PosedGeometry, worldFrame string, logger logging.Logger) *Evaluator {
	return &Evaluator{
		resolver:   resolver,
		model:      model,
		worldFrame: worldFrame,
		logger:     logger,
	}
}

// Evaluate runs one cycle. A transform failure skips the cycle; nothing else stops it. The scan
// stops at the first point inside the body. Points the model cannot decide are not collisions.
func (e *Evaluator) Evaluate(ctx context.Context, sample pointcloud.Sample, joints referenceframe.JointConfiguration) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	sensorToWorld, err := e.resolver.LookupTransform(ctx, e.worldFrame, sample.Frame, sample.Stamp)
	if err != nil {
		e.logger.CErrorw(ctx, "Transform error of sensor data, quitting callback",
			"error", err, "frame", sample.Frame, "world_frame", e.worldFrame, "stamp", sample.Stamp)
		return Outcome{Skipped: true, Err: err}
	}

	if setter, ok := e.model.(SensorOriginSetter); ok {
		setter.SetSensorOrigin(sensorToWorld.Point())
	}
	e.model.RebuildPose(joints)

	var out Outcome
	for _, pt := range sample.Points {
		out.Scanned++
		world := spatialmath.TransformPoint(sensorToWorld, pt)
		if !spatialmath.IsFinite(world) {
			out.NonFinite++
			continue
		}
		if e.model.Containment(world) == selfmask.Inside {
			out.Collision = true
			break
		}
	}
	return out
}

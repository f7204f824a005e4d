package collision

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/pointcloud"
	"go.viam.com/selfcollision/referenceframe"
	"go.viam.com/selfcollision/selfmask"
	"go.viam.com/selfcollision/spatialmath"
	"go.viam.com/selfcollision/transform"
)

// fakeBody answers containment from a function and records what it was asked.
type fakeBody struct {
	mu         sync.Mutex
	contains   func(pt r3.Vector) selfmask.Containment
	onRebuild  func()
	rebuilds   []referenceframe.JointConfiguration
	queried    []r3.Vector
	origin     *r3.Vector
	inRebuild  bool
	overlapped bool
}

func (f *fakeBody) RebuildPose(cfg referenceframe.JointConfiguration) {
	f.mu.Lock()
	if f.inRebuild {
		f.overlapped = true
	}
	f.inRebuild = true
	f.rebuilds = append(f.rebuilds, cfg)
	f.mu.Unlock()

	if f.onRebuild != nil {
		f.onRebuild()
	}

	f.mu.Lock()
	f.inRebuild = false
	f.mu.Unlock()
}

func (f *fakeBody) Containment(pt r3.Vector) selfmask.Containment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, pt)
	if f.contains == nil {
		return selfmask.Outside
	}
	return f.contains(pt)
}

func (f *fakeBody) SetSensorOrigin(pt r3.Vector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.origin = &pt
}

// insideUnitCube treats the open unit cube around the origin as the body.
func insideUnitCube(pt r3.Vector) selfmask.Containment {
	if math.Abs(pt.X) < 0.5 && math.Abs(pt.Y) < 0.5 && math.Abs(pt.Z) < 0.5 {
		return selfmask.Inside
	}
	return selfmask.Outside
}

// staticResolver places every frame at pose in the world.
func staticResolver(pose spatialmath.Pose) transform.Resolver {
	return transform.ResolverFunc(func(ctx context.Context, target, source string, stamp time.Time) (spatialmath.Pose, error) {
		return pose, nil
	})
}

func joints(sec int64) referenceframe.JointConfiguration {
	return referenceframe.JointConfiguration{Stamp: time.Unix(sec, 0), Positions: map[string]float64{}}
}

func TestEvaluateEmptySample(t *testing.T) {
	body := &fakeBody{contains: insideUnitCube}
	e := NewEvaluator(staticResolver(spatialmath.NewZeroPose()), body, "map", logging.NewTestLogger(t))

	out := e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(1, 0), nil), joints(1))
	test.That(t, out.Skipped, test.ShouldBeFalse)
	test.That(t, out.Collision, test.ShouldBeFalse)
	test.That(t, out.Scanned, test.ShouldEqual, 0)
	test.That(t, body.rebuilds, test.ShouldHaveLength, 1)
}

func TestEvaluateStopsAtFirstInside(t *testing.T) {
	body := &fakeBody{contains: insideUnitCube}
	e := NewEvaluator(staticResolver(spatialmath.NewZeroPose()), body, "map", logging.NewTestLogger(t))

	pts := []r3.Vector{{X: 5}, {X: 0.1}, {X: 7}, {Y: 0.2}}
	out := e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(1, 0), pts), joints(1))
	test.That(t, out.Collision, test.ShouldBeTrue)
	test.That(t, out.Scanned, test.ShouldEqual, 2)
	test.That(t, body.queried, test.ShouldHaveLength, 2)
}

func TestEvaluateTransformsIntoWorld(t *testing.T) {
	body := &fakeBody{contains: insideUnitCube}
	// the sensor sits 10m along X, so its own origin is far from the body
	e := NewEvaluator(staticResolver(spatialmath.NewPoseFromPoint(r3.Vector{X: 10})), body, "map",
		logging.NewTestLogger(t))

	out := e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(1, 0), []r3.Vector{{}}), joints(1))
	test.That(t, out.Collision, test.ShouldBeFalse)
	test.That(t, body.origin, test.ShouldNotBeNil)
	test.That(t, body.origin.X, test.ShouldAlmostEqual, 10)

	out = e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(2, 0), []r3.Vector{{X: -10}}), joints(2))
	test.That(t, out.Collision, test.ShouldBeTrue)
}

func TestEvaluateIgnoresNonFinitePoints(t *testing.T) {
	body := &fakeBody{contains: func(pt r3.Vector) selfmask.Containment {
		// a body that swallows everything it is asked about
		return selfmask.Inside
	}}
	e := NewEvaluator(staticResolver(spatialmath.NewZeroPose()), body, "map", logging.NewTestLogger(t))

	nan := math.NaN()
	inf := math.Inf(1)
	pts := []r3.Vector{{X: nan}, {Y: inf}, {Z: math.Inf(-1)}, {X: nan, Y: nan, Z: nan}}
	out := e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(1, 0), pts), joints(1))
	test.That(t, out.Collision, test.ShouldBeFalse)
	test.That(t, out.NonFinite, test.ShouldEqual, 4)
	test.That(t, out.Scanned, test.ShouldEqual, 4)
	test.That(t, body.queried, test.ShouldBeEmpty)

	out = e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(2, 0), append(pts, r3.Vector{})), joints(2))
	test.That(t, out.Collision, test.ShouldBeTrue)
	test.That(t, out.NonFinite, test.ShouldEqual, 4)
}

func TestEvaluateUnknownIsNotCollision(t *testing.T) {
	body := &fakeBody{contains: func(pt r3.Vector) selfmask.Containment { return selfmask.Unknown }}
	e := NewEvaluator(staticResolver(spatialmath.NewZeroPose()), body, "map", logging.NewTestLogger(t))

	out := e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(1, 0),
		[]r3.Vector{{}, {X: 0.01}, {X: 3}}), joints(1))
	test.That(t, out.Collision, test.ShouldBeFalse)
	test.That(t, out.Scanned, test.ShouldEqual, 3)
}

func TestEvaluateTransformFailure(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	failing := true
	resolver := transform.ResolverFunc(func(ctx context.Context, target, source string, stamp time.Time) (spatialmath.Pose, error) {
		if failing {
			return nil, transform.NewFrameNotFoundError(source)
		}
		return spatialmath.NewZeroPose(), nil
	})
	body := &fakeBody{contains: insideUnitCube}
	e := NewEvaluator(resolver, body, "map", logger)

	sample := pointcloud.NewSample("cam", time.Unix(1, 0), []r3.Vector{{}})
	out := e.Evaluate(context.Background(), sample, joints(1))
	test.That(t, out.Skipped, test.ShouldBeTrue)
	test.That(t, out.Err, test.ShouldNotBeNil)
	var notFound *transform.FrameNotFoundError
	test.That(t, errors.As(out.Err, &notFound), test.ShouldBeTrue)
	test.That(t, body.rebuilds, test.ShouldBeEmpty)
	test.That(t, logs.FilterMessage("Transform error of sensor data, quitting callback").Len(), test.ShouldEqual, 1)

	// a later cycle is unaffected
	failing = false
	out = e.Evaluate(context.Background(), sample, joints(2))
	test.That(t, out.Skipped, test.ShouldBeFalse)
	test.That(t, out.Collision, test.ShouldBeTrue)
}

func TestEvaluateAgainstMask(t *testing.T) {
	model, err := referenceframe.ParseURDF([]byte(boxURDF), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	mask := selfmask.New(model, []selfmask.LinkInfo{{Name: "BODY", Padding: 0.1, Scale: 1}},
		selfmask.Options{MinSensorDist: 0.01}, logging.NewTestLogger(t))
	// camera 2m above the body origin, looking down its own -Z
	e := NewEvaluator(staticResolver(spatialmath.NewPoseFromPoint(r3.Vector{Z: 2})), mask, "map",
		logging.NewTestLogger(t))

	out := e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(1, 0),
		[]r3.Vector{{Z: -1.45}}), joints(1))
	test.That(t, out.Collision, test.ShouldBeTrue)

	out = e.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(2, 0),
		[]r3.Vector{{Z: -1.35}, {X: 1}}), joints(2))
	test.That(t, out.Collision, test.ShouldBeFalse)

	// with the sensor inside the body, a return right at the sensor is not trusted
	inside := NewEvaluator(staticResolver(spatialmath.NewPoseFromPoint(r3.Vector{Z: 0.3})), mask, "map",
		logging.NewTestLogger(t))
	out = inside.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(3, 0),
		[]r3.Vector{{Z: 0.001}}), joints(3))
	test.That(t, out.Collision, test.ShouldBeFalse)
	out = inside.Evaluate(context.Background(), pointcloud.NewSample("cam", time.Unix(4, 0),
		[]r3.Vector{{Z: -0.1}}), joints(4))
	test.That(t, out.Collision, test.ShouldBeTrue)
}

// A 1m cube, padded by 10cm in the test above, so its top face sits at 0.6m.
const boxURDF = `<robot name="box">
  <link name="BODY"><collision><geometry><box size="1 1 1"/></geometry></collision></link>
</robot>`

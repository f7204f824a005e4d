package ros

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/selfcollision/collision"
	"go.viam.com/selfcollision/config"
	"go.viam.com/selfcollision/logging"
)

// A 1m cube body padded by 10cm.
const cubeURDF = `<robot name="cube">
  <link name="BODY"><collision><geometry><box size="1 1 1"/></geometry></collision></link>
</robot>`

func newTestPipeline(t *testing.T, ch chan bool) (*collision.Pipeline, *config.Config) {
	t.Helper()
	logger := logging.NewTestLogger(t)
	cfg, err := config.FromMap(map[string]any{
		"robot_description": cubeURDF,
		"self_see_links":    []any{map[string]any{"name": "BODY", "padding": 0.1}},
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	p, err := collision.NewFromConfig(cfg, collision.NewChannelPublisher(ch), nil, logger)
	test.That(t, err, test.ShouldBeNil)
	return p, cfg
}

func record(t *testing.T, topic string, stamp time.Time, body any) Message {
	t.Helper()
	data, err := json.Marshal(body)
	test.That(t, err, test.ShouldBeNil)
	m := Message{Topic: topic, Data: data}
	m.Meta.Secs, m.Meta.Nsecs = stamp.Unix(), int64(stamp.Nanosecond())
	return m
}

func rosTime(stamp time.Time) Time {
	return Time{Secs: stamp.Unix(), Nsecs: int64(stamp.Nanosecond())}
}

func tfMessage(parent, child string, stamp time.Time, translation Vector3) TFMessage {
	return TFMessage{Transforms: []TransformStamped{{
		Header:       Header{Stamp: rosTime(stamp), FrameID: parent},
		ChildFrameID: child,
		Transform:    Transform{Translation: translation, Rotation: Quaternion{W: 1}},
	}}}
}

func jointState(stamp time.Time) JointStateWithPose {
	return JointStateWithPose{
		Header: Header{Stamp: rosTime(stamp)},
		Pose:   Pose{Orientation: Quaternion{W: 1}},
	}
}

func TestReplay(t *testing.T) {
	ch := make(chan bool, 8)
	p, cfg := newTestPipeline(t, ch)
	r := NewReplayer(p, cfg.Topics, logging.NewTestLogger(t))
	test.That(t, r.Topics(), test.ShouldResemble, []string{"/tf_static", "/tf", "/input_joint", "/input"})

	t1, t2, t3 := time.Unix(10, 0), time.Unix(11, 0), time.Unix(12, 0)
	msgs := []Message{
		// camera 2m above the robot base, which sits at the map origin
		record(t, "/tf_static", t1, tfMessage("/base", "/camera", t1, Vector3{Z: 2})),
		record(t, "/tf", t1, tfMessage("map", "base", t1, Vector3{})),
		record(t, "/tf", t3, tfMessage("map", "base", t3, Vector3{})),
		// 5cm above the top face, inside the padding
		record(t, "/input", t1, NewPointCloud2("camera", t1, []r3.Vector{{Z: -1.45}})),
		record(t, "/input_joint", t1, jointState(t1)),
		record(t, "/input", t2, NewPointCloud2("camera", t2, []r3.Vector{{Z: -1}, {X: 3}})),
		record(t, "/input_joint", t2, jointState(t2)),
		{Topic: "/input", Data: json.RawMessage(`{"fields": "nope"}`)},
		record(t, "/other", t2, map[string]any{}),
	}

	res, err := r.Replay(context.Background(), msgs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.StaticTransforms, test.ShouldEqual, 1)
	test.That(t, res.Transforms, test.ShouldEqual, 2)
	test.That(t, res.Clouds, test.ShouldEqual, 2)
	test.That(t, res.JointStates, test.ShouldEqual, 2)
	test.That(t, res.DecodeErrors, test.ShouldEqual, 1)
	test.That(t, res.Outcomes, test.ShouldHaveLength, 2)
	test.That(t, res.Latencies, test.ShouldHaveLength, 2)
	test.That(t, res.Collisions(), test.ShouldEqual, 1)
	test.That(t, <-ch, test.ShouldBeTrue)
	test.That(t, <-ch, test.ShouldBeFalse)
}

func TestReplayMissingTransformSkipsCycle(t *testing.T) {
	ch := make(chan bool, 8)
	p, cfg := newTestPipeline(t, ch)
	r := NewReplayer(p, cfg.Topics, logging.NewTestLogger(t))

	t1 := time.Unix(10, 0)
	res, err := r.Replay(context.Background(), []Message{
		record(t, "/input", t1, NewPointCloud2("camera", t1, []r3.Vector{{}})),
		record(t, "/input_joint", t1, jointState(t1)),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Outcomes, test.ShouldHaveLength, 1)
	test.That(t, res.Outcomes[0].Skipped, test.ShouldBeTrue)
	test.That(t, res.Latencies, test.ShouldBeEmpty)
	test.That(t, ch, test.ShouldBeEmpty)
}

func TestReplaySkipsCorruptCloud(t *testing.T) {
	p, cfg := newTestPipeline(t, make(chan bool, 8))
	r := NewReplayer(p, cfg.Topics, logging.NewTestLogger(t))

	t1 := time.Unix(10, 0)
	wrapped := NewPointCloud2("camera", t1, []r3.Vector{{}})
	wrapped.Fields[2].Offset = 1<<32 - 2
	empty := NewPointCloud2("camera", t1, nil)
	empty.Width, empty.PointStep, empty.RowStep = 1<<30, 16, 0

	res, err := r.Replay(context.Background(), []Message{
		record(t, "/input", t1, wrapped),
		record(t, "/input", t1, empty),
		record(t, "/input_joint", t1, jointState(t1)),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.DecodeErrors, test.ShouldEqual, 2)
	test.That(t, res.Clouds, test.ShouldEqual, 0)
	test.That(t, res.JointStates, test.ShouldEqual, 1)
	test.That(t, res.Outcomes, test.ShouldBeEmpty)
}

func TestReplayCancelled(t *testing.T) {
	p, cfg := newTestPipeline(t, make(chan bool, 1))
	r := NewReplayer(p, cfg.Topics, logging.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	t1 := time.Unix(10, 0)
	_, err := r.Replay(ctx, []Message{record(t, "/input_joint", t1, jointState(t1))})
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

package ros

import (
	"context"
	"encoding/json"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"

	"go.viam.com/selfcollision/collision"
	"go.viam.com/selfcollision/config"
	"go.viam.com/selfcollision/logging"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Clouds           int
	JointStates      int
	Transforms       int
	StaticTransforms int
	DecodeErrors     int
	// Outcomes holds one entry per paired cycle, in the order they ran.
	Outcomes  []collision.Outcome
	Latencies []time.Duration
}

// Collisions counts the cycles that decided collision.
func (r *ReplayResult) Collisions() int {
	n := 0
	for _, out := range r.Outcomes {
		if !out.Skipped && out.Collision {
			n++
		}
	}
	return n
}

// Replayer feeds recorded messages through a collision pipeline in record order.
type Replayer struct {
	pipeline *collision.Pipeline
	topics   config.TopicsConfig
	logger   logging.Logger
}

// NewReplayer returns a Replayer reading the given topics.
func NewReplayer(p *collision.Pipeline, topics config.TopicsConfig, logger logging.Logger) *Replayer {
	return &Replayer{pipeline: p, topics: topics, logger: logger}
}

// Topics lists the topics a replay reads. Transforms come first so that at equal record times
// they are applied before the data that needs them.
func (r *Replayer) Topics() []string {
	return []string{r.topics.TFStatic, r.topics.TF, r.topics.InputJoint, r.topics.Input}
}

// ReplayBag replays every relevant message of rb.
func (r *Replayer) ReplayBag(ctx context.Context, rb *rosbag.RosBag) (*ReplayResult, error) {
	msgs, err := MessagesForTopics(rb, r.Topics()...)
	if err != nil {
		return nil, err
	}
	r.logger.Infow("replaying bag", "messages", len(msgs), "topics", r.Topics())
	return r.Replay(ctx, msgs)
}

// Replay feeds msgs to the pipeline in the order given. Messages that do not decode are logged
// and counted; they do not stop the replay. It returns early with ctx.Err() if ctx is done.
func (r *Replayer) Replay(ctx context.Context, msgs []Message) (*ReplayResult, error) {
	res := &ReplayResult{}
	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.handle(ctx, msg, res); err != nil {
			res.DecodeErrors++
			r.logger.Warnw("skipping message", "topic", msg.Topic, "stamp", msg.Stamp(), "error", err)
		}
	}
	return res, nil
}

func (r *Replayer) handle(ctx context.Context, msg Message, res *ReplayResult) error {
	switch TopicKey(msg.Topic) {
	case TopicKey(r.topics.TFStatic):
		return r.handleTF(msg, true, res)
	case TopicKey(r.topics.TF):
		return r.handleTF(msg, false, res)
	case TopicKey(r.topics.InputJoint):
		var js JointStateWithPose
		if err := json.Unmarshal(msg.Data, &js); err != nil {
			return errors.Wrap(err, "cannot decode joint state")
		}
		jc, err := js.JointConfiguration()
		if err != nil {
			return err
		}
		res.JointStates++
		if out, ok := r.pipeline.Detector.HandleJointState(ctx, jc); ok {
			r.record(out, res)
		}
	case TopicKey(r.topics.Input):
		var pc PointCloud2
		if err := json.Unmarshal(msg.Data, &pc); err != nil {
			return errors.Wrap(err, "cannot decode point cloud")
		}
		sample, err := pc.Sample()
		if err != nil {
			return err
		}
		res.Clouds++
		if out, ok := r.pipeline.Detector.HandlePointCloud(ctx, sample); ok {
			r.record(out, res)
		}
	default:
		r.logger.Debugw("ignoring message on unknown topic", "topic", msg.Topic)
	}
	return nil
}

func (r *Replayer) handleTF(msg Message, static bool, res *ReplayResult) error {
	var tf TFMessage
	if err := json.Unmarshal(msg.Data, &tf); err != nil {
		return errors.Wrap(err, "cannot decode transforms")
	}
	if err := r.pipeline.Buffer.SetTransforms(tf.Stamped(), static); err != nil {
		return err
	}
	if static {
		res.StaticTransforms += len(tf.Transforms)
	} else {
		res.Transforms += len(tf.Transforms)
	}
	return nil
}

func (r *Replayer) record(out collision.Outcome, res *ReplayResult) {
	res.Outcomes = append(res.Outcomes, out)
	if !out.Skipped {
		res.Latencies = append(res.Latencies, r.pipeline.Detector.Stats().LastLatency)
	}
}

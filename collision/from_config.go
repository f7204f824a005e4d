package collision

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/selfcollision/config"
	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/referenceframe"
	"go.viam.com/selfcollision/selfmask"
	"go.viam.com/selfcollision/streamsync"
	"go.viam.com/selfcollision/transform"
)

// Pipeline is a detector together with the pieces it was built from, so callers can feed
// transforms into Buffer and inspect Mask.
type Pipeline struct {
	Detector *Detector
	Buffer   *transform.Buffer
	Mask     *selfmask.Mask
	Model    *referenceframe.Model
}

// NewFromConfig wires a Pipeline from cfg. A missing or unparsable robot description is logged
// and yields a body with no links, so every point is outside it. clk may be nil.
func NewFromConfig(cfg *config.Config, publisher Publisher, clk clock.Clock, logger logging.Logger) (*Pipeline, error) {
	if err := cfg.Validate("collision_detector"); err != nil {
		return nil, err
	}

	model := loadModel(cfg, logger)
	links := selfmask.ParseLinkInfos(cfg.SelfSeeLinks, cfg.SelfSeeDefaultPadding, cfg.SelfSeeDefaultScale, logger)
	mask := selfmask.New(model, links, selfmask.Options{
		RootLink:      cfg.RootLinkID,
		MinSensorDist: cfg.MinSensorDist,
	}, logger.Sublogger("selfmask"))

	buffer := transform.NewBuffer(transform.BufferOptions{
		CacheDuration: cfg.Transform.CacheDuration,
		Tolerance:     cfg.Transform.Tolerance,
	}, logger.Sublogger("tf"))
	for _, st := range cfg.StaticTransforms {
		if err := buffer.SetTransform(transform.Stamped{Parent: st.Parent, Child: st.Child, Pose: st.Pose()}, true); err != nil {
			return nil, errors.Wrapf(err, "bad static transform %s -> %s", st.Parent, st.Child)
		}
	}

	evaluator := NewEvaluator(buffer, mask, cfg.WorldFrameID, logger)
	detector, err := NewDetector(evaluator, publisher, Options{
		Sync: streamsync.Options{
			QueueSize: cfg.Sync.QueueSize,
			Tolerance: cfg.Sync.Tolerance,
		},
		Clock: clk,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Detector: detector, Buffer: buffer, Mask: mask, Model: model}, nil
}

func loadModel(cfg *config.Config, logger logging.Logger) *referenceframe.Model {
	data, err := cfg.RobotDescriptionXML()
	if err != nil {
		logger.Errorw("cannot load robot description", "error", err)
		return referenceframe.NewEmptyModel("")
	}
	if data == nil {
		logger.Errorw("robot_description is not set, the robot body is empty")
		return referenceframe.NewEmptyModel("")
	}
	model, err := referenceframe.ParseURDF(data, logger.Sublogger("urdf"))
	if err != nil {
		logger.Errorw("cannot parse robot description", "error", err)
		return referenceframe.NewEmptyModel("")
	}
	return model
}

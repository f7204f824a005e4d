// Package config defines the startup parameters of the collision detector.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/spatialmath"
)

// Default values for keys a config omits.
const (
	DefaultWorldFrameID   = "map"
	DefaultRootLinkID     = "BODY"
	DefaultMinSensorDist  = 0.01
	DefaultPadding        = 0.01
	DefaultScale          = 1.0
	DefaultQueueSize      = 100
	DefaultSyncTolerance  = 50 * time.Millisecond
	DefaultCacheDuration  = 10 * time.Second
	DefaultInputTopic     = "/input"
	DefaultJointTopic     = "/input_joint"
	DefaultTFTopic        = "/tf"
	DefaultTFStaticTopic  = "/tf_static"
	DefaultLogLevel       = "info"
	robotDescriptionField = "robot_description"
)

// Config is the full set of startup parameters. It is read once and not changed afterwards.
type Config struct {
	WorldFrameID  string  `json:"world_frame_id"`
	RootLinkID    string  `json:"root_link_id"`
	MinSensorDist float64 `json:"min_sensor_dist"`

	SelfSeeDefaultPadding float64 `json:"self_see_default_padding"`
	SelfSeeDefaultScale   float64 `json:"self_see_default_scale"`
	// SelfSeeLinks is kept loosely typed; selfmask.ParseLinkInfos interprets it.
	SelfSeeLinks any `json:"self_see_links"`

	RobotDescription     string `json:"robot_description"`
	RobotDescriptionFile string `json:"robot_description_file"`

	Sync             SyncConfig        `json:"sync"`
	Transform        TransformConfig   `json:"transform"`
	StaticTransforms []StaticTransform `json:"static_transforms"`
	Topics           TopicsConfig      `json:"topics"`
	Log              LogConfig         `json:"log"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-"`
}

// SyncConfig tunes the pairing of point clouds with joint states.
type SyncConfig struct {
	QueueSize int           `json:"queue_size"`
	Tolerance time.Duration `json:"tolerance"`
}

// TransformConfig tunes the transform buffer.
type TransformConfig struct {
	CacheDuration time.Duration `json:"cache_duration"`
	Tolerance     time.Duration `json:"tolerance"`
}

// StaticTransform places Child in Parent for all time.
type StaticTransform struct {
	Parent      string                  `json:"parent"`
	Child       string                  `json:"child"`
	Translation r3.Vector               `json:"translation"`
	Orientation spatialmath.EulerAngles `json:"orientation"`
}

// Pose returns the transform as a pose.
func (st StaticTransform) Pose() spatialmath.Pose {
	o := st.Orientation
	return spatialmath.NewPose(st.Translation, &o)
}

// TopicsConfig names the bag topics replayed into the detector.
type TopicsConfig struct {
	Input      string `json:"input"`
	InputJoint string `json:"input_joint"`
	TF         string `json:"tf"`
	TFStatic   string `json:"tf_static"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	return &Config{
		WorldFrameID:          DefaultWorldFrameID,
		RootLinkID:            DefaultRootLinkID,
		MinSensorDist:         DefaultMinSensorDist,
		SelfSeeDefaultPadding: DefaultPadding,
		SelfSeeDefaultScale:   DefaultScale,
		Sync: SyncConfig{
			QueueSize: DefaultQueueSize,
			Tolerance: DefaultSyncTolerance,
		},
		Transform: TransformConfig{
			CacheDuration: DefaultCacheDuration,
		},
		Topics: TopicsConfig{
			Input:      DefaultInputTopic,
			InputJoint: DefaultJointTopic,
			TF:         DefaultTFTopic,
			TFStatic:   DefaultTFStaticTopic,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.WorldFrameID == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "world_frame_id")
	}
	if c.RootLinkID == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "root_link_id")
	}
	if c.MinSensorDist < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("min_sensor_dist must not be negative, got %g", c.MinSensorDist))
	}
	if c.SelfSeeDefaultScale <= 0 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("self_see_default_scale must be positive, got %g", c.SelfSeeDefaultScale))
	}
	if err := c.Sync.Validate(path + ".sync"); err != nil {
		return err
	}
	if c.Transform.CacheDuration < 0 || c.Transform.Tolerance < 0 {
		return utils.NewConfigValidationError(path+".transform", errors.New("durations must not be negative"))
	}
	for i, st := range c.StaticTransforms {
		if st.Parent == "" {
			return utils.NewConfigValidationFieldRequiredError(staticPath(path, i), "parent")
		}
		if st.Child == "" {
			return utils.NewConfigValidationFieldRequiredError(staticPath(path, i), "child")
		}
	}
	if _, err := logging.LevelFromString(c.Log.Level); err != nil {
		return utils.NewConfigValidationError(path+".log", err)
	}
	return nil
}

func staticPath(path string, index int) string {
	return path + ".static_transforms." + strconv.Itoa(index)
}

// Validate ensures the sync parameters are usable.
func (sc *SyncConfig) Validate(path string) error {
	if sc.Tolerance <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("tolerance must be positive, got %s", sc.Tolerance))
	}
	if sc.QueueSize <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("queue_size must be positive, got %d", sc.QueueSize))
	}
	return nil
}

// RobotDescriptionXML returns the URDF document, inline or from robot_description_file. A relative
// file path is resolved against the directory of the config file. It returns nil without error
// when neither is set.
func (c *Config) RobotDescriptionXML() ([]byte, error) {
	if c.RobotDescription != "" {
		return []byte(c.RobotDescription), nil
	}
	if c.RobotDescriptionFile == "" {
		return nil, nil
	}
	fn := c.RobotDescriptionFile
	if !filepath.IsAbs(fn) && c.ConfigFilePath != "" {
		fn = filepath.Join(filepath.Dir(c.ConfigFilePath), fn)
	}
	//nolint:gosec
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s file", robotDescriptionField)
	}
	return data, nil
}

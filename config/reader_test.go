package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/selfcollision/logging"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromReader("", FormatJSON, strings.NewReader("{}"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg, test.ShouldResemble, Default())
	test.That(t, cfg.WorldFrameID, test.ShouldEqual, "map")
	test.That(t, cfg.RootLinkID, test.ShouldEqual, "BODY")
	test.That(t, cfg.MinSensorDist, test.ShouldEqual, 0.01)
	test.That(t, cfg.Sync.QueueSize, test.ShouldEqual, 100)
	test.That(t, cfg.Sync.Tolerance, test.ShouldEqual, 50*time.Millisecond)

	cfg, err = FromReader("", FormatYAML, strings.NewReader(""), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Topics.Input, test.ShouldEqual, "/input")
}

func TestReadYAML(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "robot.urdf"), []byte(`<robot name="r"/>`), 0o600), test.ShouldBeNil)
	t.Setenv("SELFCOLLISION_WORLD", "odom")

	doc := `
world_frame_id: ${SELFCOLLISION_WORLD}
root_link_id: WAIST
min_sensor_dist: 0
self_see_default_padding: 0.02
self_see_links:
  - name: WAIST
  - name: CHEST
    padding: 0.05
robot_description_file: robot.urdf
sync:
  queue_size: 10
  tolerance: 0.03
transform:
  cache_duration: 5s
  tolerance: 20ms
static_transforms:
  - parent: odom
    child: camera
    translation: {x: 0.1, y: 0, z: 1.2}
    orientation: {roll: 0, pitch: 0.5, yaw: 0}
log:
  level: debug
mystery: true
`
	fn := filepath.Join(dir, "detector.yaml")
	test.That(t, os.WriteFile(fn, []byte(doc), 0o600), test.ShouldBeNil)

	logger, logs := logging.NewObservedTestLogger(t)
	cfg, err := Read(fn, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, fn)
	test.That(t, cfg.WorldFrameID, test.ShouldEqual, "odom")
	test.That(t, cfg.RootLinkID, test.ShouldEqual, "WAIST")
	test.That(t, cfg.MinSensorDist, test.ShouldEqual, 0.)
	test.That(t, cfg.SelfSeeDefaultPadding, test.ShouldEqual, 0.02)
	test.That(t, cfg.SelfSeeDefaultScale, test.ShouldEqual, 1.)
	test.That(t, cfg.SelfSeeLinks, test.ShouldHaveLength, 2)
	test.That(t, cfg.Sync, test.ShouldResemble, SyncConfig{QueueSize: 10, Tolerance: 30 * time.Millisecond})
	test.That(t, cfg.Transform, test.ShouldResemble, TransformConfig{CacheDuration: 5 * time.Second, Tolerance: 20 * time.Millisecond})
	test.That(t, cfg.StaticTransforms, test.ShouldHaveLength, 1)
	test.That(t, cfg.StaticTransforms[0].Translation, test.ShouldResemble, r3.Vector{X: 0.1, Z: 1.2})
	test.That(t, cfg.StaticTransforms[0].Pose().Orientation().EulerAngles().Pitch, test.ShouldAlmostEqual, 0.5)
	test.That(t, cfg.Log.Level, test.ShouldEqual, "debug")
	test.That(t, logs.FilterMessage("ignoring unknown config keys").Len(), test.ShouldEqual, 1)

	urdf, err := cfg.RobotDescriptionXML()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(urdf), test.ShouldEqual, `<robot name="r"/>`)
}

func TestReadJSON(t *testing.T) {
	doc := `{
		"robot_description": "<robot name=\"inline\"/>",
		"robot_description_file": "ignored.urdf",
		"sync": {"tolerance": "10ms"},
		"self_see_links": [{"name": "BODY", "scale": 1.1}]
	}`
	fn := filepath.Join(t.TempDir(), "detector.json")
	test.That(t, os.WriteFile(fn, []byte(doc), 0o600), test.ShouldBeNil)

	cfg, err := Read(fn, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Sync.Tolerance, test.ShouldEqual, 10*time.Millisecond)
	test.That(t, cfg.Sync.QueueSize, test.ShouldEqual, DefaultQueueSize)

	urdf, err := cfg.RobotDescriptionXML()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(urdf), test.ShouldEqual, `<robot name="inline"/>`)

	none, err := Default().RobotDescriptionXML()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, none, test.ShouldBeNil)

	missing := Default()
	missing.RobotDescriptionFile = filepath.Join(t.TempDir(), "nope.urdf")
	_, err = missing.RobotDescriptionXML()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero tolerance", func(c *Config) { c.Sync.Tolerance = 0 }, "tolerance must be positive"},
		{"zero queue", func(c *Config) { c.Sync.QueueSize = 0 }, "queue_size must be positive"},
		{"no world frame", func(c *Config) { c.WorldFrameID = "" }, "world_frame_id"},
		{"no root link", func(c *Config) { c.RootLinkID = "" }, "root_link_id"},
		{"negative min dist", func(c *Config) { c.MinSensorDist = -1 }, "min_sensor_dist"},
		{"zero scale", func(c *Config) { c.SelfSeeDefaultScale = 0 }, "self_see_default_scale"},
		{"negative cache", func(c *Config) { c.Transform.CacheDuration = -time.Second }, "durations"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "loud"},
		{
			"static transform without child",
			func(c *Config) { c.StaticTransforms = []StaticTransform{{Parent: "map"}} },
			"child",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate("config")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errMsg)
		})
	}
	test.That(t, Default().Validate("config"), test.ShouldBeNil)

	_, err := FromReader("", FormatJSON, strings.NewReader(`{"sync": {"tolerance": "soon"}}`), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = FromReader("", FormatJSON, strings.NewReader(`{`), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = FromReader("", Format("toml"), strings.NewReader(``), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

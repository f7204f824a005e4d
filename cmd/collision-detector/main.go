// Package main runs the self-collision detector from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/invopop/jsonschema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/selfcollision/collision"
	"go.viam.com/selfcollision/config"
	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/pointcloud"
	"go.viam.com/selfcollision/ros"
	"go.viam.com/selfcollision/utils"
)

const (
	flagConfig  = "config"
	flagOutput  = "output"
	flagCloud   = "cloud"
	flagJoints  = "joints"
	flagFrame   = "frame"
	flagDebug   = "debug"
	flagLogFile = "log-file"

	logFileMaxSizeMB = 50
	histogramBins    = 10
	histogramWidth   = 40
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// runner carries the logger set up by the global flags to each command.
type runner struct {
	logger  logging.Logger
	logFile *logging.FileAppender
}

func newApp() *cli.App {
	r := &runner{}
	configFlag := &cli.PathFlag{
		Name:     flagConfig,
		Aliases:  []string{"c"},
		Usage:    "load configuration from `FILE` (json or yaml)",
		Required: true,
	}
	return &cli.App{
		Name:  "collision-detector",
		Usage: "decide whether sensed points lie inside the robot's own body",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.PathFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
		},
		Before: r.before,
		After:  r.after,
		Commands: []*cli.Command{
			{
				Name:      "replay",
				Usage:     "replay a rosbag through the detector",
				ArgsUsage: "BAG",
				Flags: []cli.Flag{
					configFlag,
					&cli.PathFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Usage:   "write one JSON line per decision to `FILE`",
					},
				},
				Action: r.replay,
			},
			{
				Name:  "check",
				Usage: "evaluate a single point cloud against a single joint state",
				Flags: []cli.Flag{
					configFlag,
					&cli.PathFlag{
						Name:     flagCloud,
						Usage:    "point cloud `FILE` (.pcd or .las)",
						Required: true,
					},
					&cli.PathFlag{
						Name:     flagJoints,
						Usage:    "joint state `JSON` file in JointStateWithPose form",
						Required: true,
					},
					&cli.StringFlag{
						Name:  flagFrame,
						Usage: "frame the cloud is expressed in; defaults to the world frame",
					},
				},
				Action: r.check,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of the configuration file",
				Action: printSchema,
			},
			{
				Name:   "describe",
				Usage:  "print the padded robot links used for self filtering",
				Flags:  []cli.Flag{configFlag},
				Action: r.describe,
			},
		},
	}
}

func (r *runner) before(c *cli.Context) error {
	r.logger = logging.NewLogger("collision-detector")
	if c.Bool(flagDebug) {
		r.logger.SetLevel(logging.DEBUG)
	}
	if fn := c.Path(flagLogFile); fn != "" {
		r.addLogFile(fn)
	}
	return nil
}

func (r *runner) addLogFile(fn string) {
	if r.logFile != nil {
		return
	}
	r.logFile = logging.NewFileAppender(fn, logFileMaxSizeMB)
	r.logger.AddAppender(r.logFile)
}

func (r *runner) after(c *cli.Context) error {
	if r.logger == nil {
		return nil
	}
	// stdout cannot always be synced, so only the file matters here
	goutils.UncheckedError(r.logger.Sync())
	if r.logFile != nil {
		return r.logFile.Close()
	}
	return nil
}

// loadConfig reads the config and applies its log settings unless flags override them.
func (r *runner) loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Read(c.Path(flagConfig), r.logger)
	if err != nil {
		return nil, err
	}
	if !c.Bool(flagDebug) {
		level, err := logging.LevelFromString(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		r.logger.SetLevel(level)
	}
	if cfg.Log.File != "" {
		r.addLogFile(cfg.Log.File)
	}
	return cfg, nil
}

func (r *runner) replay(c *cli.Context) (err error) {
	if c.NArg() != 1 {
		return errors.New("need to specify a rosbag file path")
	}
	cfg, err := r.loadConfig(c)
	if err != nil {
		return err
	}

	var out io.Writer = io.Discard
	if fn := c.Path(flagOutput); fn != "" {
		//nolint:gosec
		f, createErr := os.Create(fn)
		if createErr != nil {
			return errors.Wrap(createErr, "cannot create output file")
		}
		defer func() {
			err = multierr.Combine(err, f.Close())
		}()
		out = f
	}

	pipeline, err := collision.NewFromConfig(cfg, collision.NewJSONLinesPublisher(out), nil, r.logger)
	if err != nil {
		return err
	}
	bagFile := c.Args().First()
	rb, err := ros.ReadBag(bagFile)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(bagFile); statErr == nil {
		r.logger.Infow("read bag", "file", bagFile, "size", units.HumanSize(float64(info.Size())))
	}

	start := time.Now()
	res, err := ros.NewReplayer(pipeline, cfg.Topics, r.logger).ReplayBag(c.Context, rb)
	if err != nil {
		return err
	}
	r.logger.Infow("replay finished", "elapsed", time.Since(start))
	if _, err := fmt.Fprintln(c.App.Writer, replaySummary(res, pipeline.Detector.Stats())); err != nil {
		return err
	}
	return printLatencyHistogram(c.App.Writer, res.Latencies)
}

// printLatencyHistogram draws the distribution of cycle latencies in milliseconds.
func printLatencyHistogram(w io.Writer, latencies []time.Duration) error {
	if len(latencies) == 0 {
		return nil
	}
	hist := histogram.Hist(histogramBins, toMillis(latencies))
	if _, err := fmt.Fprintln(w, "cycle latency (ms)"); err != nil {
		return err
	}
	return histogram.Fprint(w, hist, histogram.Linear(histogramWidth))
}

func toMillis(latencies []time.Duration) []float64 {
	return lo.Map(latencies, func(d time.Duration, _ int) float64 {
		return float64(d) / float64(time.Millisecond)
	})
}

func replaySummary(res *ros.ReplayResult, st collision.Stats) string {
	t := table.NewWriter()
	t.SetTitle("replay")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"point clouds", res.Clouds},
		{"joint states", res.JointStates},
		{"transforms", res.Transforms},
		{"static transforms", res.StaticTransforms},
		{"undecodable messages", res.DecodeErrors},
		{"pairs", st.Pairs},
		{"decisions", st.Decisions},
		{"collisions", st.Collisions},
		{"skipped (no transform)", st.Skipped},
		{"mean latency, last 100 (ms)", fmt.Sprintf("%.3f", float64(st.MeanLatency)/float64(time.Millisecond))},
		{"publish errors", st.PublishErrors},
		{"evicted clouds / joint states", fmt.Sprintf("%d / %d", st.Sync.EvictedFirst, st.Sync.EvictedSecond)},
		{"stale clouds / joint states", fmt.Sprintf("%d / %d", st.Sync.StaleFirst, st.Sync.StaleSecond)},
	})
	t.AppendSeparator()
	for _, row := range latencyRows(res.Latencies) {
		t.AppendRow(row)
	}
	return t.Render()
}

// latencyRows summarizes cycle latencies in milliseconds.
func latencyRows(latencies []time.Duration) []table.Row {
	if len(latencies) == 0 {
		return []table.Row{{"latency", "n/a"}}
	}
	ms := stats.Float64Data(toMillis(latencies))
	mean, _ := ms.Mean()
	median, _ := ms.Median()
	p95, _ := ms.Percentile(95)
	maxMS, _ := ms.Max()
	return []table.Row{
		{"latency mean (ms)", fmt.Sprintf("%.3f", mean)},
		{"latency median (ms)", fmt.Sprintf("%.3f", median)},
		{"latency p95 (ms)", fmt.Sprintf("%.3f", p95)},
		{"latency max (ms)", fmt.Sprintf("%.3f", maxMS)},
	}
}

func (r *runner) check(c *cli.Context) error {
	cfg, err := r.loadConfig(c)
	if err != nil {
		return err
	}
	points, err := pointcloud.ReadPoints(c.Path(flagCloud), r.logger)
	if err != nil {
		return err
	}
	r.logger.Debugw("read point cloud", "file", c.Path(flagCloud), "points", len(points))

	//nolint:gosec
	data, err := os.ReadFile(c.Path(flagJoints))
	if err != nil {
		return errors.Wrap(err, "cannot read joint state file")
	}
	var js ros.JointStateWithPose
	if err := json.Unmarshal(data, &js); err != nil {
		return errors.Wrap(err, "cannot decode joint state file")
	}
	jc, err := js.JointConfiguration()
	if err != nil {
		return err
	}

	frame := c.String(flagFrame)
	if frame == "" {
		frame = cfg.WorldFrameID
	}
	pipeline, err := collision.NewFromConfig(cfg, collision.PublisherFunc(func(context.Context, bool) error {
		return nil
	}), nil, r.logger)
	if err != nil {
		return err
	}

	// the cloud takes the joint state's stamp so the two always pair
	pipeline.Detector.HandlePointCloud(c.Context, pointcloud.NewSample(frame, jc.Stamp, points))
	out, ok := pipeline.Detector.HandleJointState(c.Context, jc)
	if !ok {
		return errors.New("point cloud and joint state did not pair")
	}
	if out.Skipped {
		return errors.Wrap(out.Err, "cannot place the point cloud in the world frame")
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Collision", "Points scanned", "Non-finite points"})
	t.AppendRow(table.Row{out.Collision, out.Scanned, out.NonFinite})
	if _, err := fmt.Fprintln(c.App.Writer, t.Render()); err != nil {
		return err
	}
	if out.Collision {
		_, err = color.New(color.FgRed, color.Bold).Fprintln(c.App.Writer, "collision!")
	} else {
		_, err = color.New(color.FgGreen).Fprintln(c.App.Writer, "no collision!")
	}
	return err
}

func printSchema(c *cli.Context) error {
	schema := jsonschema.Reflect(&config.Config{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cannot encode config schema")
	}
	_, err = fmt.Fprintln(c.App.Writer, string(data))
	return err
}

func (r *runner) describe(c *cli.Context) error {
	cfg, err := r.loadConfig(c)
	if err != nil {
		return err
	}
	pipeline, err := collision.NewFromConfig(cfg, collision.PublisherFunc(func(context.Context, bool) error {
		return nil
	}), nil, r.logger)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("robot %q, root link %q, world frame %q",
		pipeline.Model.Name(), cfg.RootLinkID, cfg.WorldFrameID))
	t.AppendHeader(table.Row{"#", "Link", "Padding", "Scale", "Geometry"})
	for i, row := range pipeline.Mask.Describe() {
		t.AppendRow(table.Row{i + 1, row.Name, row.Padding, row.Scale, row.Geometry})
	}
	if _, err := fmt.Fprintln(c.App.Writer, t.Render()); err != nil {
		return err
	}
	if len(cfg.StaticTransforms) == 0 {
		return nil
	}
	_, err = fmt.Fprintln(c.App.Writer, staticTransformTable(cfg.StaticTransforms))
	return err
}

// staticTransformTable lists the configured static transforms with orientations in degrees.
func staticTransformTable(transforms []config.StaticTransform) string {
	t := table.NewWriter()
	t.SetTitle("static transforms")
	t.AppendHeader(table.Row{"#", "Parent", "Child", "Translation", "Orientation"})
	for i, st := range transforms {
		tra := st.Translation
		ori := st.Orientation
		t.AppendRow(table.Row{
			i + 1,
			st.Parent,
			st.Child,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", tra.X, tra.Y, tra.Z),
			fmt.Sprintf("Roll:%.2f, Pitch:%.2f, Yaw:%.2f",
				utils.RadToDeg(ori.Roll), utils.RadToDeg(ori.Pitch), utils.RadToDeg(ori.Yaw)),
		})
	}
	return t.Render()
}

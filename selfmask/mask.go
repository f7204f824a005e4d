// Package selfmask poses a robot's padded link volumes from joint configurations and answers
// whether points lie inside the robot's own body.
package selfmask

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/referenceframe"
	"go.viam.com/selfcollision/spatialmath"
)

// Containment is the result of testing a point against the posed body.
type Containment int

// The possible containment results.
const (
	Outside Containment = iota
	Inside
	// Unknown means the test was inconclusive.
	Unknown
)

func (c Containment) String() string {
	switch c {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("Containment(%d)", int(c))
	}
}

// Default option values.
const (
	DefaultRootLink      = "BODY"
	DefaultMinSensorDist = 0.01
)

// Options configures a Mask.
type Options struct {
	// RootLink is the link placed at the body pose of each joint configuration.
	RootLink string
	// MinSensorDist is the radius around the sensor origin inside which containment is Unknown.
	MinSensorDist float64
}

// maskLink is one configured link with its inflated geometry in the link frame.
type maskLink struct {
	info     LinkInfo
	geometry spatialmath.Geometry
}

type posedLink struct {
	name     string
	geometry spatialmath.Geometry
	center   r3.Vector
	radius   float64
}

// Mask is the robot body as a set of padded, scaled link volumes. RebuildPose and Containment
// may be called from different goroutines, but a caller that wants each query answered against a
// particular configuration must serialize the two itself.
type Mask struct {
	model  *referenceframe.Model
	links  []maskLink
	opts   Options
	logger logging.Logger

	mu           sync.RWMutex
	positions    map[string]float64
	posed        []posedLink
	unposed      []string
	everPosed    bool
	rootWarned   bool
	sensorOrigin *r3.Vector
	boundCenter  r3.Vector
	boundRadius  float64
}

// New builds a mask over the named links of model. Links the model does not define, links without
// collision geometry and duplicates are logged and skipped.
func New(model *referenceframe.Model, links []LinkInfo, opts Options, logger logging.Logger) *Mask {
	if opts.RootLink == "" {
		opts.RootLink = DefaultRootLink
	}
	if model == nil {
		model = referenceframe.NewEmptyModel("")
	}
	m := &Mask{
		model:  model,
		opts:   opts,
		logger: logger,
		positions: lo.SliceToMap(model.MovableJointNames(), func(name string) (string, float64) {
			return name, 0
		}),
	}

	seen := map[string]bool{}
	for _, li := range links {
		if seen[li.Name] {
			logger.Warnw("ignoring duplicate self see link", "link", li.Name)
			continue
		}
		l, ok := model.Link(li.Name)
		if !ok {
			logger.Warnw("self see link not found in robot model", "link", li.Name)
			continue
		}
		if l.Geometry == nil {
			if l.UnsupportedShape != "" {
				logger.Warnw("self see link has unsupported collision geometry", "link", li.Name, "shape", l.UnsupportedShape)
			} else {
				logger.Warnw("self see link has no collision geometry", "link", li.Name)
			}
			continue
		}
		inflated, err := l.Geometry.Inflate(li.Padding, li.Scale)
		if err != nil {
			logger.Warnw("cannot pad self see link", "link", li.Name, "error", err)
			continue
		}
		seen[li.Name] = true
		m.links = append(m.links, maskLink{info: li, geometry: inflated})
	}
	logger.Debugw("self mask built", "links", len(m.links), "model", model.Name())
	return m
}

// Links returns the configuration of every link the mask tests against.
func (m *Mask) Links() []LinkInfo {
	return lo.Map(m.links, func(l maskLink, _ int) LinkInfo { return l.info })
}

// RebuildPose poses every link volume for the given configuration. Joints the model knows but the
// configuration omits keep their previous position, initially zero. Links that cannot be posed
// are left out of this cycle's tests and make misses Unknown.
func (m *Mask) RebuildPose(cfg referenceframe.JointConfiguration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, value := range cfg.Positions {
		if _, ok := m.positions[name]; ok {
			m.positions[name] = value
		}
	}
	bodyPose := cfg.BodyPose
	if bodyPose == nil {
		bodyPose = spatialmath.NewZeroPose()
	}

	m.everPosed = true
	m.posed = m.posed[:0]
	m.unposed = m.unposed[:0]
	if len(m.links) == 0 {
		m.boundRadius = 0
		return
	}

	poses, err := m.model.LinkPoses(m.opts.RootLink, bodyPose, m.positions)
	if poses == nil {
		if !m.rootWarned {
			m.logger.Errorw("cannot pose robot links", "root_link", m.opts.RootLink, "error", err)
			m.rootWarned = true
		}
	} else if err != nil {
		m.logger.Debugw("some robot links could not be posed", "error", err)
	}

	for _, l := range m.links {
		pose, ok := poses[l.info.Name]
		if !ok {
			m.unposed = append(m.unposed, l.info.Name)
			continue
		}
		g := l.geometry.Transform(pose)
		m.posed = append(m.posed, posedLink{
			name:     l.info.Name,
			geometry: g,
			center:   g.Pose().Point(),
			radius:   g.BoundingRadius(),
		})
	}
	m.updateBound()
}

// updateBound fits one sphere around every posed link so far points can be rejected at once.
func (m *Mask) updateBound() {
	if len(m.posed) == 0 {
		m.boundRadius = 0
		return
	}
	var center r3.Vector
	for _, p := range m.posed {
		center = center.Add(p.center)
	}
	center = center.Mul(1 / float64(len(m.posed)))
	radius := 0.
	for _, p := range m.posed {
		radius = math.Max(radius, p.center.Sub(center).Norm()+p.radius)
	}
	m.boundCenter, m.boundRadius = center, radius
}

// SetSensorOrigin records where the sensor was, in world coordinates, when the points about to be
// tested were captured.
func (m *Mask) SetSensorOrigin(pt r3.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensorOrigin = &pt
}

// Containment tests pt, in world coordinates, against the most recently posed body. A point on a
// surface is outside.
func (m *Mask) Containment(pt r3.Vector) Containment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.everPosed {
		return Unknown
	}
	if m.sensorOrigin != nil && pt.Sub(*m.sensorOrigin).Norm() < m.opts.MinSensorDist {
		return Unknown
	}
	if len(m.posed) > 0 && pt.Sub(m.boundCenter).Norm() <= m.boundRadius {
		for _, p := range m.posed {
			if pt.Sub(p.center).Norm() > p.radius {
				continue
			}
			if p.geometry.ContainsPoint(pt) {
				return Inside
			}
		}
	}
	if len(m.unposed) > 0 {
		return Unknown
	}
	return Outside
}

// LinkRow describes one link of the mask.
type LinkRow struct {
	Name     string
	Padding  float64
	Scale    float64
	Geometry string
}

// Describe returns a row per link, in configuration order, giving the padded geometry in the link frame.
func (m *Mask) Describe() []LinkRow {
	return lo.Map(m.links, func(l maskLink, _ int) LinkRow {
		return LinkRow{
			Name:     l.info.Name,
			Padding:  l.info.Padding,
			Scale:    l.info.Scale,
			Geometry: l.geometry.String(),
		}
	})
}

package referenceframe

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"go.viam.com/selfcollision/spatialmath"
)

// Link is a rigid body of a model. Geometry is expressed in the link frame and is nil when the
// link has no usable collision element.
type Link struct {
	Name     string
	Geometry spatialmath.Geometry
	// UnsupportedShape names the collision shape that could not be built, if any.
	UnsupportedShape string
}

// Joint connects a parent link to a child link. Origin places the child frame in the parent
// frame at zero position; Axis is the unit axis of motion in the joint frame.
type Joint struct {
	Name     string
	Type     string
	Parent   string
	Child    string
	Origin   spatialmath.Pose
	Axis     r3.Vector
	Min, Max float64
}

// Transform returns the pose of the child frame in the parent frame with the joint at position q.
func (j *Joint) Transform(q float64) (spatialmath.Pose, error) {
	switch j.Type {
	case FixedJoint:
		return j.Origin, nil
	case RevoluteJoint:
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, errors.Errorf("joint %q has non-finite position", j.Name)
		}
		motion := spatialmath.NewPoseFromOrientation(spatialmath.NewR4AAFromAxis(j.Axis, q))
		return spatialmath.Compose(j.Origin, motion), nil
	case PrismaticJoint:
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, errors.Errorf("joint %q has non-finite position", j.Name)
		}
		return spatialmath.Compose(j.Origin, spatialmath.NewPoseFromPoint(j.Axis.Mul(q))), nil
	default:
		return nil, NewUnsupportedJointTypeError(j.Type)
	}
}

// Model is a kinematic tree of links joined by joints. It is immutable once parsed and safe for
// concurrent use.
type Model struct {
	name        string
	links       map[string]*Link
	joints      map[string]*Joint
	parentJoint map[string]*Joint
	childJoints map[string][]*Joint
}

// NewEmptyModel returns a model with no links.
func NewEmptyModel(name string) *Model {
	return &Model{
		name:        name,
		links:       map[string]*Link{},
		joints:      map[string]*Joint{},
		parentJoint: map[string]*Joint{},
		childJoints: map[string][]*Joint{},
	}
}

// Name returns the name of this model.
func (m *Model) Name() string {
	return m.name
}

// Link returns the named link.
func (m *Model) Link(name string) (*Link, bool) {
	l, ok := m.links[name]
	return l, ok
}

// LinkNames returns the names of all links, sorted.
func (m *Model) LinkNames() []string {
	names := lo.Keys(m.links)
	sort.Strings(names)
	return names
}

// MovableJointNames returns the names of joints that take a position, sorted.
func (m *Model) MovableJointNames() []string {
	names := lo.Keys(lo.PickBy(m.joints, func(_ string, j *Joint) bool {
		return j.Type != FixedJoint
	}))
	sort.Strings(names)
	return names
}

// Roots returns the links that have no parent joint, sorted.
func (m *Model) Roots() []string {
	return lo.Filter(m.LinkNames(), func(name string, _ int) bool {
		_, ok := m.parentJoint[name]
		return !ok
	})
}

// LinkPoses computes the pose of every link connected to root, given the pose of root itself and
// the joint positions. The tree is walked in both directions, so root need not be the top of the
// tree. Joints missing from positions are at 0. A joint whose transform cannot be computed leaves
// the links behind it out of the result; those failures are combined in the returned error
// alongside the partial result.
func (m *Model) LinkPoses(root string, rootPose spatialmath.Pose, positions map[string]float64) (map[string]spatialmath.Pose, error) {
	if _, ok := m.links[root]; !ok {
		return nil, NewLinkNotFoundError(root)
	}

	poses := map[string]spatialmath.Pose{root: rootPose}
	queue := []string{root}
	var errs error
	visit := func(name string, pose spatialmath.Pose) {
		if _, seen := poses[name]; seen {
			return
		}
		poses[name] = pose
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		currentPose := poses[current]

		for _, j := range m.childJoints[current] {
			if _, seen := poses[j.Child]; seen {
				continue
			}
			tf, err := j.Transform(positions[j.Name])
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			visit(j.Child, spatialmath.Compose(currentPose, tf))
		}
		if j, ok := m.parentJoint[current]; ok {
			if _, seen := poses[j.Parent]; seen {
				continue
			}
			tf, err := j.Transform(positions[j.Name])
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			visit(j.Parent, spatialmath.Compose(currentPose, spatialmath.PoseInverse(tf)))
		}
	}
	return poses, errs
}

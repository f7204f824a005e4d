// Package transform resolves rigid transforms between named coordinate frames at a point in time.
package transform

import (
	"context"
	"time"

	"go.viam.com/selfcollision/spatialmath"
)

// Resolver answers "where is frame source, expressed in frame target, at time stamp". The returned
// pose maps points in source coordinates into target coordinates.
type Resolver interface {
	LookupTransform(ctx context.Context, target, source string, stamp time.Time) (spatialmath.Pose, error)
}

// ResolverFunc adapts a function into a Resolver.
type ResolverFunc func(ctx context.Context, target, source string, stamp time.Time) (spatialmath.Pose, error)

// LookupTransform calls f.
func (f ResolverFunc) LookupTransform(ctx context.Context, target, source string, stamp time.Time) (spatialmath.Pose, error) {
	return f(ctx, target, source, stamp)
}

// Stamped is the pose of Child in Parent at Stamp.
type Stamped struct {
	Parent string
	Child  string
	Stamp  time.Time
	Pose   spatialmath.Pose
}

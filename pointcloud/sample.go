// Package pointcloud defines the point samples consumed by the collision detector and reads and
// writes them as PCD files.
package pointcloud

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/selfcollision/spatialmath"
)

// Sample is an ordered set of 3D points captured at one instant, all expressed in Frame. Points
// may contain non-finite coordinates; consumers decide how to treat them.
type Sample struct {
	Frame  string
	Stamp  time.Time
	Points []r3.Vector
}

// NewSample returns a sample of the given points.
func NewSample(frame string, stamp time.Time, points []r3.Vector) Sample {
	return Sample{Frame: frame, Stamp: stamp, Points: points}
}

// Timestamp returns the time the sample was captured.
func (s Sample) Timestamp() time.Time {
	return s.Stamp
}

// Len returns the number of points, finite or not.
func (s Sample) Len() int {
	return len(s.Points)
}

// FiniteCount returns the number of points whose coordinates are all finite.
func (s Sample) FiniteCount() int {
	return lo.CountBy(s.Points, spatialmath.IsFinite)
}

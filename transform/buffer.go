package transform

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/spatialmath"
)

// DefaultCacheDuration is how much history a Buffer keeps per frame when none is configured.
const DefaultCacheDuration = 10 * time.Second

// BufferOptions configures a Buffer.
type BufferOptions struct {
	// CacheDuration bounds the history kept per frame, measured back from the newest sample.
	CacheDuration time.Duration
	// Tolerance is how far a lookup may fall outside a frame's history and still be answered with
	// the nearest sample.
	Tolerance time.Duration
}

// frameHistory is the time-sorted list of poses of one frame in its parent.
type frameHistory struct {
	parent  string
	static  spatialmath.Pose
	samples []Stamped
}

func (h *frameHistory) isStatic() bool {
	return h.static != nil
}

// at returns the pose of the frame in its parent at stamp. The zero stamp selects the newest sample.
func (h *frameHistory) at(child string, stamp time.Time, tolerance time.Duration) (spatialmath.Pose, error) {
	if h.isStatic() {
		return h.static, nil
	}
	n := len(h.samples)
	oldest, newest := h.samples[0], h.samples[n-1]
	if stamp.IsZero() {
		return newest.Pose, nil
	}
	if stamp.Before(oldest.Stamp) {
		if oldest.Stamp.Sub(stamp) > tolerance {
			return nil, &ExtrapolationError{Frame: child, Stamp: stamp, Oldest: oldest.Stamp, Newest: newest.Stamp}
		}
		return oldest.Pose, nil
	}
	if stamp.After(newest.Stamp) {
		if stamp.Sub(newest.Stamp) > tolerance {
			return nil, &ExtrapolationError{Frame: child, Stamp: stamp, Oldest: oldest.Stamp, Newest: newest.Stamp}
		}
		return newest.Pose, nil
	}

	// first sample at or after stamp
	i := sort.Search(n, func(i int) bool { return !h.samples[i].Stamp.Before(stamp) })
	after := h.samples[i]
	if after.Stamp.Equal(stamp) || i == 0 {
		return after.Pose, nil
	}
	before := h.samples[i-1]
	by := float64(stamp.Sub(before.Stamp)) / float64(after.Stamp.Sub(before.Stamp))
	return spatialmath.Interpolate(before.Pose, after.Pose, by), nil
}

func (h *frameHistory) insert(t Stamped, cacheDuration time.Duration) {
	n := len(h.samples)
	i := sort.Search(n, func(i int) bool { return t.Stamp.Before(h.samples[i].Stamp) })
	if i > 0 && h.samples[i-1].Stamp.Equal(t.Stamp) {
		h.samples[i-1] = t
	} else {
		h.samples = append(h.samples, Stamped{})
		copy(h.samples[i+1:], h.samples[i:])
		h.samples[i] = t
	}

	cutoff := h.samples[len(h.samples)-1].Stamp.Add(-cacheDuration)
	keepFrom := sort.Search(len(h.samples), func(i int) bool { return !h.samples[i].Stamp.Before(cutoff) })
	if keepFrom > 0 {
		h.samples = append(h.samples[:0], h.samples[keepFrom:]...)
	}
}

// Buffer is a Resolver backed by a time-indexed tree of frames. Each frame has one parent; a
// frame's poses are either static or a bounded history that is interpolated at lookup time.
// Buffer is safe for concurrent use.
type Buffer struct {
	mu     sync.RWMutex
	frames map[string]*frameHistory
	opts   BufferOptions
	logger logging.Logger
}

// NewBuffer returns an empty Buffer.
func NewBuffer(opts BufferOptions, logger logging.Logger) *Buffer {
	if opts.CacheDuration <= 0 {
		opts.CacheDuration = DefaultCacheDuration
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	return &Buffer{
		frames: map[string]*frameHistory{},
		opts:   opts,
		logger: logger,
	}
}

// SetTransform records the pose of t.Child in t.Parent. Static transforms hold for all time.
// A frame that is re-parented drops its previous history.
func (b *Buffer) SetTransform(t Stamped, static bool) error {
	if t.Parent == "" || t.Child == "" {
		return errors.Errorf("transform from %q to %q names an empty frame", t.Parent, t.Child)
	}
	if t.Parent == t.Child {
		return errors.Errorf("frame %q cannot be its own parent", t.Child)
	}
	if t.Pose == nil || !spatialmath.PoseIsFinite(t.Pose) {
		return errors.Errorf("transform from %q to %q has an invalid pose", t.Parent, t.Child)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.frames[t.Child]
	if !ok || h.parent != t.Parent {
		if ok {
			b.logger.Debugw("frame changed parent", "frame", t.Child, "from", h.parent, "to", t.Parent)
		}
		h = &frameHistory{parent: t.Parent}
		b.frames[t.Child] = h
	}
	if static {
		h.static = t.Pose
		h.samples = nil
		return nil
	}
	h.static = nil
	h.insert(t, b.opts.CacheDuration)
	return nil
}

// SetTransforms records a batch of transforms, stopping at the first invalid one.
func (b *Buffer) SetTransforms(transforms []Stamped, static bool) error {
	for _, t := range transforms {
		if err := b.SetTransform(t, static); err != nil {
			return err
		}
	}
	return nil
}

// Frames returns every known frame, sorted.
func (b *Buffer) Frames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := lo.Uniq(append(lo.Keys(b.frames), lo.Map(lo.Values(b.frames), func(h *frameHistory, _ int) string {
		return h.parent
	})...))
	sort.Strings(names)
	return names
}

// Clear drops every transform, static ones included.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = map[string]*frameHistory{}
}

func (b *Buffer) hasFrame(name string) bool {
	if _, ok := b.frames[name]; ok {
		return true
	}
	return lo.SomeBy(lo.Values(b.frames), func(h *frameHistory) bool { return h.parent == name })
}

// chain returns the frames from name up to its root, name first.
func (b *Buffer) chain(name string) []string {
	out := []string{name}
	seen := map[string]bool{name: true}
	for {
		h, ok := b.frames[out[len(out)-1]]
		if !ok || seen[h.parent] {
			return out
		}
		seen[h.parent] = true
		out = append(out, h.parent)
	}
}

// poseInAncestor composes the poses from frame up to (not including) ancestor.
func (b *Buffer) poseInAncestor(path []string, stamp time.Time) (spatialmath.Pose, error) {
	pose := spatialmath.NewZeroPose()
	for _, frame := range path {
		step, err := b.frames[frame].at(frame, stamp, b.opts.Tolerance)
		if err != nil {
			return nil, err
		}
		pose = spatialmath.Compose(step, pose)
	}
	return pose, nil
}

// LookupTransform returns the pose of source in target at stamp. The zero stamp uses the newest
// data of every frame along the way.
func (b *Buffer) LookupTransform(ctx context.Context, target, source string, stamp time.Time) (spatialmath.Pose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if target == source {
		return spatialmath.NewZeroPose(), nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.hasFrame(target) {
		return nil, NewFrameNotFoundError(target)
	}
	if !b.hasFrame(source) {
		return nil, NewFrameNotFoundError(source)
	}

	sourceChain := b.chain(source)
	targetChain := b.chain(target)
	targetIndex := make(map[string]int, len(targetChain))
	for i, f := range targetChain {
		targetIndex[f] = i
	}

	common := -1
	for i, f := range sourceChain {
		if _, ok := targetIndex[f]; ok {
			common = i
			break
		}
	}
	if common < 0 {
		return nil, &ConnectivityError{Target: target, Source: source}
	}
	ancestor := sourceChain[common]

	sourceInAncestor, err := b.poseInAncestor(sourceChain[:common], stamp)
	if err != nil {
		return nil, err
	}
	targetInAncestor, err := b.poseInAncestor(targetChain[:targetIndex[ancestor]], stamp)
	if err != nil {
		return nil, err
	}
	return spatialmath.PoseBetween(targetInAncestor, sourceInAncestor), nil
}

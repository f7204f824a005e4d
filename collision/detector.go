package collision

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"go.viam.com/selfcollision/logging"
	"go.viam.com/selfcollision/pointcloud"
	"go.viam.com/selfcollision/referenceframe"
	"go.viam.com/selfcollision/streamsync"
	"go.viam.com/selfcollision/utils"
)

// latencyWindow is how many recent cycles MeanLatency covers.
const latencyWindow = 100

// Pair is a point cloud matched with the joint state closest to it in time.
type Pair = streamsync.Pair[pointcloud.Sample, referenceframe.JointConfiguration]

// Options configures a Detector.
type Options struct {
	Sync streamsync.Options
	// Clock times each cycle. Defaults to the wall clock.
	Clock clock.Clock
}

// Stats counts what a Detector has done.
type Stats struct {
	Pairs         uint64
	Decisions     uint64
	Collisions    uint64
	Skipped       uint64
	PublishErrors uint64
	LastLatency   time.Duration
	// MeanLatency averages the most recent decided cycles.
	MeanLatency time.Duration
	Sync        streamsync.Stats
}

// Detector runs the pipeline: it pairs point clouds with joint states, evaluates each pair and
// publishes the decision. Evaluation happens in the goroutine that delivered the completing
// message, one cycle at a time, and decisions are published in pairing order.
type Detector struct {
	id        string
	sync      *streamsync.Synchronizer[pointcloud.Sample, referenceframe.JointConfiguration]
	evaluator *Evaluator
	publisher Publisher
	clock     clock.Clock
	logger    logging.Logger

	// pairMu makes pairing and ticket assignment one step
	pairMu     sync.Mutex
	nextTicket uint64

	// evalMu runs one cycle at a time, in ticket order
	evalMu    sync.Mutex
	turn      *sync.Cond
	serving   uint64
	latencies *utils.RollingAverage

	pairs         atomic.Uint64
	decisions     atomic.Uint64
	collisions    atomic.Uint64
	skipped       atomic.Uint64
	publishErrors atomic.Uint64
	lastLatency   atomic.Duration
	meanLatency   atomic.Duration
}

// NewDetector returns a Detector. It fails only if the sync options are unusable.
func NewDetector(evaluator *Evaluator, publisher Publisher, opts Options, logger logging.Logger) (*Detector, error) {
	s, err := streamsync.New[pointcloud.Sample, referenceframe.JointConfiguration](opts.Sync)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	id := uuid.NewString()
	d := &Detector{
		id:        id,
		sync:      s,
		evaluator: evaluator,
		publisher: publisher,
		clock:     opts.Clock,
		logger:    logger.Sublogger(id[:8]),
		latencies: utils.NewRollingAverage(latencyWindow),
	}
	d.turn = sync.NewCond(&d.evalMu)
	return d, nil
}

// ID identifies this detector in logs.
func (d *Detector) ID() string {
	return d.id
}

// HandlePointCloud offers a point cloud. If it completes a pair, the pair is evaluated before
// returning and the outcome is reported with true.
func (d *Detector) HandlePointCloud(ctx context.Context, s pointcloud.Sample) (Outcome, bool) {
	pair, ticket, ok := d.offer(func() (Pair, bool) { return d.sync.AddFirst(s) })
	if !ok {
		return Outcome{}, false
	}
	return d.process(ctx, pair, ticket), true
}

// HandleJointState offers a joint configuration. If it completes a pair, the pair is evaluated
// before returning and the outcome is reported with true.
func (d *Detector) HandleJointState(ctx context.Context, jc referenceframe.JointConfiguration) (Outcome, bool) {
	pair, ticket, ok := d.offer(func() (Pair, bool) { return d.sync.AddSecond(jc) })
	if !ok {
		return Outcome{}, false
	}
	return d.process(ctx, pair, ticket), true
}

// offer numbers each emitted pair while pairing is still locked, so tickets follow pairing order
// even when two goroutines deliver messages.
func (d *Detector) offer(add func() (Pair, bool)) (Pair, uint64, bool) {
	d.pairMu.Lock()
	defer d.pairMu.Unlock()
	pair, ok := add()
	if !ok {
		return Pair{}, 0, false
	}
	ticket := d.nextTicket
	d.nextTicket++
	return pair, ticket, true
}

// process evaluates and publishes a pair once every earlier ticket is done.
func (d *Detector) process(ctx context.Context, pair Pair, ticket uint64) Outcome {
	d.evalMu.Lock()
	for d.serving != ticket {
		d.turn.Wait()
	}
	defer func() {
		d.serving++
		d.turn.Broadcast()
		d.evalMu.Unlock()
	}()

	d.pairs.Inc()
	d.logger.CDebugw(ctx, "checkCollision is called.", "stamp", pair.Stamp(), "skew", pair.Skew(),
		"points", pair.First.Len())

	start := d.clock.Now()
	out := d.evaluator.Evaluate(ctx, pair.First, pair.Second)
	latency := d.clock.Since(start)
	d.lastLatency.Store(latency)
	if out.Skipped {
		d.skipped.Inc()
		return out
	}
	d.latencies.Add(float64(latency))
	d.meanLatency.Store(time.Duration(d.latencies.Average()))

	d.decisions.Inc()
	if out.Collision {
		d.collisions.Inc()
		d.logger.CInfow(ctx, "collision!", "stamp", pair.Stamp(), "scanned", out.Scanned)
	} else {
		d.logger.CInfow(ctx, "no collision!", "stamp", pair.Stamp(), "non_finite", out.NonFinite)
	}
	if err := d.publisher.Publish(ctx, out.Collision); err != nil {
		d.publishErrors.Inc()
		d.logger.CWarnw(ctx, "failed to publish collision status", "error", err)
	}
	return out
}

// Run feeds the detector from two channels until both are closed or ctx is done. It returns
// ctx.Err() when cancelled.
func (d *Detector) Run(ctx context.Context, clouds <-chan pointcloud.Sample, joints <-chan referenceframe.JointConfiguration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case s, ok := <-clouds:
				if !ok {
					return nil
				}
				d.HandlePointCloud(gctx, s)
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jc, ok := <-joints:
				if !ok {
					return nil
				}
				d.HandleJointState(gctx, jc)
			}
		}
	})
	return g.Wait()
}

// Stats returns a snapshot of the counters.
func (d *Detector) Stats() Stats {
	return Stats{
		Pairs:         d.pairs.Load(),
		Decisions:     d.decisions.Load(),
		Collisions:    d.collisions.Load(),
		Skipped:       d.skipped.Load(),
		PublishErrors: d.publishErrors.Load(),
		LastLatency:   d.lastLatency.Load(),
		MeanLatency:   d.meanLatency.Load(),
		Sync:          d.sync.Stats(),
	}
}

// Reset forgets buffered messages, for example after a replay jumps back in time.
func (d *Detector) Reset() {
	d.sync.Reset()
}

// Package streamsync pairs messages from two independently timed streams by nearest timestamp.
package streamsync

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultQueueSize is the number of unmatched messages kept per stream.
const DefaultQueueSize = 100

// Stamped is a message that knows when it was captured.
type Stamped interface {
	Timestamp() time.Time
}

// Options configures a Synchronizer.
type Options struct {
	// QueueSize bounds the number of unmatched messages kept per stream. Zero means DefaultQueueSize.
	QueueSize int
	// Tolerance is the largest time difference between the two messages of a pair.
	Tolerance time.Duration
}

// Pair is one message from each stream, matched by time.
type Pair[A, B Stamped] struct {
	First  A
	Second B
}

// Stamp is the capture time of the first stream's message.
func (p Pair[A, B]) Stamp() time.Time {
	return p.First.Timestamp()
}

// Skew is the absolute time difference between the two messages.
func (p Pair[A, B]) Skew() time.Duration {
	d := p.First.Timestamp().Sub(p.Second.Timestamp())
	if d < 0 {
		return -d
	}
	return d
}

// Stats counts what a Synchronizer has done with its input.
type Stats struct {
	Emitted       uint64
	EvictedFirst  uint64
	EvictedSecond uint64
	StaleFirst    uint64
	StaleSecond   uint64
	PendingFirst  int
	PendingSecond int
}

// Synchronizer is an approximate-time join of two streams. Each arrival is matched against the
// other stream's buffered messages; the closest one within the tolerance forms a pair, and the
// paired messages and everything older than them are retired. Unmatched messages wait in a
// bounded window that evicts its oldest message when full.
//
// A message stamped at or before the last paired message of its own stream is dropped as stale.
// Each stream's paired stamps therefore strictly increase, so no message is paired twice and pairs
// come out in time order.
//
// Synchronizer is safe for concurrent use; the lock is held only while the windows are updated.
type Synchronizer[A, B Stamped] struct {
	opts Options

	mu         sync.Mutex
	first      window[A]
	second     window[B]
	lastFirst  time.Time
	lastSecond time.Time
	paired     bool
	stats      Stats
}

// New returns a Synchronizer. The tolerance must be positive.
func New[A, B Stamped](opts Options) (*Synchronizer[A, B], error) {
	if opts.Tolerance <= 0 {
		return nil, errors.Errorf("sync tolerance must be positive, got %s", opts.Tolerance)
	}
	if opts.QueueSize < 0 {
		return nil, errors.Errorf("sync queue size must not be negative, got %d", opts.QueueSize)
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = DefaultQueueSize
	}
	return &Synchronizer[A, B]{opts: opts}, nil
}

// AddFirst offers a message from the first stream and returns the pair it completes, if any.
func (s *Synchronizer[A, B]) AddFirst(a A) (Pair[A, B], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := a.Timestamp()
	if s.paired && !stamp.After(s.lastFirst) {
		s.stats.StaleFirst++
		return Pair[A, B]{}, false
	}
	idx, diff, ok := s.second.nearest(stamp)
	if !ok || diff > s.opts.Tolerance {
		s.first.insert(a)
		if s.first.len() > s.opts.QueueSize {
			s.first.popOldest()
			s.stats.EvictedFirst++
		}
		return Pair[A, B]{}, false
	}

	b := s.second.items[idx]
	s.emit(stamp, b.Timestamp())
	return Pair[A, B]{First: a, Second: b}, true
}

// AddSecond offers a message from the second stream and returns the pair it completes, if any.
func (s *Synchronizer[A, B]) AddSecond(b B) (Pair[A, B], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := b.Timestamp()
	if s.paired && !stamp.After(s.lastSecond) {
		s.stats.StaleSecond++
		return Pair[A, B]{}, false
	}
	idx, diff, ok := s.first.nearest(stamp)
	if !ok || diff > s.opts.Tolerance {
		s.second.insert(b)
		if s.second.len() > s.opts.QueueSize {
			s.second.popOldest()
			s.stats.EvictedSecond++
		}
		return Pair[A, B]{}, false
	}

	a := s.first.items[idx]
	s.emit(a.Timestamp(), stamp)
	return Pair[A, B]{First: a, Second: b}, true
}

// emit retires both paired messages along with everything older. Must hold mu.
func (s *Synchronizer[A, B]) emit(firstStamp, secondStamp time.Time) {
	s.first.retireNotAfter(firstStamp)
	s.second.retireNotAfter(secondStamp)
	s.lastFirst, s.lastSecond = firstStamp, secondStamp
	s.paired = true
	s.stats.Emitted++
}

// Stats returns a snapshot of the counters.
func (s *Synchronizer[A, B]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.PendingFirst = s.first.len()
	stats.PendingSecond = s.second.len()
	return stats
}

// Reset drops every buffered message and forgets what was paired, so earlier stamps are accepted
// again. Counters are kept.
func (s *Synchronizer[A, B]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.first.clear()
	s.second.clear()
	s.lastFirst, s.lastSecond = time.Time{}, time.Time{}
	s.paired = false
}

package streamsync

import (
	"sort"
	"time"
)

// window is a stamp-ordered buffer of messages from one stream. Messages with equal stamps keep
// their arrival order.
type window[T Stamped] struct {
	items []T
}

func (w *window[T]) len() int {
	return len(w.items)
}

// insert places v after every message stamped at or before it.
func (w *window[T]) insert(v T) {
	stamp := v.Timestamp()
	i := sort.Search(len(w.items), func(i int) bool { return w.items[i].Timestamp().After(stamp) })
	var zero T
	w.items = append(w.items, zero)
	copy(w.items[i+1:], w.items[i:])
	w.items[i] = v
}

// popOldest removes the oldest message.
func (w *window[T]) popOldest() {
	var zero T
	w.items[0] = zero
	w.items = w.items[1:]
}

// nearest returns the index of the message closest in time to stamp and its distance. On a tie the
// older message wins, and among equal stamps the earliest arrival wins.
func (w *window[T]) nearest(stamp time.Time) (int, time.Duration, bool) {
	n := len(w.items)
	if n == 0 {
		return 0, 0, false
	}
	// first message at or after stamp
	i := sort.Search(n, func(i int) bool { return !w.items[i].Timestamp().Before(stamp) })
	if i == 0 {
		return 0, w.items[0].Timestamp().Sub(stamp), true
	}
	older := i - 1
	olderStamp := w.items[older].Timestamp()
	for older > 0 && w.items[older-1].Timestamp().Equal(olderStamp) {
		older--
	}
	olderDiff := stamp.Sub(olderStamp)
	if i == n {
		return older, olderDiff, true
	}
	newerDiff := w.items[i].Timestamp().Sub(stamp)
	if olderDiff <= newerDiff {
		return older, olderDiff, true
	}
	return i, newerDiff, true
}

// retireNotAfter drops every message stamped at or before stamp.
func (w *window[T]) retireNotAfter(stamp time.Time) {
	i := sort.Search(len(w.items), func(i int) bool { return w.items[i].Timestamp().After(stamp) })
	if i == 0 {
		return
	}
	var zero T
	for j := 0; j < i; j++ {
		w.items[j] = zero
	}
	w.items = w.items[i:]
}

func (w *window[T]) clear() {
	w.items = nil
}

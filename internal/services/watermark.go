package services

import (
	"sync/atomic"
	"time"
)

// Watermark is the collection-wide last-change time used for conditional
// list reads. The zero value is unset. It is safe for concurrent use.
type Watermark struct {
	nanos atomic.Int64
}

// Load returns the watermark and whether it has been set.
func (w *Watermark) Load() (time.Time, bool) {
	n := w.nanos.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

// Advance records a mutation at t and returns the new watermark. The result
// is t, or one nanosecond past the previous watermark when t is not later,
// so every mutation moves the watermark even within one clock tick.
func (w *Watermark) Advance(t time.Time) time.Time {
	n := t.UnixNano()
	for {
		cur := w.nanos.Load()
		next := n
		if next <= cur {
			next = cur + 1
		}
		if w.nanos.CompareAndSwap(cur, next) {
			return time.Unix(0, next).UTC()
		}
	}
}

// InitIfUnset sets the watermark to t only when no mutation or read has set
// it yet, and returns the resulting value.
func (w *Watermark) InitIfUnset(t time.Time) time.Time {
	w.nanos.CompareAndSwap(0, t.UnixNano())
	cur, _ := w.Load()
	return cur
}

// ShouldReturnCached reports whether a list read carrying marker can be
// answered with "not modified": the marker is present, the watermark is set
// and the watermark is not after the marker.
func ShouldReturnCached(marker *time.Time, w *Watermark) bool {
	if marker == nil || w == nil {
		return false
	}
	wm, ok := w.Load()
	if !ok {
		return false
	}
	return !wm.After(*marker)
}

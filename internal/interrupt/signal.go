// Package interrupt provides the early-wake signal shared by the poller and
// anything that wants a refresh before the scheduled time.
package interrupt

import (
	"context"
	"sync/atomic"
	"time"
)

// WakeReason reports why Wait returned.
type WakeReason int

const (
	// Elapsed means the full duration passed.
	Elapsed WakeReason = iota
	// Interrupted means a pending notification was consumed.
	Interrupted
	// Cancelled means the context ended the wait.
	Cancelled
)

func (r WakeReason) String() string {
	switch r {
	case Elapsed:
		return "elapsed"
	case Interrupted:
		return "interrupted"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Signal is a single-slot, at-most-one-pending notification.
//
// The pending flag is the source of truth and is cleared with a
// compare-and-swap by whoever consumes it. The wake channel only carries
// the edge so a blocked Wait can notice; a stale token on it is ignored.
type Signal struct {
	pending atomic.Bool
	wake    chan struct{}
}

// New returns an idle Signal.
func New() *Signal {
	return &Signal{wake: make(chan struct{}, 1)}
}

// Notify requests an early wake. It never blocks. It returns false when a
// notification was already pending, in which case the call collapses into
// the pending one.
func (s *Signal) Notify() bool {
	if !s.pending.CompareAndSwap(false, true) {
		return false
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending reports whether a notification is waiting to be consumed.
func (s *Signal) Pending() bool {
	return s.pending.Load()
}

// Wait blocks until d elapses, a notification is consumed or ctx is done,
// whichever happens first. A notification that arrived while nobody was
// waiting is consumed immediately, once.
func (s *Signal) Wait(ctx context.Context, d time.Duration) (WakeReason, error) {
	if s.take() {
		return Interrupted, nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Cancelled, ctx.Err()
		case <-timer.C:
			return Elapsed, nil
		case <-s.wake:
			if s.take() {
				return Interrupted, nil
			}
		}
	}
}

func (s *Signal) take() bool {
	if !s.pending.CompareAndSwap(true, false) {
		return false
	}
	select {
	case <-s.wake:
	default:
	}
	return true
}

// Package imagechan is the bounded single-producer single-consumer queue
// carrying fetched images from the poller to the renderer.
package imagechan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/byod/internal/model"
)

// ErrClosed is returned by Send once the receiving side has gone away.
var ErrClosed = errors.New("imagechan: receiver closed")

// Overflow selects what Send does when the queue is full.
type Overflow string

const (
	// Block waits for the renderer to make room (backpressure).
	Block Overflow = "block"
	// DropOldest discards the oldest queued payload to make room.
	DropOldest Overflow = "drop-oldest"
)

// ParseOverflow validates an overflow policy name.
func ParseOverflow(s string) (Overflow, error) {
	switch Overflow(s) {
	case Block, "":
		return Block, nil
	case DropOldest:
		return DropOldest, nil
	default:
		return "", fmt.Errorf("unknown queue overflow policy %q", s)
	}
}

// Queue is a FIFO of image payloads. The underlying channel is never
// closed; Close marks the receiver as gone so a late Send fails instead of
// panicking.
type Queue struct {
	ch        chan model.Payload
	done      chan struct{}
	closeOnce sync.Once
	overflow  Overflow

	dropped atomic.Int64
}

// New creates a queue holding up to capacity payloads.
func New(capacity int, overflow Overflow) *Queue {
	if capacity <= 0 {
		capacity = model.DefaultImageQueueSize
	}
	if overflow == "" {
		overflow = Block
	}
	return &Queue{
		ch:       make(chan model.Payload, capacity),
		done:     make(chan struct{}),
		overflow: overflow,
	}
}

// Send enqueues p. With the Block policy it waits for room, for ctx, or for
// the receiver to close, whichever comes first.
func (q *Queue) Send(ctx context.Context, p model.Payload) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	if q.overflow == DropOldest {
		return q.sendDropOldest(p)
	}

	select {
	case q.ch <- p:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) sendDropOldest(p model.Payload) error {
	for {
		select {
		case <-q.done:
			return ErrClosed
		case q.ch <- p:
			return nil
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// TryRecv returns the oldest queued payload without blocking.
func (q *Queue) TryRecv() (model.Payload, bool) {
	select {
	case p := <-q.ch:
		return p, true
	default:
		return model.Payload{}, false
	}
}

// DrainLatest empties whatever is queued right now and returns the newest
// payload plus the number of older payloads it superseded. It never blocks.
func (q *Queue) DrainLatest() (latest model.Payload, superseded int, ok bool) {
	for {
		p, got := q.TryRecv()
		if !got {
			return latest, superseded, ok
		}
		if ok {
			superseded++
		}
		latest, ok = p, true
	}
}

// Len reports the number of queued payloads.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Dropped reports how many payloads the DropOldest policy discarded.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Close marks the receiver as gone. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

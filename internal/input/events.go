// Package input carries user input from a display surface to the renderer.
package input

import "sync"

// Kind identifies the kind of input event.
type Kind string

const (
	// Quit asks the renderer to stop (window closed, quit key).
	Quit Kind = "quit"
	// KeyPress is a single key going down.
	KeyPress Kind = "key_press"
	// Other is any event the renderer does not act on.
	Other Kind = "other"
)

// Event is one user input event. Key is set for KeyPress and holds the
// lower-case key name ("r", "space", "f5").
type Event struct {
	Kind Kind
	Key  string
}

// Queue collects events produced on a surface's own goroutine until the
// renderer drains them on its tick.
type Queue struct {
	mu     sync.Mutex
	events []Event
}

// Push appends e.
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	q.events = append(q.events, e)
	q.mu.Unlock()
}

// Drain returns all queued events in arrival order and empties the queue.
// It never blocks on input.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = nil
	return out
}

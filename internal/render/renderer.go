// Package render runs the fixed-cadence display loop: it draws the newest
// fetched image, presents the surface and turns user input into quit or
// early-refresh requests.
package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/byod/internal/input"
	"github.com/tinytelemetry/byod/internal/model"
)

// Surface is the display collaborator. The renderer is its only mutator.
type Surface interface {
	DrawImage(data []byte) error
	Present()
}

// InputSource yields the input events gathered since the last call.
type InputSource interface {
	Drain() []input.Event
}

// Receiver is the consuming side of the image channel.
type Receiver interface {
	DrainLatest() (latest model.Payload, superseded int, ok bool)
}

// Notifier requests an early poll.
type Notifier interface {
	Notify() bool
}

// Config tunes the render loop.
type Config struct {
	Tick        time.Duration
	RefreshKeys []string
}

// Stats is a point-in-time snapshot of the renderer counters.
type Stats struct {
	Ticks             int64     `json:"ticks"`
	FramesDrawn       int64     `json:"frames_drawn"`
	DecodeFailures    int64     `json:"decode_failures"`
	Superseded        int64     `json:"superseded"`
	RefreshRequests   int64     `json:"refresh_requests"`
	RefreshCollapsed  int64     `json:"refresh_collapsed"`
	LastFrameAt       time.Time `json:"last_frame_at,omitempty"`
	LastFrameSource   string    `json:"last_frame_source,omitempty"`
	LastDecodeFailure string    `json:"last_decode_failure,omitempty"`
}

// Renderer owns the display surface for the lifetime of Run.
type Renderer struct {
	cfg     Config
	surface Surface
	input   InputSource
	frames  Receiver
	signal  Notifier
	refresh map[string]struct{}

	ticks            atomic.Int64
	framesDrawn      atomic.Int64
	decodeFailures   atomic.Int64
	superseded       atomic.Int64
	refreshRequests  atomic.Int64
	refreshCollapsed atomic.Int64

	mu          sync.Mutex
	lastFrameAt time.Time
	lastSource  string
	lastFailure string
}

// New validates the collaborators and returns a Renderer.
func New(cfg Config, surface Surface, in InputSource, frames Receiver, signal Notifier) (*Renderer, error) {
	if surface == nil || in == nil || frames == nil || signal == nil {
		return nil, errors.New("render: surface, input, image channel and signal are required")
	}
	if cfg.Tick == 0 {
		cfg.Tick = model.DefaultTickInterval
	}
	if cfg.Tick < model.MinTickInterval || cfg.Tick > model.MaxTickInterval {
		return nil, fmt.Errorf("render: tick %s outside [%s, %s]", cfg.Tick, model.MinTickInterval, model.MaxTickInterval)
	}
	if len(cfg.RefreshKeys) == 0 {
		cfg.RefreshKeys = []string{model.DefaultRefreshKey}
	}

	keys := make(map[string]struct{}, len(cfg.RefreshKeys))
	for _, k := range cfg.RefreshKeys {
		keys[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}

	return &Renderer{
		cfg:     cfg,
		surface: surface,
		input:   in,
		frames:  frames,
		signal:  signal,
		refresh: keys,
	}, nil
}

// Run ticks until a quit event (nil) or ctx ends (ctx.Err()). The image
// channel is left open: its owner closes it once the poller has been
// cancelled, so a quit never reaches the poller as a closed channel.
func (r *Renderer) Run(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.Tick)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.Tick() {
			log.Printf("render: quit requested")
			return nil
		}

		timer.Reset(r.cfg.Tick)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Tick runs a single iteration without sleeping and reports whether a quit
// event was seen.
func (r *Renderer) Tick() (quit bool) {
	r.ticks.Add(1)

	if p, superseded, ok := r.frames.DrainLatest(); ok {
		if superseded > 0 {
			r.superseded.Add(int64(superseded))
		}
		r.draw(p)
	}

	r.surface.Present()

	for _, ev := range r.input.Drain() {
		switch ev.Kind {
		case input.Quit:
			quit = true
		case input.KeyPress:
			if _, ok := r.refresh[strings.ToLower(ev.Key)]; ok {
				r.requestRefresh(ev.Key)
			}
		}
	}
	return quit
}

func (r *Renderer) draw(p model.Payload) {
	if err := r.surface.DrawImage(p.Data); err != nil {
		r.decodeFailures.Add(1)
		r.mu.Lock()
		r.lastFailure = err.Error()
		r.mu.Unlock()
		log.Printf("render: dropping frame from %s: %v", p.SourceURL, err)
		return
	}
	r.framesDrawn.Add(1)
	r.mu.Lock()
	r.lastFrameAt = time.Now()
	r.lastSource = p.SourceURL
	r.mu.Unlock()
}

func (r *Renderer) requestRefresh(key string) {
	r.refreshRequests.Add(1)
	if r.signal.Notify() {
		log.Printf("render: refresh requested (%s)", key)
		return
	}
	r.refreshCollapsed.Add(1)
}

// Stats returns the current counters.
func (r *Renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Ticks:             r.ticks.Load(),
		FramesDrawn:       r.framesDrawn.Load(),
		DecodeFailures:    r.decodeFailures.Load(),
		Superseded:        r.superseded.Load(),
		RefreshRequests:   r.refreshRequests.Load(),
		RefreshCollapsed:  r.refreshCollapsed.Load(),
		LastFrameAt:       r.lastFrameAt,
		LastFrameSource:   r.lastSource,
		LastDecodeFailure: r.lastFailure,
	}
}

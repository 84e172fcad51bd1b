// Package poller fetches display directives and images from the TRMNL
// service and hands the images to the renderer.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/byod/internal/imagechan"
	"github.com/tinytelemetry/byod/internal/interrupt"
	"github.com/tinytelemetry/byod/internal/model"
	"github.com/tinytelemetry/byod/internal/trmnl"
)

// ErrMissingImageURL is returned when the server reports success but
// names no image. The renderer would have nothing to draw, so the poller
// stops.
var ErrMissingImageURL = errors.New("poller: success directive without image_url")

// APIClient abstracts the TRMNL calls the poller needs.
type APIClient interface {
	FetchDirective(ctx context.Context) (*trmnl.Response, error)
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Sender is the producing side of the image channel.
type Sender interface {
	Send(ctx context.Context, p model.Payload) error
}

// Waiter is the interruptible sleep between cycles.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) (interrupt.WakeReason, error)
}

// Config is the immutable runtime config of a Poller.
type Config struct {
	API             trmnl.Config
	DefaultInterval time.Duration
	Success         SuccessPredicate
}

// Option customizes a Poller.
type Option func(*Poller)

// WithClient replaces the TRMNL client built from Config.API.
func WithClient(c APIClient) Option {
	return func(p *Poller) { p.client = c }
}

// WithRecorder sends one record per cycle to r.
func WithRecorder(r model.CycleRecorder) Option {
	return func(p *Poller) { p.recorder = r }
}

// Poller runs the fetch side of the refresh loop.
type Poller struct {
	cfg      Config
	client   APIClient
	frames   Sender
	waiter   Waiter
	recorder model.CycleRecorder

	// sched is only touched by the goroutine running Run/PollOnce.
	sched Schedule

	mu     sync.RWMutex
	status Status
}

// New creates a poller. Unless WithClient is given, a TRMNL client is
// built from cfg.API.
func New(cfg Config, frames Sender, waiter Waiter, opts ...Option) (*Poller, error) {
	if frames == nil {
		return nil, errors.New("poller: image channel required")
	}
	if waiter == nil {
		return nil, errors.New("poller: wait signal required")
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = model.DefaultRefreshInterval
	}
	if cfg.Success == nil {
		cfg.Success = NotStatus(model.DefaultServerErrorCode)
	}

	p := &Poller{
		cfg:    cfg,
		frames: frames,
		waiter: waiter,
		sched:  Schedule{Interval: cfg.DefaultInterval, First: true},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		c, err := trmnl.NewClient(cfg.API)
		if err != nil {
			return nil, fmt.Errorf("poller: %w", err)
		}
		p.client = c
	}

	p.status.Interval = p.sched.Interval
	return p, nil
}

// Interval returns the wait that precedes the next cycle.
func (p *Poller) Interval() time.Duration {
	return p.sched.Interval
}

// Status returns a snapshot safe to read from any goroutine.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.status
	if s.LastCycle != nil {
		rec := *s.LastCycle
		s.LastCycle = &rec
	}
	return s
}

// PollOnce performs exactly one poll cycle and settles it. It returns a
// non-nil error only for fatal outcomes and cancellation.
func (p *Poller) PollOnce(ctx context.Context, trigger model.Trigger) error {
	start := time.Now()
	out := p.cycle(ctx)
	return p.settle(ctx, trigger, start, out)
}

// cycle runs steps 2-8 of a refresh: status request, decode, status check,
// image fetch and hand-off.
func (p *Poller) cycle(ctx context.Context) outcome {
	resp, err := p.client.FetchDirective(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return recoverable(model.OutcomeTransportError, "display request failed", err)
	}

	d, err := model.ParseDirective(resp.Body)
	if err != nil {
		out := recoverable(model.OutcomeMalformed, "malformed display response", err)
		out.rawBody = resp.Body
		out.httpCode = resp.StatusCode
		return out
	}

	if !p.cfg.Success(d.Status) {
		out := recoverable(model.OutcomeServerError, d.ErrorMessage("server reported an error without a message"), nil)
		out.directive = d
		out.httpCode = resp.StatusCode
		return out
	}

	if d.ImageURL == nil || *d.ImageURL == "" {
		out := fatal("success directive without image", ErrMissingImageURL)
		out.directive = d
		out.httpCode = resp.StatusCode
		return out
	}

	data, err := p.client.FetchImage(ctx, *d.ImageURL)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		out := fatal("image fetch failed", fmt.Errorf("fetching %s: %w", *d.ImageURL, err))
		out.directive = d
		out.httpCode = resp.StatusCode
		return out
	}

	payload := model.Payload{
		Data:      data,
		SourceURL: *d.ImageURL,
		FetchedAt: time.Now(),
	}
	if d.Filename != nil {
		payload.Filename = *d.Filename
	}

	if err := p.frames.Send(ctx, payload); err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		if errors.Is(err, imagechan.ErrClosed) {
			out := fatal("image channel closed", err)
			out.directive = d
			out.httpCode = resp.StatusCode
			return out
		}
		return cancelled(err)
	}

	return delivered(d, &payload, resp.StatusCode)
}

// settle is the single dispatch point for cycle outcomes: recoverable ones
// are logged and swallowed, fatal ones are returned, and only a delivered
// payload moves the schedule.
func (p *Poller) settle(ctx context.Context, trigger model.Trigger, start time.Time, out outcome) error {
	if out.kind == kindCancelled {
		return out.err
	}

	switch out.kind {
	case kindDelivered:
		if out.directive.RefreshRateCapped() {
			log.Printf("poller: refresh_rate %d out of range, capped to %ds", *out.directive.RefreshRate, model.MaxRefreshSeconds)
		}
		p.sched.Interval = out.directive.Interval(p.cfg.DefaultInterval)
		log.Printf("poller: image %s (%d bytes) queued, next refresh in %s",
			out.payload.SourceURL, len(out.payload.Data), p.sched.Interval)
	case kindRecoverable:
		switch out.class {
		case model.OutcomeMalformed:
			log.Printf("poller: %s (http %d): %v; body: %.512s", out.reason, out.httpCode, out.err, out.rawBody)
		case model.OutcomeServerError:
			log.Printf("poller: server error (status %d): %s", out.directive.Status, out.reason)
		default:
			log.Printf("poller: %s: %v", out.reason, out.err)
		}
	case kindFatal:
		log.Printf("poller: fatal: %s: %v", out.reason, out.err)
	}

	rec := p.record(trigger, start, out)
	p.publish(rec, out.directive)

	if out.kind == kindFatal {
		return out.err
	}
	return nil
}

func (p *Poller) record(trigger model.Trigger, start time.Time, out outcome) model.CycleRecord {
	rec := model.CycleRecord{
		ID:           uuid.NewString(),
		StartedAt:    start,
		Duration:     time.Since(start),
		Trigger:      trigger,
		HTTPStatus:   out.httpCode,
		Outcome:      out.class,
		NextInterval: p.sched.Interval,
	}
	switch {
	case out.kind == kindDelivered:
		rec.Message = "ok"
	case out.kind == kindRecoverable && out.class == model.OutcomeServerError:
		rec.Message = out.reason
	case out.err != nil:
		rec.Message = fmt.Sprintf("%s: %v", out.reason, out.err)
	default:
		rec.Message = out.reason
	}
	if out.directive != nil {
		status := out.directive.Status
		rec.DirectiveStatus = &status
		if out.directive.ImageURL != nil {
			rec.ImageURL = *out.directive.ImageURL
		}
	}
	if out.payload != nil {
		rec.PayloadBytes = len(out.payload.Data)
	}

	if p.recorder != nil {
		p.recorder.Record(rec)
	}
	return rec
}

func (p *Poller) publish(rec model.CycleRecord, d *model.Directive) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Cycles++
	p.status.Interval = p.sched.Interval
	p.status.LastCycle = &rec
	if d != nil {
		p.status.LastDirective = d
	}
}

func (p *Poller) publishNext(at time.Time) {
	p.mu.Lock()
	p.status.NextPollAt = at
	p.mu.Unlock()
}

// Package tui is the terminal frontend: it draws the presented frame as
// braille characters and forwards key presses to the renderer.
package tui

import (
	"context"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/byod/internal/display"
	"github.com/tinytelemetry/byod/internal/input"
	"github.com/tinytelemetry/byod/internal/model"
	"github.com/tinytelemetry/byod/internal/poller"
	"github.com/tinytelemetry/byod/internal/render"
)

// StatusSource reports the poller state.
type StatusSource interface {
	Status() poller.Status
}

// StatsSource reports the renderer counters.
type StatsSource interface {
	Stats() render.Stats
}

// Sources feed the status bar and the outcome chart. Any of them may be nil.
type Sources struct {
	Poller   StatusSource
	Renderer StatsSource
	History  model.HistoryReader
}

// Terminal is the Bubble Tea frontend.
type Terminal struct {
	*display.Canvas
	input.Queue

	keys    KeyMap
	sources Sources

	frames chan display.Frame
	ctx    context.Context
}

// New creates a terminal frontend for a width x height canvas.
func New(width, height int, refreshKeys []string) *Terminal {
	t := &Terminal{
		Canvas: display.NewCanvas(width, height),
		keys:   DefaultKeyMap(refreshKeys),
		frames: make(chan display.Frame, 1),
		ctx:    context.Background(),
	}
	t.OnPresent(t.offer)
	return t
}

// Attach sets the status sources. Call before Run.
func (t *Terminal) Attach(s Sources) {
	t.sources = s
}

// offer hands f to the UI without blocking the renderer. A frame the UI has
// not picked up yet is replaced.
func (t *Terminal) offer(f display.Frame) {
	for {
		select {
		case t.frames <- f:
			return
		default:
		}
		select {
		case <-t.frames:
		default:
		}
	}
}

func (t *Terminal) waitForFrame() tea.Cmd {
	ctx := t.ctx
	return func() tea.Msg {
		select {
		case f := <-t.frames:
			return frameMsg(f)
		case <-ctx.Done():
			return nil
		}
	}
}

func (t *Terminal) summary() Summary {
	var s Summary
	if t.sources.Poller != nil {
		st := t.sources.Poller.Status()
		s.Interval = st.Interval
		s.NextPollAt = st.NextPollAt
		s.Cycles = st.Cycles
		if st.LastCycle != nil {
			s.LastOutcome = st.LastCycle.Outcome
			s.LastMessage = st.LastCycle.Message
		}
	}
	if t.sources.Renderer != nil {
		s.FramesDrawn = t.sources.Renderer.Stats().FramesDrawn
	}
	return s
}

func (t *Terminal) outcomeCounts() map[model.Outcome]int64 {
	if t.sources.History == nil {
		return nil
	}
	counts, err := t.sources.History.OutcomeCounts()
	if err != nil {
		log.Printf("tui: outcome counts: %v", err)
		return nil
	}
	return counts
}

func (t *Terminal) collect(chart bool) tea.Msg {
	msg := statusMsg{summary: t.summary()}
	if chart {
		msg.counts = t.outcomeCounts()
	}
	return msg
}

func (t *Terminal) countsCmd() tea.Cmd {
	return func() tea.Msg { return countsMsg(t.outcomeCounts()) }
}

// Run owns the terminal until ctx is done.
func (t *Terminal) Run(ctx context.Context) error {
	t.ctx = ctx
	p := tea.NewProgram(newViewModel(t), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("terminal surface requires a real terminal")
		}
		return fmt.Errorf("error running terminal surface: %w", err)
	}
	return nil
}

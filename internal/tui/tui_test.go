package tui

import (
	"image"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/byod/internal/display"
	"github.com/tinytelemetry/byod/internal/input"
	"github.com/tinytelemetry/byod/internal/model"
	"github.com/tinytelemetry/byod/internal/poller"
)

func grayFill(w, h int, y uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = y
	}
	return g
}

func TestBraille_FullAndEmptyCells(t *testing.T) {
	assert.Equal(t, []string{"⣿⣿"}, Braille(grayFill(4, 4, 0), 2, 1))
	assert.Equal(t, []string{"⠀⠀"}, Braille(grayFill(4, 4, 0xff), 2, 1))
}

func TestBraille_DotPositions(t *testing.T) {
	g := grayFill(2, 4, 0xff)
	g.Pix[0] = 0 // (0,0)
	assert.Equal(t, []string{"⠁"}, Braille(g, 1, 1))

	g = grayFill(2, 4, 0xff)
	g.Pix[g.PixOffset(1, 3)] = 0
	assert.Equal(t, []string{"⢀"}, Braille(g, 1, 1))
}

func TestBraille_FitsAndKeepsAspect(t *testing.T) {
	lines := Braille(grayFill(800, 400, 0), 40, 10)
	require.Len(t, lines, 10)
	for _, l := range lines {
		assert.Equal(t, strings.Repeat("⣿", 40), l)
	}

	// 800x480 in a 40x40 cell area is width bound: 80x48 dots.
	lines = Braille(grayFill(800, 480, 0xff), 40, 40)
	assert.Len(t, lines, 12)
	assert.Equal(t, 40, len([]rune(lines[0])))
}

func TestBraille_Degenerate(t *testing.T) {
	assert.Nil(t, Braille(nil, 10, 10))
	assert.Nil(t, Braille(grayFill(4, 4, 0), 0, 10))
}

type stubPoller struct{ st poller.Status }

func (s stubPoller) Status() poller.Status { return s.st }

type stubHistory struct{ counts map[model.Outcome]int64 }

func (s stubHistory) RecentCycles(int) ([]model.CycleRecord, error) { return nil, nil }
func (s stubHistory) OutcomeCounts() (map[model.Outcome]int64, error) {
	return s.counts, nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_KeysBecomeInputEvents(t *testing.T) {
	term := New(800, 480, []string{"r"})
	m := newViewModel(term)

	m.Update(key("r"))
	m.Update(key("x"))
	m.Update(key("q"))

	assert.Equal(t, []input.Event{
		{Kind: input.KeyPress, Key: "r"},
		{Kind: input.KeyPress, Key: "x"},
		{Kind: input.Quit},
	}, term.Drain())
	assert.True(t, m.quitting)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, []input.Event{{Kind: input.Quit}}, term.Drain())
}

func TestModel_ChartToggleFetchesCounts(t *testing.T) {
	term := New(800, 480, nil)
	term.Attach(Sources{History: stubHistory{counts: map[model.Outcome]int64{model.OutcomeRendered: 7}}})
	m := newViewModel(term)

	_, cmd := m.Update(key("h"))
	require.NotNil(t, cmd)
	assert.True(t, m.showChart)
	assert.Nil(t, term.Drain(), "chart key stays local")

	m.Update(cmd())
	assert.Equal(t, int64(7), m.counts[model.OutcomeRendered])

	_, cmd = m.Update(key("h"))
	assert.Nil(t, cmd)
	assert.False(t, m.showChart)
}

func TestModel_FrameAndStatusMessages(t *testing.T) {
	term := New(8, 8, nil)
	next := time.Now().Add(time.Minute)
	term.Attach(Sources{Poller: stubPoller{st: poller.Status{
		Interval:   30 * time.Second,
		NextPollAt: next,
		Cycles:     3,
		LastCycle:  &model.CycleRecord{Outcome: model.OutcomeRendered},
	}}})
	m := newViewModel(term)

	m.Update(frameMsg(display.Frame{Image: grayFill(8, 8, 0), Version: 9}))
	assert.Equal(t, uint64(9), m.frame.Version)

	m.Update(term.collect(false))
	assert.Equal(t, int64(3), m.summary.Cycles)
	assert.Equal(t, model.OutcomeRendered, m.summary.LastOutcome)

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 10})
	view := m.View()
	assert.Contains(t, view, "TRMNL")
	assert.Contains(t, view, "rendered")
	assert.Contains(t, view, "every 30s")
	assert.Contains(t, view, "⣿")
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m := newViewModel(New(8, 8, nil))
	assert.NotEmpty(t, m.View())
}

func TestTerminal_OfferKeepsLatestFrame(t *testing.T) {
	term := New(4, 4, nil)
	term.offer(display.Frame{Version: 2})
	term.offer(display.Frame{Version: 3})

	msg := term.waitForFrame()()
	f, ok := msg.(frameMsg)
	require.True(t, ok)
	assert.Equal(t, uint64(3), f.Version)
}

func TestTerminal_PresentFeedsUI(t *testing.T) {
	term := New(4, 4, nil)
	require.Error(t, term.DrawImage([]byte("nope")))
	term.Present()

	select {
	case <-term.frames:
		t.Fatal("no new frame was presented")
	default:
	}
}

func TestRenderOutcomeChart(t *testing.T) {
	out := renderOutcomeChart(map[model.Outcome]int64{
		model.OutcomeRendered:    12,
		model.OutcomeServerError: 3,
	}, 80)
	assert.Contains(t, out, "Poll outcomes")
	assert.Contains(t, out, "rendered")
	assert.Contains(t, out, "12")

	assert.Contains(t, renderOutcomeChart(nil, 80), "No data available")
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/byod/internal/display"
	"github.com/tinytelemetry/byod/internal/input"
	"github.com/tinytelemetry/byod/internal/model"
)

const statusInterval = time.Second

// Summary is the state shown in the status bar.
type Summary struct {
	Interval    time.Duration
	NextPollAt  time.Time
	Cycles      int64
	LastOutcome model.Outcome
	LastMessage string
	FramesDrawn int64
}

type (
	frameMsg  display.Frame
	statusMsg struct {
		summary Summary
		counts  map[model.Outcome]int64
	}
	countsMsg map[model.Outcome]int64
)

// viewModel is the Bubble Tea model of the terminal frontend.
type viewModel struct {
	term *Terminal
	keys KeyMap

	frame     display.Frame
	summary   Summary
	counts    map[model.Outcome]int64
	showChart bool
	quitting  bool

	width  int
	height int
}

func newViewModel(t *Terminal) *viewModel {
	return &viewModel{
		term:  t,
		keys:  t.keys,
		frame: t.Frame(),
	}
}

func (m *viewModel) Init() tea.Cmd {
	return tea.Batch(m.term.waitForFrame(), m.pollStatus(false))
}

func (m *viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case frameMsg:
		m.frame = display.Frame(msg)
		return m, m.term.waitForFrame()

	case statusMsg:
		m.summary = msg.summary
		if msg.counts != nil {
			m.counts = msg.counts
		}
		chart := m.showChart
		return m, tea.Tick(statusInterval, func(time.Time) tea.Msg { return m.term.collect(chart) })

	case countsMsg:
		m.counts = msg
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
			m.quitting = true
			m.term.Push(input.Event{Kind: input.Quit})
		case key.Matches(msg, m.keys.Chart):
			m.showChart = !m.showChart
			if m.showChart {
				return m, m.term.countsCmd()
			}
		default:
			m.term.Push(input.Event{Kind: input.KeyPress, Key: strings.ToLower(msg.String())})
		}
	}
	return m, nil
}

func (m *viewModel) pollStatus(chart bool) tea.Cmd {
	return func() tea.Msg { return m.term.collect(chart) }
}

func (m *viewModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting…"
	}

	status := m.renderStatusLine()
	rows := m.height - 1

	var chart string
	if m.showChart {
		chart = renderOutcomeChart(m.counts, m.width)
		rows -= lipgloss.Height(chart)
	}

	var frame string
	if rows > 0 {
		lines := Braille(m.frame.Image, m.width, rows)
		frame = lipgloss.Place(m.width, rows, lipgloss.Center, lipgloss.Center,
			paperStyle.Render(strings.Join(lines, "\n")))
	}

	parts := []string{frame}
	if chart != "" {
		parts = append(parts, chart)
	}
	parts = append(parts, status)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderStatusLine renders the bottom bar: schedule on the left, help on
// the right.
func (m *viewModel) renderStatusLine() string {
	s := m.summary
	left := " TRMNL"
	if m.quitting {
		left += " • quitting"
	} else {
		if s.Cycles > 0 {
			left += fmt.Sprintf(" • %s", s.LastOutcome)
		}
		if !s.NextPollAt.IsZero() {
			left += fmt.Sprintf(" • next in %s", time.Until(s.NextPollAt).Round(time.Second))
		}
		left += fmt.Sprintf(" • every %s", s.Interval)
	}

	right := m.keys.helpLine() + " "
	if m.width < 80 {
		right = "q: quit "
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return statusStyle.Width(m.width).Render(left)
	}
	return statusStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the terminal key bindings with built-in help text.
type KeyMap struct {
	Quit      key.Binding
	ForceQuit key.Binding
	Refresh   key.Binding
	Chart     key.Binding
}

// DefaultKeyMap returns the default key bindings. refreshKeys are the keys
// the renderer treats as early-refresh requests; they only drive the help
// text here.
func DefaultKeyMap(refreshKeys []string) KeyMap {
	if len(refreshKeys) == 0 {
		refreshKeys = []string{"r"}
	}
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Refresh: key.NewBinding(
			key.WithKeys(refreshKeys...),
			key.WithHelp(strings.Join(refreshKeys, "/"), "refresh now"),
		),
		Chart: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "history chart"),
		),
	}
}

// helpLine renders the short help for the status bar.
func (k KeyMap) helpLine() string {
	parts := make([]string, 0, 3)
	for _, b := range []key.Binding{k.Refresh, k.Chart, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

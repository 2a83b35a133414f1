package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the dashboard key bindings with built-in help text.
type KeyMap struct {
	Quit         key.Binding
	ForceQuit    key.Binding
	Up           key.Binding
	Down         key.Binding
	Pause        key.Binding
	IntervalUp   key.Binding
	IntervalDown key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause/resume"),
		),
		IntervalUp: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "faster refresh"),
		),
		IntervalDown: key.NewBinding(
			key.WithKeys("U"),
			key.WithHelp("U", "slower refresh"),
		),
	}
}

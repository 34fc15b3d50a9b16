package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keyboard bindings of the chat page
type KeyMap struct {
	Send       key.Binding
	Voice      key.Binding
	Graph      key.Binding
	CloseGraph key.Binding
	New        key.Binding
	Quit       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Voice: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "voice"),
		),
		Graph: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "graph"),
		),
		CloseGraph: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close graph"),
		),
		New: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new chat"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "scroll down"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Voice, k.Graph, k.New, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Voice, k.Graph, k.CloseGraph},
		{k.New, k.PageUp, k.PageDown, k.Quit},
	}
}

package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the editor's key bindings.
type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Cycle   key.Binding
	Back    key.Binding
	Clear   key.Binding
	Save    key.Binding
	Submit  key.Binding
	Discard key.Binding
	Help    key.Binding
	Quit    key.Binding

	// Confirmation prompts
	Yes     key.Binding
	No      key.Binding
	Delete  key.Binding
	Archive key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab/↓", "next field"),
		),
		Prev: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab/↑", "previous field"),
		),
		Cycle: key.NewBinding(
			key.WithKeys(" ", "right"),
			key.WithHelp("space/→", "next result"),
		),
		Back: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "previous result"),
		),
		Clear: key.NewBinding(
			key.WithKeys("backspace", "delete"),
			key.WithHelp("del", "clear result"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save now"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "submit"),
		),
		Discard: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "discard"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "save & quit"),
		),
		Yes: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y", "confirm"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n", "cancel"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "archive"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Cycle, k.Save, k.Submit, k.Discard, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev},
		{k.Cycle, k.Back, k.Clear},
		{k.Save, k.Submit, k.Discard},
		{k.Help, k.Quit},
	}
}

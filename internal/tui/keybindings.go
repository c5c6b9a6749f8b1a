package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the assessment editor's key bindings.
type KeyMap struct {
	Begin  key.Binding
	Submit key.Binding
	Skip   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap provides the default key bindings.
var DefaultKeyMap = KeyMap{
	Begin: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "start timer"),
	),
	Submit: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "submit"),
	),
	Skip: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc esc", "skip assessment"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// helpLine renders bindings as "key action · key action".
func helpLine(bindings ...key.Binding) string {
	var out string
	for i, b := range bindings {
		if i > 0 {
			out += " · "
		}
		h := b.Help()
		out += h.Key + " " + h.Desc
	}
	return DimStyle.Render(out)
}

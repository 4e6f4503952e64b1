package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// keyMap holds the chat key bindings.
type keyMap struct {
	Submit     key.Binding
	Cancel     key.Binding
	Clear      key.Binding
	NextFilter key.Binding
	PrevFilter key.Binding
	PrevIdea   key.Binding
	NextIdea   key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		NextFilter: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "filter"),
		),
		PrevFilter: key.NewBinding(
			key.WithKeys("shift+tab"),
		),
		PrevIdea: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑/↓", "ideas"),
		),
		NextIdea: key.NewBinding(
			key.WithKeys("down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup/pgdn", "scroll"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer. Ideas are only
// offered on an empty conversation.
func (k keyMap) ShortHelp(empty bool) []key.Binding {
	bindings := []key.Binding{k.Submit, k.Cancel, k.Clear, k.NextFilter}
	if empty {
		bindings = append(bindings, k.PrevIdea)
	} else {
		bindings = append(bindings, k.PageUp)
	}
	return append(bindings, k.Quit)
}

// HelpString formats bindings as "[key] help" entries.
func HelpString(bindings []key.Binding) string {
	entries := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		entries = append(entries, fmt.Sprintf("[%s] %s", h.Key, h.Desc))
	}
	return strings.Join(entries, "  ")
}

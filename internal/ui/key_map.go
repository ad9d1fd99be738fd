package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	toggle  key.Binding
	enter   key.Binding
	yes     key.Binding
	no      key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	bind := func(help string, keys ...string) key.Binding {
		return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
	}
	return keyMap{
		up:      bind("up", "up", "k"),
		down:    bind("down", "down", "j"),
		toggle:  key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "toggle role")),
		enter:   bind("continue", "enter"),
		yes:     bind("start", "y"),
		no:      bind("back", "n", "esc"),
		restart: bind("restart", "r"),
		quit:    bind("quit", "q", "ctrl+c"),
	}
}

// helpFor returns the bindings shown under view.
func (k keyMap) helpFor(view ViewState) []key.Binding {
	switch view {
	case RoleListView:
		return []key.Binding{k.up, k.down, k.toggle, k.enter, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.no, k.quit}
	case RunningView:
		return []key.Binding{k.quit}
	case ResultView:
		return []key.Binding{k.restart, k.quit}
	}
	return nil
}

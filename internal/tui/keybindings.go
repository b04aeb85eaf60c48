package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Action identifies what a key press does in the current focus.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionOpen
	ActionSend
	ActionSwitchFocus
	ActionBack
	ActionScrollUp
	ActionScrollDown
	ActionResubmit
	ActionRefresh
	ActionNewChat
	ActionOpenSite
	ActionLogout
	ActionSearch
	ActionToggle
	ActionConfirm
)

// KeyMap holds the TUI keybindings.
type KeyMap struct {
	Quit        key.Binding
	ForceQuit   key.Binding
	Enter       key.Binding
	SwitchFocus key.Binding
	Back        key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	Resubmit    key.Binding
	Refresh     key.Binding
	NewChat     key.Binding
	OpenSite    key.Binding
	Logout      key.Binding
	Toggle      key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:        key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Enter:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/send")),
		SwitchFocus: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		Back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		ScrollUp:    key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "older")),
		ScrollDown:  key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "newer")),
		Resubmit:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "retry")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		NewChat:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new chat")),
		OpenSite:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open site")),
		Logout:      key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logout")),
		Toggle:      key.NewBinding(key.WithKeys("left", "right", "h", "l"), key.WithHelp("←/→", "select")),
	}
}

// Resolve maps a key press to an action for the given focus. Keys that
// resolve to ActionNone belong to the focused component.
func (k KeyMap) Resolve(focus Focus, msg tea.KeyMsg) Action {
	if key.Matches(msg, k.ForceQuit) {
		return ActionQuit
	}

	switch focus {
	case FocusModal:
		switch {
		case key.Matches(msg, k.Toggle), key.Matches(msg, k.SwitchFocus):
			return ActionToggle
		case key.Matches(msg, k.Enter):
			return ActionConfirm
		case key.Matches(msg, k.Back):
			return ActionBack
		}
		return ActionNone

	case FocusSearch:
		switch {
		case key.Matches(msg, k.Enter):
			return ActionSearch
		case key.Matches(msg, k.Back):
			return ActionBack
		}
		return ActionNone
	}

	// shared by the channel list and the composer
	switch {
	case key.Matches(msg, k.SwitchFocus):
		return ActionSwitchFocus
	case key.Matches(msg, k.ScrollUp):
		return ActionScrollUp
	case key.Matches(msg, k.ScrollDown):
		return ActionScrollDown
	case key.Matches(msg, k.Resubmit):
		return ActionResubmit
	}

	if focus == FocusComposer {
		switch {
		case key.Matches(msg, k.Enter):
			return ActionSend
		case key.Matches(msg, k.Back):
			return ActionBack
		}
		return ActionNone
	}

	switch {
	case key.Matches(msg, k.Enter):
		return ActionOpen
	case key.Matches(msg, k.Quit):
		return ActionQuit
	case key.Matches(msg, k.Refresh):
		return ActionRefresh
	case key.Matches(msg, k.NewChat):
		return ActionNewChat
	case key.Matches(msg, k.OpenSite):
		return ActionOpenSite
	case key.Matches(msg, k.Logout):
		return ActionLogout
	}
	return ActionNone
}

// ShortHelp returns the bindings shown in the status line for a focus.
func (k KeyMap) ShortHelp(focus Focus) []key.Binding {
	switch focus {
	case FocusComposer:
		return []key.Binding{k.Enter, k.SwitchFocus, k.ScrollUp, k.Resubmit, k.Back}
	case FocusSearch:
		return []key.Binding{k.Enter, k.Back}
	case FocusModal:
		return []key.Binding{k.Toggle, k.Enter, k.Back}
	default:
		return []key.Binding{k.Enter, k.SwitchFocus, k.Refresh, k.NewChat, k.OpenSite, k.Logout, k.Quit}
	}
}

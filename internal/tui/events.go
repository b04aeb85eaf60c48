package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/dtfchat/internal/auth"
	"github.com/hay-kot/dtfchat/internal/resilient"
)

const busBuffer = 64

// toastMsg carries a notification into the update loop.
type toastMsg struct {
	n resilient.Notification
}

// sessionChangedMsg is sent on every session transition.
type sessionChangedMsg struct {
	change auth.Change
}

// loadingMsg mirrors the global loading indicator.
type loadingMsg struct {
	active bool
	label  string
}

// refreshedMsg is sent after a background poll changed state.
type refreshedMsg struct{}

// Bus moves events raised on service goroutines into the Bubble Tea loop.
// Sends never block; events are dropped when the buffer is full.
type Bus struct {
	ch chan tea.Msg
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{ch: make(chan tea.Msg, busBuffer)}
}

// Notify implements resilient.Notifier.
func (b *Bus) Notify(n resilient.Notification) {
	b.send(toastMsg{n: n})
}

// SessionChanged forwards an auth transition.
func (b *Bus) SessionChanged(c auth.Change) {
	b.send(sessionChangedMsg{change: c})
}

// Loading forwards a global loading change.
func (b *Bus) Loading(active bool, label string) {
	b.send(loadingMsg{active: active, label: label})
}

// Refreshed signals that a background poll updated the stores.
func (b *Bus) Refreshed() {
	b.send(refreshedMsg{})
}

func (b *Bus) send(msg tea.Msg) {
	select {
	case b.ch <- msg:
	default:
	}
}

// wait returns a command that blocks until the next bus event.
func (b *Bus) wait() tea.Cmd {
	return func() tea.Msg {
		return <-b.ch
	}
}

// toastExpiredMsg removes the toast with the given id.
type toastExpiredMsg struct {
	id int
}

// toast is a notification on screen.
type toast struct {
	id int
	n  resilient.Notification
}

const defaultToastDuration = 5 * time.Second

func scheduleToastExpiry(t toast) tea.Cmd {
	d := t.n.Duration
	if d <= 0 {
		d = defaultToastDuration
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: t.id}
	})
}

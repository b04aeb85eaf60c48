package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/state"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 6, "hello…"},
		{"cyrillic", "привет мир", 7, "привет…"},
		{"tiny width untouched", "hello", 1, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.width)
			assert.Equal(t, tt.want, got)
			if tt.width > 1 {
				assert.LessOrEqual(t, lipgloss.Width(got), tt.width)
			}
		})
	}
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		name string
		ch   chat.Channel
		want string
	}{
		{"no message", chat.Channel{}, "no messages yet"},
		{"first line", chat.Channel{LastMessage: &chat.Message{Text: "one\ntwo"}}, "one"},
		{"media only", chat.Channel{LastMessage: &chat.Message{Media: []chat.MediaRef{{Kind: chat.MediaImage}}}}, "[image]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastLine(tt.ch))
		})
	}
}

func TestModal(t *testing.T) {
	m := NewModal("Log out", "Forget the saved session?")

	assert.True(t, m.Visible())
	assert.True(t, m.ConfirmSelected())

	m.ToggleSelection()
	assert.False(t, m.ConfirmSelected())

	out := m.Render(80, 24)
	assert.Contains(t, out, "Log out")
	assert.Contains(t, out, "Cancel")
	assert.Equal(t, 24, lipgloss.Height(out))

	assert.False(t, Modal{}.Visible())
}

func TestMessagesView(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local).Unix()
	alice := chat.UserSummary{ID: "1", DisplayName: "alice"}
	me := chat.UserSummary{ID: "2", DisplayName: "me"}

	v := NewMessagesView()
	v.SetSize(60, 40)
	v.SetSelf(me.ID)

	t.Run("empty", func(t *testing.T) {
		v.SetMessages(nil, nil, nil, false, false)
		assert.Contains(t, v.View(), "no messages")
	})

	t.Run("renders authors, placeholders and typing", func(t *testing.T) {
		msgs := []chat.Message{
			{ID: "10", Text: "hi there", Author: alice, CreatedAt: base},
			{ID: chat.ID(chat.TmpIDPrefix + "a"), TmpID: chat.TmpIDPrefix + "a", Text: "pending reply", Author: me, CreatedAt: base + 60},
			{ID: chat.ID(chat.TmpIDPrefix + "b"), TmpID: chat.TmpIDPrefix + "b", Text: "broken reply", Author: me, CreatedAt: base + 120},
		}
		outbound := []state.Outbound{
			{LocalID: chat.TmpIDPrefix + "a", State: state.Sending},
			{LocalID: chat.TmpIDPrefix + "b", State: state.Failed},
		}

		v.SetMessages(msgs, outbound, []chat.UserSummary{alice}, true, false)
		out := v.View()

		assert.Contains(t, out, "hi there")
		assert.Contains(t, out, "sending")
		assert.Contains(t, out, "ctrl+r to retry")
		assert.Contains(t, out, "alice typing")
		assert.Contains(t, out, "pgup for older messages")
		assert.Equal(t, 1, strings.Count(out, "Sun, 01 Mar 2026"))
	})

	t.Run("clear", func(t *testing.T) {
		v.Clear()
		assert.NotContains(t, v.View(), "hi there")
	})
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/dtfchat/internal/resilient"
	"github.com/hay-kot/dtfchat/internal/styles"
)

// Focus identifies the pane receiving key presses.
type Focus int

const (
	FocusChannels Focus = iota
	FocusComposer
	FocusSearch
	FocusModal
)

func (f Focus) String() string {
	switch f {
	case FocusChannels:
		return "channels"
	case FocusComposer:
		return "composer"
	case FocusSearch:
		return "search"
	case FocusModal:
		return "modal"
	default:
		return "unknown"
	}
}

func (m Model) channelPane() string {
	style := paneStyle
	if m.focus == FocusChannels {
		style = focusedPaneStyle
	}

	title := "Chats"
	if n := m.service.Channels().TotalUnreadCount(); n > 0 {
		title += " " + m.delegate.Styles.Unread.Render(fmt.Sprintf("(%d)", n))
	}

	content := m.list.View()
	if !m.authed {
		content = previewStyle.Render(wrap("Waiting for a DTF session. Log in on the site with the bridge userscript installed, then press r.", channelPaneWidth-4))
	}

	return style.
		Width(channelPaneWidth - 2).
		Height(max(m.height-4, 1)).
		Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}

func (m Model) chatPane() string {
	width := max(m.width-channelPaneWidth, 10)
	height := max(m.height-4, 1)

	style := paneStyle
	if m.focus != FocusChannels {
		style = focusedPaneStyle
	}

	if m.focus == FocusSearch {
		return style.Width(width - 2).Height(height).Render(m.searchView())
	}

	id := m.service.Messages().ChannelID()
	if id.IsZero() {
		hint := "Select a chat and press enter, or press n to start a new one."
		return style.Width(width - 2).Height(height).Render(previewStyle.Render(hint))
	}

	title := id.String()
	if ch, ok := m.service.Channels().Channel(id); ok {
		title = ch.Title
	}

	composer := m.composer.View()
	if m.service.Messages().IsUploading() {
		composer = lipgloss.JoinVertical(lipgloss.Left, m.spinner.View()+" uploading…", composer)
	}

	return style.Width(width - 2).Height(height).Render(lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render(title),
		m.msgView.View(),
		styles.DividerStyle.Render(strings.Repeat("─", max(width-4, 1))),
		composer,
	))
}

func (m Model) searchView() string {
	lines := []string{titleStyle.Render("New chat"), "", m.search.View(), ""}

	switch {
	case m.searching:
		lines = append(lines, m.spinner.View()+" searching…")
	case m.searchErr != nil:
		lines = append(lines, toastErrorStyle.Render(m.searchErr.Error()))
	case m.lastQuery != "" && len(m.results) == 0:
		lines = append(lines, previewStyle.Render("no users found"))
	}

	for i, u := range m.results {
		line := "  " + u.DisplayName
		if i == m.resultIdx {
			line = selectedStyle.Render("> " + u.DisplayName)
		}
		lines = append(lines, line)
	}

	if len(m.results) > 0 {
		lines = append(lines, "", previewStyle.Render("↑/↓ select  enter start chat"))
	}
	return strings.Join(lines, "\n")
}

// statusLine shows the newest toast, the loading spinner, or key help.
func (m Model) statusLine() string {
	if n := len(m.toasts); n > 0 {
		t := m.toasts[n-1].n
		text := t.Title
		if t.Message != "" {
			text += ": " + t.Message
		}
		switch t.Level {
		case resilient.LevelError:
			return toastErrorStyle.Render(iconFailed + " " + text)
		case resilient.LevelWarning:
			return toastWarnStyle.Render(text)
		default:
			return toastInfoStyle.Render(text)
		}
	}

	if m.loading {
		return statusStyle.Render(m.spinner.View() + " " + m.loadingText)
	}

	if m.authErr != nil && !m.authed {
		return toastWarnStyle.Render(m.authErr.Error())
	}

	return statusStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp(m.focus)))
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/state"
	"github.com/hay-kot/dtfchat/internal/styles"
)

// MessagesView renders the open channel's messages in a scrollable viewport.
// It follows the newest message unless the user has scrolled up.
type MessagesView struct {
	vp       viewport.Model
	self     chat.ID
	messages []chat.Message
	outbound map[string]state.Outbound
	typing   []chat.UserSummary
	hasMore  bool
	loading  bool
}

// NewMessagesView creates a new messages view.
func NewMessagesView() *MessagesView {
	return &MessagesView{vp: viewport.New(0, 0)}
}

// SetSelf sets the id used to highlight the user's own messages.
func (v *MessagesView) SetSelf(id chat.ID) {
	v.self = id
}

// SetSize sets the viewport dimensions.
func (v *MessagesView) SetSize(width, height int) {
	v.vp.Width = width
	v.vp.Height = max(height, 1)
	v.render(v.vp.AtBottom())
}

// SetMessages replaces the rendered content. outbound is used to label
// placeholders with their send state.
func (v *MessagesView) SetMessages(msgs []chat.Message, outbound []state.Outbound, typing []chat.UserSummary, hasMore, loading bool) {
	follow := v.vp.AtBottom() || len(v.messages) == 0
	grewAtTop := len(v.messages) > 0 && len(msgs) > len(v.messages) && msgs[0].ID != v.messages[0].ID

	prevLines := v.vp.TotalLineCount()

	v.messages = msgs
	v.typing = typing
	v.hasMore = hasMore
	v.loading = loading
	v.outbound = make(map[string]state.Outbound, len(outbound))
	for _, o := range outbound {
		v.outbound[o.LocalID] = o
	}

	v.render(follow)

	// keep the same message under the cursor when older history is prepended
	if grewAtTop && !follow {
		v.vp.SetYOffset(v.vp.YOffset + v.vp.TotalLineCount() - prevLines)
	}
}

// Clear removes all content.
func (v *MessagesView) Clear() {
	v.messages = nil
	v.outbound = nil
	v.typing = nil
	v.hasMore = false
	v.vp.SetContent("")
	v.vp.GotoTop()
}

// AtTop reports whether the oldest loaded message is visible.
func (v *MessagesView) AtTop() bool {
	return v.vp.AtTop()
}

// Update forwards scroll keys and mouse events to the viewport.
func (v *MessagesView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	v.vp, cmd = v.vp.Update(msg)
	return cmd
}

// View renders the viewport.
func (v *MessagesView) View() string {
	return v.vp.View()
}

func (v *MessagesView) render(follow bool) {
	v.vp.SetContent(v.content())
	if follow {
		v.vp.GotoBottom()
	}
}

func (v *MessagesView) content() string {
	if len(v.messages) == 0 {
		if v.loading {
			return styles.TimestampStyle.Render("loading…")
		}
		return styles.TimestampStyle.Render("no messages")
	}

	width := max(v.vp.Width-2, 10)
	var b strings.Builder

	switch {
	case v.loading:
		b.WriteString(styles.TimestampStyle.Render("loading older messages…") + "\n\n")
	case v.hasMore:
		b.WriteString(styles.TimestampStyle.Render("pgup for older messages") + "\n\n")
	}

	var lastDay string
	for i, m := range v.messages {
		day := m.Time().Format("Mon, 02 Jan 2006")
		if day != lastDay {
			b.WriteString(styles.DividerStyle.Render("── "+day+" ──") + "\n")
			lastDay = day
		}

		b.WriteString(v.header(m) + "\n")
		b.WriteString(lipgloss.NewStyle().Width(width).PaddingLeft(2).Render(body(m)))
		if i < len(v.messages)-1 {
			b.WriteString("\n")
		}
	}

	if len(v.typing) > 0 {
		names := make([]string, 0, len(v.typing))
		for _, u := range v.typing {
			names = append(names, u.DisplayName)
		}
		b.WriteString("\n\n" + typingStyle.Render(strings.Join(names, ", ")+" typing…"))
	}

	return b.String()
}

func (v *MessagesView) header(m chat.Message) string {
	author := styles.AuthorStyle.Render(m.Author.DisplayName)
	if m.Author.ID == v.self && !v.self.IsZero() {
		author = styles.SelfStyle.Render(m.Author.DisplayName)
	}

	line := author + " " + styles.TimestampStyle.Render(m.Time().Format(time.Kitchen))

	if m.IsPlaceholder() {
		o, ok := v.outbound[m.TmpID]
		switch {
		case ok && o.State == state.Failed:
			line += " " + styles.FailedStyle.Render(iconFailed+" failed, ctrl+r to retry")
		case ok:
			line += " " + styles.PendingStyle.Render(iconPending+" "+o.State.String())
		default:
			line += " " + styles.PendingStyle.Render(iconPending)
		}
	}
	return line
}

func body(m chat.Message) string {
	parts := make([]string, 0, 1+len(m.Media))
	if text := strings.TrimSpace(m.Text); text != "" {
		parts = append(parts, text)
	}
	for _, media := range m.Media {
		parts = append(parts, styles.TimestampStyle.Render(fmt.Sprintf("[%s] %s", media.Kind, media.PreviewURL())))
	}
	return strings.Join(parts, "\n")
}

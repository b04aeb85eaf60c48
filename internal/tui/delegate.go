package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/styles"
)

// ChannelItem wraps a channel for the list component.
type ChannelItem struct {
	Channel chat.Channel
}

// FilterValue returns the value used for filtering.
func (i ChannelItem) FilterValue() string {
	return i.Channel.Title
}

// ChannelDelegate handles rendering of channel items in the list.
type ChannelDelegate struct {
	Styles ChannelDelegateStyles
	// Active is the open channel, marked with a dot.
	Active chat.ID
}

// ChannelDelegateStyles defines the styles for the delegate.
type ChannelDelegateStyles struct {
	Normal   lipgloss.Style
	Selected lipgloss.Style
	Unread   lipgloss.Style
	Preview  lipgloss.Style
}

// DefaultChannelDelegateStyles returns the default styles.
func DefaultChannelDelegateStyles() ChannelDelegateStyles {
	return ChannelDelegateStyles{
		Normal:   normalStyle,
		Selected: selectedStyle,
		Unread:   styles.UnreadStyle,
		Preview:  previewStyle,
	}
}

// NewChannelDelegate creates a new channel delegate with default styles.
func NewChannelDelegate() ChannelDelegate {
	return ChannelDelegate{
		Styles: DefaultChannelDelegateStyles(),
	}
}

// Height returns the height of each item.
func (d ChannelDelegate) Height() int {
	return 2
}

// Spacing returns the spacing between items.
func (d ChannelDelegate) Spacing() int {
	return 1
}

// Update handles item updates.
func (d ChannelDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render renders a single item.
func (d ChannelDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	channelItem, ok := item.(ChannelItem)
	if !ok {
		return
	}

	ch := channelItem.Channel
	width := max(m.Width()-4, 8)

	marker := "  "
	if index == m.Index() {
		marker = "> "
	}
	if ch.ID == d.Active {
		marker = iconDot + " "
	}

	badge := ""
	if ch.UnreadCount > 0 {
		badge = " " + d.Styles.Unread.Render(fmt.Sprintf("(%d)", ch.UnreadCount))
	}

	titleStyle := d.Styles.Normal
	if index == m.Index() {
		titleStyle = d.Styles.Selected
	}
	title := truncate(ch.Title, width-lipgloss.Width(badge))

	_, _ = fmt.Fprintf(w, "%s%s%s\n", marker, titleStyle.Render(title), badge)
	_, _ = fmt.Fprintf(w, "  %s", d.Styles.Preview.Render(truncate(lastLine(ch), width)))
}

func lastLine(ch chat.Channel) string {
	if ch.LastMessage == nil {
		return "no messages yet"
	}

	text := strings.TrimSpace(ch.LastMessage.Text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if text == "" && len(ch.LastMessage.Media) > 0 {
		text = fmt.Sprintf("[%s]", ch.LastMessage.Media[0].Kind)
	}
	return text
}

// truncate shortens s to n display cells with an ellipsis.
func truncate(s string, n int) string {
	if n <= 1 || lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

package tui

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/dtfchat/internal/auth"
	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/core/session"
	"github.com/hay-kot/dtfchat/internal/messenger"
	"github.com/hay-kot/dtfchat/internal/resilient"
	"github.com/hay-kot/dtfchat/internal/state"
	"github.com/hay-kot/dtfchat/pkg/executil"
)

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	service *messenger.Service
	bus     *Bus
	keys    KeyMap
	opener  executil.Executor

	focus     Focus
	prevFocus Focus

	list     list.Model
	delegate ChannelDelegate
	msgView  *MessagesView
	composer textarea.Model
	search   textinput.Model
	help     help.Model
	spinner  spinner.Model
	modal    Modal

	results     []chat.UserSummary
	resultIdx   int
	lastQuery   string
	searchErr   error
	searching   bool
	loading     bool
	loadingText string
	authed      bool
	authErr     error

	toasts    []toast
	nextToast int

	width  int
	height int
}

// Options configures the TUI.
type Options struct {
	// Bus receives service events. It must be installed as the service notifier.
	Bus *Bus
	// Opener runs the browser. Defaults to executil.RealExecutor.
	Opener executil.Executor
}

// Messages produced by commands.
type (
	initializedMsg  struct{ err error }
	channelsMsg     struct{ err error }
	channelOpenMsg  struct{ err error }
	historyMsg      struct{ err error }
	sentMsg         struct{ err error }
	searchResultMsg struct {
		query string
		users []chat.UserSummary
		err   error
	}
	actionDoneMsg struct {
		title string
		err   error
	}
)

// New creates a new TUI model. Cancelling ctx stops background refresh.
func New(ctx context.Context, service *messenger.Service, opts Options) Model {
	ctx, cancel := context.WithCancel(ctx)

	bus := opts.Bus
	if bus == nil {
		bus = NewBus()
	}
	opener := opts.Opener
	if opener == nil {
		opener = &executil.RealExecutor{}
	}

	delegate := NewChannelDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.FilterInput.Prompt = "Filter: "
	l.DisableQuitKeybindings()

	composer := textarea.New()
	composer.Placeholder = "Write a message…"
	composer.ShowLineNumbers = false
	composer.Prompt = ""
	composer.SetHeight(composerHeight)
	composer.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")

	search := textinput.New()
	search.Prompt = "Find user: "
	search.Placeholder = "name"
	search.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		cancel:   cancel,
		service:  service,
		bus:      bus,
		keys:     DefaultKeyMap(),
		opener:   opener,
		focus:    FocusChannels,
		list:     l,
		delegate: delegate,
		msgView:  NewMessagesView(),
		composer: composer,
		search:   search,
		help:     help.New(),
		spinner:  sp,
	}
}

// Init starts session acquisition and background refresh.
func (m Model) Init() tea.Cmd {
	svc, bus, ctx := m.service, m.bus, m.ctx

	svc.Auth().OnChange(bus.SessionChanged)
	svc.Caller().OnGlobalLoading(bus.Loading)

	return tea.Batch(
		bus.wait(),
		m.spinner.Tick,
		func() tea.Msg {
			err := svc.Initialize(ctx)
			if err == nil {
				err = svc.LoadChannels(ctx)
			}
			return initializedMsg{err: err}
		},
		func() tea.Msg {
			go svc.AutoRefresh(ctx, bus.Refreshed)
			return nil
		},
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case toastMsg:
		t := toast{id: m.nextToast, n: msg.n}
		m.nextToast++
		m.toasts = append(m.toasts, t)
		return m, tea.Batch(m.bus.wait(), scheduleToastExpiry(t))

	case toastExpiredMsg:
		m.toasts = slices.DeleteFunc(m.toasts, func(t toast) bool { return t.id == msg.id })
		return m, nil

	case loadingMsg:
		m.loading = msg.active
		m.loadingText = msg.label
		return m, m.bus.wait()

	case sessionChangedMsg:
		return m.handleSessionChange(msg.change)

	case refreshedMsg:
		m.sync()
		return m, m.bus.wait()

	case initializedMsg:
		m.authed = m.service.Auth().IsAuthenticated()
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.authErr = msg.err
			log.Debug().Err(msg.err).Msg("tui initialization incomplete")
		}
		m.sync()
		return m, nil

	case channelsMsg, historyMsg:
		m.sync()
		return m, nil

	case channelOpenMsg:
		m.sync()
		if msg.err == nil {
			return m, m.setFocus(FocusComposer)
		}
		return m, nil

	case sentMsg:
		m.sync()
		if msg.err != nil && !notified(msg.err) {
			return m, m.localToast(resilient.LevelWarning, "Message not sent", msg.err)
		}
		return m, nil

	case searchResultMsg:
		m.searching = false
		if msg.query != strings.TrimSpace(m.search.Value()) {
			return m, nil
		}
		m.lastQuery = msg.query
		m.results = msg.users
		m.resultIdx = 0
		m.searchErr = msg.err
		return m, nil

	case actionDoneMsg:
		m.sync()
		if msg.err != nil && !notified(msg.err) {
			return m, m.localToast(resilient.LevelError, msg.title, msg.err)
		}
		return m, nil

	case tea.MouseMsg:
		return m, m.msgView.Update(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleSessionChange(c auth.Change) (tea.Model, tea.Cmd) {
	wasAuthed := m.authed
	m.authed = c.Authenticated()
	m.authErr = c.Err

	cmds := []tea.Cmd{m.bus.wait()}
	switch {
	case m.authed && !wasAuthed:
		cmds = append(cmds, m.loadChannels())
	case !m.authed:
		m.msgView.Clear()
		m.results = nil
		cmds = append(cmds, m.setFocus(FocusChannels))
	}
	m.sync()
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// the list filter owns every key while typing
	if m.focus == FocusChannels && m.list.FilterState() == list.Filtering && msg.Type != tea.KeyCtrlC {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch m.keys.Resolve(m.focus, msg) {
	case ActionQuit:
		m.cancel()
		return m, tea.Quit

	case ActionOpen:
		item, ok := m.list.SelectedItem().(ChannelItem)
		if !ok {
			return m, nil
		}
		return m, m.openChannel(item.Channel.ID)

	case ActionSend:
		text := strings.TrimSpace(m.composer.Value())
		if text == "" {
			return m, nil
		}
		m.composer.Reset()
		return m, m.send(text)

	case ActionSwitchFocus:
		if m.focus == FocusComposer {
			return m, m.setFocus(FocusChannels)
		}
		if m.service.Messages().ChannelID().IsZero() {
			return m, nil
		}
		return m, m.setFocus(FocusComposer)

	case ActionBack:
		if m.focus == FocusModal {
			m.modal = Modal{}
		}
		return m, m.setFocus(FocusChannels)

	case ActionScrollUp:
		cmd := m.msgView.Update(msg)
		if m.msgView.AtTop() {
			return m, tea.Batch(cmd, m.loadMore())
		}
		return m, cmd

	case ActionScrollDown:
		return m, m.msgView.Update(msg)

	case ActionResubmit:
		return m, m.resubmitLatest()

	case ActionRefresh:
		return m, tea.Batch(m.loadChannels(), m.refreshMessages())

	case ActionNewChat:
		m.search.Reset()
		m.results = nil
		m.lastQuery = ""
		m.searchErr = nil
		return m, m.setFocus(FocusSearch)

	case ActionOpenSite:
		opener, cfg := m.opener, m.service.Config()
		return m, func() tea.Msg {
			return actionDoneMsg{title: "Could not open browser", err: executil.OpenURL(opener, cfg.Browser, cfg.API.SiteURL)}
		}

	case ActionLogout:
		m.modal = NewModal("Log out", "Forget the saved session?\nThe site session is not affected.")
		return m, m.setFocus(FocusModal)

	case ActionToggle:
		m.modal.ToggleSelection()
		return m, nil

	case ActionConfirm:
		confirmed := m.modal.ConfirmSelected()
		m.modal = Modal{}
		focusCmd := m.setFocus(FocusChannels)
		if !confirmed {
			return m, focusCmd
		}
		svc, ctx := m.service, m.ctx
		return m, tea.Batch(focusCmd, func() tea.Msg {
			return actionDoneMsg{title: "Logout failed", err: svc.Auth().Logout(ctx)}
		})

	case ActionSearch:
		return m.handleSearchEnter()
	}

	return m.forwardKey(msg)
}

// forwardKey hands an unbound key to the focused component.
func (m Model) forwardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case FocusChannels:
		m.list, cmd = m.list.Update(msg)
	case FocusComposer:
		m.composer, cmd = m.composer.Update(msg)
	case FocusSearch:
		switch msg.Type {
		case tea.KeyUp:
			m.resultIdx = max(m.resultIdx-1, 0)
		case tea.KeyDown:
			m.resultIdx = min(m.resultIdx+1, max(len(m.results)-1, 0))
		default:
			m.search, cmd = m.search.Update(msg)
		}
	}
	return m, cmd
}

// handleSearchEnter runs the query, or starts a chat with the highlighted
// result when the query has not changed since the last search.
func (m Model) handleSearchEnter() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(m.search.Value())
	if query == "" {
		return m, nil
	}

	if query == m.lastQuery && len(m.results) > 0 {
		user := m.results[m.resultIdx]
		svc, ctx := m.service, m.ctx
		return m, func() tea.Msg {
			_, err := svc.StartChat(ctx, user.ID)
			return channelOpenMsg{err: err}
		}
	}

	m.searching = true
	svc, ctx := m.service, m.ctx
	return m, func() tea.Msg {
		users, err := svc.SearchUsers(ctx, query)
		return searchResultMsg{query: query, users: users, err: err}
	}
}

func (m *Model) setFocus(f Focus) tea.Cmd {
	if f == FocusModal {
		m.prevFocus = m.focus
	}
	m.focus = f

	m.composer.Blur()
	m.search.Blur()
	switch f {
	case FocusComposer:
		return m.composer.Focus()
	case FocusSearch:
		return m.search.Focus()
	}
	return nil
}

// sync copies store state into the view components.
func (m *Model) sync() {
	channels := m.service.Channels()
	messages := m.service.Messages()

	var selected chat.ID
	if item, ok := m.list.SelectedItem().(ChannelItem); ok {
		selected = item.Channel.ID
	}

	sorted := channels.SortedChannels()
	items := make([]list.Item, 0, len(sorted))
	for _, ch := range sorted {
		items = append(items, ChannelItem{Channel: ch})
	}
	m.list.SetItems(items)
	if i := slices.IndexFunc(sorted, func(ch chat.Channel) bool { return ch.ID == selected }); i >= 0 {
		m.list.Select(i)
	}

	m.delegate.Active = channels.ActiveID()
	m.list.SetDelegate(m.delegate)

	if sess, ok := m.service.Auth().Current(); ok && sess.User != nil {
		m.msgView.SetSelf(sess.User.ID)
	}

	if messages.ChannelID().IsZero() {
		m.msgView.Clear()
		return
	}
	m.msgView.SetMessages(messages.Messages(), messages.Outbound(), messages.TypingUsers(), messages.HasMore(), messages.IsLoadingMore())
}

func (m *Model) layout() {
	bodyHeight := max(m.height-2, 3)
	chatWidth := max(m.width-channelPaneWidth, 10)

	m.list.SetSize(channelPaneWidth-2, bodyHeight-2)
	m.composer.SetWidth(chatWidth - 2)
	m.search.Width = chatWidth - 16
	m.msgView.SetSize(chatWidth-2, bodyHeight-composerHeight-5)
	m.help.Width = m.width
}

func (m Model) localToast(level resilient.Level, title string, err error) tea.Cmd {
	bus := m.bus
	return func() tea.Msg {
		bus.Notify(resilient.Notification{Level: level, Title: title, Message: err.Error()})
		return nil
	}
}

// notified reports whether err came through the resilient caller, which
// has already shown it.
func notified(err error) bool {
	var ce *resilient.CallError
	return errors.As(err, &ce) || errors.Is(err, session.ErrNotAuthenticated)
}

func (m Model) loadChannels() tea.Cmd {
	svc, ctx := m.service, m.ctx
	return func() tea.Msg {
		return channelsMsg{err: svc.LoadChannels(ctx)}
	}
}

func (m Model) refreshMessages() tea.Cmd {
	svc, ctx := m.service, m.ctx
	if svc.Messages().ChannelID().IsZero() {
		return nil
	}
	return func() tea.Msg {
		_, err := svc.Messages().Refresh(ctx)
		return historyMsg{err: err}
	}
}

func (m Model) openChannel(id chat.ID) tea.Cmd {
	svc, ctx := m.service, m.ctx
	return func() tea.Msg {
		return channelOpenMsg{err: svc.OpenChannel(ctx, id)}
	}
}

func (m Model) loadMore() tea.Cmd {
	messages, ctx := m.service.Messages(), m.ctx
	if !messages.HasMore() || messages.IsLoadingMore() {
		return nil
	}
	return func() tea.Msg {
		return historyMsg{err: messages.LoadMore(ctx)}
	}
}

func (m Model) send(text string) tea.Cmd {
	svc, ctx := m.service, m.ctx
	return func() tea.Msg {
		_, err := svc.Send(ctx, text, nil)
		return sentMsg{err: err}
	}
}

func (m Model) resubmitLatest() tea.Cmd {
	messages, ctx := m.service.Messages(), m.ctx

	outbound := messages.Outbound()
	var failed *state.Outbound
	for j := len(outbound) - 1; j >= 0; j-- {
		if outbound[j].State == state.Failed {
			failed = &outbound[j]
			break
		}
	}
	if failed == nil {
		return nil
	}

	localID := failed.LocalID
	return func() tea.Msg {
		_, err := messages.Resubmit(ctx, localID)
		return sentMsg{err: err}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	if m.focus == FocusModal && m.modal.Visible() {
		return m.modal.Render(m.width, m.height)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.channelPane(), m.chatPane())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.statusLine())
}

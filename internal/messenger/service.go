// Package messenger wires token acquisition, the API client, the resilient
// call wrapper and the state stores into one Service consumed by the CLI and
// the TUI.
package messenger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/auth"
	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/core/config"
	"github.com/hay-kot/dtfchat/internal/core/session"
	"github.com/hay-kot/dtfchat/internal/core/validate"
	"github.com/hay-kot/dtfchat/internal/dtfapi"
	"github.com/hay-kot/dtfchat/internal/resilient"
	"github.com/hay-kot/dtfchat/internal/state"
)

// SearchLimit is the number of users returned by SearchUsers.
const SearchLimit = 10

// Deps are the collaborators a Service is built from.
type Deps struct {
	Sessions session.Store
	// Sources deliver session broadcasts.
	Sources []session.EventSource
	// Fallback runs when no broadcast arrived in time. May be nil.
	Fallback session.EventSource
	Notifier resilient.Notifier
}

// Service orchestrates messenger operations.
type Service struct {
	config   *config.Config
	auth     *auth.Manager
	api      *dtfapi.Client
	caller   *resilient.Caller
	channels *state.ChannelStore
	messages *state.MessageStore
	log      zerolog.Logger
}

// New creates a new Service.
func New(cfg *config.Config, deps Deps, log zerolog.Logger) *Service {
	mgr := auth.NewManager(deps.Sessions, deps.Sources, deps.Fallback, auth.Options{
		Lifetime:      cfg.Session.Lifetime,
		FallbackDelay: cfg.Session.FallbackDelay,
		WaitTimeout:   cfg.Session.WaitTimeout,
	}, log.With().Str("component", "auth").Logger())

	api := dtfapi.New(dtfapi.Options{
		BaseURL:     cfg.API.BaseURL,
		TokenHeader: cfg.API.TokenHeader,
		Timeout:     cfg.API.Timeout,
	}, mgr, log.With().Str("component", "api").Logger())

	caller := resilient.New(resilient.Options{
		Retries:              cfg.Retry.Retries,
		BaseDelay:            cfg.Retry.BaseDelay,
		NotificationDuration: cfg.Notifications.Duration,
		Notifier:             deps.Notifier,
		Session:              mgr,
	}, log.With().Str("component", "caller").Logger())

	channels := state.NewChannelStore(api, caller, log)
	messages := state.NewMessageStore(api, caller, channels, state.MessageOptions{
		PageSize:      cfg.Messages.PageSize,
		TypingTimeout: cfg.Messages.TypingTimeout,
		Rules:         cfg.AttachmentRules(),
		Self: func() chat.UserSummary {
			if s, ok := mgr.Current(); ok && s.User != nil {
				return *s.User
			}
			return chat.UserSummary{}
		},
	}, log)

	s := &Service{
		config:   cfg,
		auth:     mgr,
		api:      api,
		caller:   caller,
		channels: channels,
		messages: messages,
		log:      log,
	}

	mgr.OnChange(s.onSessionChange)
	return s
}

// onSessionChange drops every cached view when the session ends so nothing
// authenticated outlives a logout.
func (s *Service) onSessionChange(c auth.Change) {
	if c.Authenticated() {
		return
	}
	s.log.Info().Str("event", string(c.Type)).Msg("session ended, clearing state")
	s.channels.Reset()
	s.messages.Clear()
	s.caller.ClearErrors()
}

func (s *Service) Auth() *auth.Manager              { return s.auth }
func (s *Service) Caller() *resilient.Caller        { return s.caller }
func (s *Service) Channels() *state.ChannelStore    { return s.channels }
func (s *Service) Messages() *state.MessageStore    { return s.messages }
func (s *Service) Config() *config.Config           { return s.config }
func (s *Service) SetNotifier(n resilient.Notifier) { s.caller.SetNotifier(n) }

// Initialize waits for a session.
func (s *Service) Initialize(ctx context.Context) error {
	return s.auth.Initialize(ctx)
}

// Close stops session subscriptions.
func (s *Service) Close() {
	s.auth.Close()
}

// LoadChannels refreshes the channel list.
func (s *Service) LoadChannels(ctx context.Context) error {
	return s.channels.Load(ctx)
}

// OpenChannel makes id the active channel, loads its newest messages and
// marks them read. A failed mark-as-read restores the unread count and is
// only logged.
func (s *Service) OpenChannel(ctx context.Context, id chat.ID) error {
	prior := s.channels.SetActiveChannel(id)

	if err := s.messages.Open(ctx, id); err != nil {
		s.channels.RestoreUnread(id, prior)
		return fmt.Errorf("open channel %s: %w", id, err)
	}

	if err := s.completeRead(ctx, id, prior); err != nil {
		s.log.Warn().Err(err).Str("channel", id.String()).Msg("mark as read failed")
	}
	return nil
}

// MarkRead runs the mark-as-read cycle for id, which must be the open channel.
func (s *Service) MarkRead(ctx context.Context, id chat.ID) error {
	prior := s.channels.SetActiveChannel(id)
	return s.completeRead(ctx, id, prior)
}

func (s *Service) completeRead(ctx context.Context, id chat.ID, prior int) error {
	if err := s.messages.MarkChannelAsRead(ctx, id); err != nil {
		s.channels.RestoreUnread(id, prior)
		return err
	}
	return nil
}

// ReadChannel opens id and runs the mark-as-read cycle, returning its error.
func (s *Service) ReadChannel(ctx context.Context, id chat.ID) error {
	if err := s.messages.Open(ctx, id); err != nil {
		return fmt.Errorf("open channel %s: %w", id, err)
	}
	return s.MarkRead(ctx, id)
}

// History reads up to pages pages of a channel's history older than before
// (unix seconds, zero for the newest) without touching the open channel.
// Messages are returned oldest first.
func (s *Service) History(ctx context.Context, id chat.ID, before int64, pages int) ([]chat.Message, error) {
	pages = max(pages, 1)

	var (
		out  []chat.Message
		seen = map[chat.ID]bool{}
	)
	for range pages {
		cursor := before
		page, err := resilient.Call(ctx, s.caller, resilient.KeyOlderMessages(id, cursor), func(ctx context.Context) dtfapi.Result[dtfapi.MessagesPage] {
			return s.api.GetMessages(ctx, dtfapi.MessagesQuery{ChannelID: id, BeforeTime: cursor, Limit: s.config.Messages.PageSize})
		})
		if err != nil {
			return nil, fmt.Errorf("history of %s: %w", id, err)
		}

		for _, m := range page.Messages {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
			if before == 0 || m.CreatedAt < before {
				before = m.CreatedAt
			}
		}

		if !page.HasMore || len(page.Messages) == 0 {
			break
		}
	}

	slices.SortStableFunc(out, func(a, b chat.Message) int {
		return cmp.Compare(a.CreatedAt, b.CreatedAt)
	})
	return out, nil
}

// Send sends a message to the open channel.
func (s *Service) Send(ctx context.Context, text string, attachments []chat.Attachment) (chat.Message, error) {
	return s.messages.Send(ctx, text, attachments)
}

// StartChat opens the direct channel with userID, creating it if needed.
func (s *Service) StartChat(ctx context.Context, userID chat.ID) (chat.Channel, error) {
	ch, err := s.channels.OpenWithUser(ctx, userID)
	if err != nil {
		return chat.Channel{}, fmt.Errorf("start chat with %s: %w", userID, err)
	}
	if err := s.OpenChannel(ctx, ch.ID); err != nil {
		return ch, err
	}
	return ch, nil
}

// SearchUsers finds users by name. Failures are not notified.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]chat.UserSummary, error) {
	if err := validate.SearchQuery(query); err != nil {
		return nil, err
	}

	return resilient.Call(ctx, s.caller, resilient.KeySearchUsers(query), func(ctx context.Context) dtfapi.Result[[]chat.UserSummary] {
		return s.api.SearchUsers(ctx, query, SearchLimit)
	}, resilient.WithNotify(false))
}

// HealthCheck measures one authenticated round trip without retries.
func (s *Service) HealthCheck(ctx context.Context) (time.Duration, error) {
	return resilient.Call(ctx, s.caller, resilient.KeyHealthCheck, s.api.Ping,
		resilient.WithRetries(0), resilient.WithNotify(false))
}

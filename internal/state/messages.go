package state

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/core/validate"
	"github.com/hay-kot/dtfchat/internal/dtfapi"
	"github.com/hay-kot/dtfchat/internal/resilient"
	"github.com/hay-kot/dtfchat/pkg/randid"
)

// DefaultTypingTimeout is how long a typing indicator lasts without a refresh.
const DefaultTypingTimeout = 5 * time.Second

// MessageOptions configures a MessageStore.
type MessageOptions struct {
	PageSize      int
	TypingTimeout time.Duration
	Rules         validate.Rules
	// Self returns the current user, used as the author of placeholders.
	Self func() chat.UserSummary
	Now  func() time.Time
	// NewLocalID generates placeholder ids. Defaults to a timestamped random id.
	NewLocalID func() string
}

// MessageStore holds the messages of one channel at a time.
type MessageStore struct {
	api      API
	caller   *resilient.Caller
	channels *ChannelStore
	opts     MessageOptions
	log      zerolog.Logger

	mu          sync.Mutex
	channelID   chat.ID
	gen         uint64
	messages    []chat.Message
	hasMore     bool
	loadingMore bool
	uploading   int
	outbox      outbox
	typing      map[chat.ID]*typingEntry
	typingGen   uint64
}

// NewMessageStore creates a MessageStore. channels receives last-message and
// read-state updates and may be nil.
func NewMessageStore(api API, caller *resilient.Caller, channels *ChannelStore, opts MessageOptions, log zerolog.Logger) *MessageStore {
	if opts.PageSize <= 0 {
		opts.PageSize = dtfapi.DefaultPageSize
	}
	if opts.TypingTimeout <= 0 {
		opts.TypingTimeout = DefaultTypingTimeout
	}
	if opts.Rules.MaxAttachmentSize <= 0 {
		opts.Rules = validate.DefaultRules()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Self == nil {
		opts.Self = func() chat.UserSummary { return chat.UserSummary{} }
	}
	if opts.NewLocalID == nil {
		now := opts.Now
		opts.NewLocalID = func() string { return randid.Timestamped(chat.TmpIDPrefix, now(), 6) }
	}

	return &MessageStore{
		api:      api,
		caller:   caller,
		channels: channels,
		opts:     opts,
		log:      log.With().Str("component", "messages").Logger(),
		typing:   make(map[chat.ID]*typingEntry),
	}
}

// Open switches to channelID, discarding the previous channel's messages, and
// fetches the newest page.
func (s *MessageStore) Open(ctx context.Context, channelID chat.ID) error {
	s.mu.Lock()
	s.resetLocked()
	s.channelID = channelID
	s.hasMore = true
	gen := s.gen
	s.mu.Unlock()

	page, err := resilient.Call(ctx, s.caller, resilient.KeyMessages(channelID), func(ctx context.Context) dtfapi.Result[dtfapi.MessagesPage] {
		return s.api.GetMessages(ctx, dtfapi.MessagesQuery{ChannelID: channelID, Limit: s.opts.PageSize})
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		if err != nil {
			return err
		}
		return ErrStale
	}
	if err != nil {
		s.hasMore = false
		return err
	}

	s.messages = mergeMessages(s.messages, page.Messages)
	s.hasMore = page.HasMore
	return nil
}

// LoadMore fetches the page older than the oldest loaded message and
// prepends it. It is a no-op when history is exhausted or a load is running.
func (s *MessageStore) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.channelID.IsZero() || !s.hasMore || s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	channelID := s.channelID
	gen := s.gen
	var before int64
	if oldest := s.oldestConfirmedLocked(); oldest != nil {
		before = oldest.CreatedAt
	}
	s.loadingMore = true
	s.mu.Unlock()

	page, err := resilient.Call(ctx, s.caller, resilient.KeyOlderMessages(channelID, before), func(ctx context.Context) dtfapi.Result[dtfapi.MessagesPage] {
		return s.api.GetMessages(ctx, dtfapi.MessagesQuery{ChannelID: channelID, BeforeTime: before, Limit: s.opts.PageSize})
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		return ErrStale
	}
	s.loadingMore = false
	if err != nil {
		return err
	}

	s.messages = mergeMessages(s.messages, page.Messages)
	s.hasMore = page.HasMore
	return nil
}

// Refresh merges the newest page into the loaded messages. It returns the
// number of messages that were not loaded before.
func (s *MessageStore) Refresh(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.channelID.IsZero() {
		s.mu.Unlock()
		return 0, ErrNoActiveChannel
	}
	channelID := s.channelID
	gen := s.gen
	s.mu.Unlock()

	page, err := resilient.Call(ctx, s.caller, resilient.KeyMessages(channelID), func(ctx context.Context) dtfapi.Result[dtfapi.MessagesPage] {
		return s.api.GetMessages(ctx, dtfapi.MessagesQuery{ChannelID: channelID, Limit: s.opts.PageSize})
	}, resilient.WithNotify(false))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return 0, ErrStale
	}
	before := len(s.messages)
	s.messages = mergeMessages(s.messages, page.Messages)
	added := len(s.messages) - before
	latest := s.latestLocked()
	s.mu.Unlock()

	if latest != nil && s.channels != nil {
		s.channels.UpdateLastMessage(*latest)
	}
	return added, nil
}

// AddIncoming records a message received outside of a fetch. Messages for
// other channels only update the channel list.
func (s *MessageStore) AddIncoming(msg chat.Message) {
	s.mu.Lock()
	current := !s.channelID.IsZero() && msg.ChannelID == s.channelID
	if current {
		s.messages = mergeMessages(s.messages, []chat.Message{msg})
	}
	s.mu.Unlock()

	if s.channels == nil {
		return
	}
	s.channels.UpdateLastMessage(msg)
	if !current && !msg.IsRead {
		s.channels.IncrementUnread(msg.ChannelID)
	}
}

// Send validates the draft, shows a placeholder, uploads attachments and
// sends the message. On success the placeholder is replaced in place by the
// server's copy; on failure it is removed and the draft stays in the outbox
// as Failed so it can be resubmitted.
func (s *MessageStore) Send(ctx context.Context, text string, attachments []chat.Attachment) (chat.Message, error) {
	if err := validate.MessageDraft(text, attachments, s.opts.Rules); err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	if s.channelID.IsZero() {
		s.mu.Unlock()
		return chat.Message{}, ErrNoActiveChannel
	}
	o := Outbound{
		LocalID:     s.opts.NewLocalID(),
		ChannelID:   s.channelID,
		Text:        text,
		Attachments: slices.Clone(attachments),
		CreatedAt:   s.opts.Now().Unix(),
	}
	s.mu.Unlock()

	return s.submit(ctx, o)
}

// Resubmit sends a failed message again.
func (s *MessageStore) Resubmit(ctx context.Context, localID string) (chat.Message, error) {
	s.mu.Lock()
	o, err := s.outbox.apply(localID, Resubmit{})
	if err != nil {
		s.mu.Unlock()
		return chat.Message{}, err
	}
	s.outbox.remove(localID)
	channelID := s.channelID
	s.mu.Unlock()

	if o.ChannelID != channelID {
		return chat.Message{}, ErrStale
	}
	o.CreatedAt = s.opts.Now().Unix()
	return s.submit(ctx, o)
}

func (s *MessageStore) submit(ctx context.Context, o Outbound) (chat.Message, error) {
	o, err := Reduce(o, Submit{})
	if err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	gen := s.gen
	s.outbox.put(o)
	s.messages = insertSorted(s.messages, o.Placeholder(s.opts.Self()))
	if o.State == Uploading {
		s.uploading++
	}
	s.mu.Unlock()

	if o.State == Uploading {
		media, err := s.upload(ctx, o)

		s.mu.Lock()
		// a reset since gen already zeroed the counter
		if s.gen == gen {
			s.uploading--
		}
		if err != nil {
			s.failLocked(gen, o.LocalID, err)
			s.mu.Unlock()
			return chat.Message{}, err
		}
		if s.gen == gen {
			o, _ = s.outbox.apply(o.LocalID, UploadsDone{Media: media})
			s.replacePlaceholderLocked(o.LocalID, o.Placeholder(s.opts.Self()))
		} else {
			o, _ = Reduce(o, UploadsDone{Media: media})
		}
		s.mu.Unlock()
	}

	req := dtfapi.SendRequest{
		ChannelID:       o.ChannelID,
		Text:            o.Text,
		Media:           o.Media,
		ClientTimestamp: o.CreatedAt,
		ClientTmpID:     o.LocalID,
	}
	msg, err := resilient.Call(ctx, s.caller, resilient.KeySendMessage(o.ChannelID, o.LocalID), func(ctx context.Context) dtfapi.Result[chat.Message] {
		return s.api.SendMessage(ctx, req)
	}, resilient.WithRetries(1))

	s.mu.Lock()
	if err != nil {
		s.failLocked(gen, o.LocalID, err)
		s.mu.Unlock()
		return chat.Message{}, err
	}
	if msg.ChannelID.IsZero() {
		msg.ChannelID = o.ChannelID
	}
	if s.gen == gen {
		_, _ = s.outbox.apply(o.LocalID, Confirm{Message: msg})
		s.outbox.remove(o.LocalID)
		s.replacePlaceholderLocked(o.LocalID, msg)
	}
	s.mu.Unlock()

	if s.channels != nil {
		s.channels.UpdateLastMessage(msg)
	}
	s.log.Debug().Str("channel", o.ChannelID.String()).Str("id", msg.ID.String()).Msg("message sent")
	return msg, nil
}

func (s *MessageStore) upload(ctx context.Context, o Outbound) ([]chat.MediaRef, error) {
	media := make([]chat.MediaRef, 0, len(o.Attachments))
	for i, a := range o.Attachments {
		ref, err := resilient.Call(ctx, s.caller, resilient.KeyUpload(o.LocalID, i, a.Name), func(ctx context.Context) dtfapi.Result[chat.MediaRef] {
			return s.api.UploadMedia(ctx, a)
		}, resilient.WithRetries(1), resilient.WithLoadingIndicator("Uploading "+a.Name))
		if err != nil {
			return nil, err
		}
		media = append(media, ref)
	}
	return media, nil
}

// failLocked removes the placeholder and marks the outbound Failed. It is a
// no-op when the channel changed since gen.
func (s *MessageStore) failLocked(gen uint64, localID string, err error) {
	if s.gen != gen {
		return
	}
	_, _ = s.outbox.apply(localID, Fail{Err: err})
	s.messages = slices.DeleteFunc(s.messages, func(m chat.Message) bool { return m.ID == chat.ID(localID) })
}

// replacePlaceholderLocked swaps the placeholder for msg without moving it.
// If msg is already present, for example from a concurrent refresh, the
// placeholder is dropped instead.
func (s *MessageStore) replacePlaceholderLocked(localID string, msg chat.Message) {
	i := slices.IndexFunc(s.messages, func(m chat.Message) bool { return m.ID == chat.ID(localID) })
	if i < 0 {
		return
	}
	if msg.ID != chat.ID(localID) && slices.ContainsFunc(s.messages, func(m chat.Message) bool { return m.ID == msg.ID }) {
		s.messages = slices.Delete(s.messages, i, i+1)
		return
	}
	s.messages[i] = msg
}

// MarkChannelAsRead marks the loaded unread messages of channelID as read on
// the server. Local flags and the channel's unread count change only after
// the server confirmed.
func (s *MessageStore) MarkChannelAsRead(ctx context.Context, channelID chat.ID) error {
	s.mu.Lock()
	var ids []chat.ID
	if channelID == s.channelID {
		for _, m := range s.messages {
			if !m.IsRead && !m.IsPlaceholder() {
				ids = append(ids, m.ID)
			}
		}
	}
	s.mu.Unlock()

	if len(ids) == 0 && s.channels != nil {
		if ch, ok := s.channels.Channel(channelID); ok && ch.UnreadCount == 0 && s.channels.Unconfirmed(channelID) == 0 {
			return nil
		}
	}
	if ids == nil {
		ids = []chat.ID{}
	}

	_, err := resilient.Call(ctx, s.caller, resilient.KeyMarkRead(channelID), func(ctx context.Context) dtfapi.Result[struct{}] {
		return s.api.MarkAsRead(ctx, channelID, ids)
	}, resilient.WithRetries(1), resilient.WithNotify(false))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if channelID == s.channelID {
		for i := range s.messages {
			if slices.Contains(ids, s.messages[i].ID) {
				s.messages[i].IsRead = true
			}
		}
	}
	s.mu.Unlock()

	if s.channels != nil {
		s.channels.MarkRead(channelID)
	}
	return nil
}

// Clear drops the open channel and everything loaded for it.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// resetLocked bumps the generation so in-flight responses are discarded.
func (s *MessageStore) resetLocked() {
	s.gen++
	s.channelID = ""
	s.messages = nil
	s.hasMore = false
	s.loadingMore = false
	s.uploading = 0
	s.outbox.reset()
	s.clearTypingLocked()
}

// Messages returns the loaded messages, oldest first.
func (s *MessageStore) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Outbound returns the messages still in flight or failed, in submission order.
func (s *MessageStore) Outbound() []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outbox.snapshot()
}

func (s *MessageStore) ChannelID() chat.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

func (s *MessageStore) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *MessageStore) IsLoadingMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMore
}

// IsUploading reports whether any attachment upload is running.
func (s *MessageStore) IsUploading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploading > 0
}

func (s *MessageStore) oldestConfirmedLocked() *chat.Message {
	for i := range s.messages {
		if !s.messages[i].IsPlaceholder() {
			return &s.messages[i]
		}
	}
	return nil
}

func (s *MessageStore) latestLocked() *chat.Message {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if !s.messages[i].IsPlaceholder() {
			m := s.messages[i]
			return &m
		}
	}
	return nil
}

// mergeMessages adds incoming messages whose id is not present yet. An
// incoming message carrying the tmp id of a placeholder replaces it. The
// result is sorted by creation time; equal times keep their order.
func mergeMessages(existing, incoming []chat.Message) []chat.Message {
	out := slices.Clone(existing)
	for _, m := range incoming {
		if slices.ContainsFunc(out, func(e chat.Message) bool { return e.ID == m.ID }) {
			continue
		}
		if m.TmpID != "" {
			if i := slices.IndexFunc(out, func(e chat.Message) bool { return e.ID == chat.ID(m.TmpID) }); i >= 0 {
				out[i] = m
				continue
			}
		}
		out = append(out, m)
	}

	slices.SortStableFunc(out, func(a, b chat.Message) int {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		}
		return 0
	})
	return out
}

// insertSorted inserts m after every message created at or before it.
func insertSorted(list []chat.Message, m chat.Message) []chat.Message {
	i, _ := slices.BinarySearchFunc(list, m.CreatedAt+1, func(e chat.Message, t int64) int {
		switch {
		case e.CreatedAt < t:
			return -1
		case e.CreatedAt > t:
			return 1
		}
		return 0
	})
	return slices.Insert(list, i, m)
}

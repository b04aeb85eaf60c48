package state

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/dtfapi"
	"github.com/hay-kot/dtfchat/internal/resilient"
)

// ChannelStore is the authoritative channel list plus the active channel id.
type ChannelStore struct {
	api    API
	caller *resilient.Caller
	log    zerolog.Logger
	now    func() time.Time

	mu          sync.Mutex
	channels    []chat.Channel
	activeID    chat.ID
	fetchedAt   time.Time
	newMessages int
	gen         uint64
	// unconfirmed holds unread counts zeroed by SetActiveChannel that the
	// server has not confirmed as read yet.
	unconfirmed map[chat.ID]int
}

// NewChannelStore creates an empty ChannelStore.
func NewChannelStore(api API, caller *resilient.Caller, log zerolog.Logger) *ChannelStore {
	return &ChannelStore{
		api:         api,
		caller:      caller,
		log:         log.With().Str("component", "channels").Logger(),
		now:         time.Now,
		unconfirmed: make(map[chat.ID]int),
	}
}

// SetChannels replaces the whole list. Duplicate ids keep their first entry
// and negative unread counts are clamped to zero.
func (s *ChannelStore) SetChannels(list []chat.Channel) {
	seen := make(map[chat.ID]struct{}, len(list))
	out := make([]chat.Channel, 0, len(list))
	for _, ch := range list {
		if _, ok := seen[ch.ID]; ok {
			continue
		}
		seen[ch.ID] = struct{}{}
		ch.UnreadCount = max(ch.UnreadCount, 0)
		out = append(out, ch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range out {
		s.holdUnconfirmedLocked(&out[i])
	}
	s.channels = out
	s.fetchedAt = s.now()
}

// holdUnconfirmedLocked keeps a channel with a pending mark-as-read at zero
// and records the server's count as the value to restore on failure.
func (s *ChannelStore) holdUnconfirmedLocked(ch *chat.Channel) {
	if _, ok := s.unconfirmed[ch.ID]; !ok {
		return
	}
	s.unconfirmed[ch.ID] = ch.UnreadCount
	ch.UnreadCount = 0
}

// UpsertChannel replaces the channel with the same id, or inserts it at the front.
func (s *ChannelStore) UpsertChannel(ch chat.Channel) {
	ch.UnreadCount = max(ch.UnreadCount, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdUnconfirmedLocked(&ch)
	if i := s.indexOf(ch.ID); i >= 0 {
		s.channels[i] = ch
		return
	}
	s.channels = slices.Insert(s.channels, 0, ch)
}

// SetActiveChannel makes id the active channel and zeroes its unread count
// locally. It returns the count before the reset so a failed mark-as-read can
// restore it. A zero id clears the selection.
func (s *ChannelStore) SetActiveChannel(id chat.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = id
	if id.IsZero() {
		return 0
	}

	i := s.indexOf(id)
	if i < 0 {
		return 0
	}
	prior := s.channels[i].UnreadCount
	s.channels[i].UnreadCount = 0
	if prior > 0 {
		s.unconfirmed[id] += prior
	}
	return prior
}

// RestoreUnread puts the unread count of id back after a failed
// mark-as-read. While the read is pending the recorded count wins over n,
// since a refresh may have replaced it with the server's value; n is only
// added when nothing was recorded.
func (s *ChannelStore) RestoreUnread(id chat.ID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if recorded, ok := s.unconfirmed[id]; ok {
		delete(s.unconfirmed, id)
		n = recorded
	}
	if n <= 0 {
		return
	}
	if i := s.indexOf(id); i >= 0 {
		s.channels[i].UnreadCount += n
	}
}

// Unconfirmed returns the unread count zeroed locally for id that still
// awaits server confirmation.
func (s *ChannelStore) Unconfirmed(id chat.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unconfirmed[id]
}

// MarkRead zeroes the unread count of id after the server confirmed it.
func (s *ChannelStore) MarkRead(id chat.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unconfirmed, id)
	if i := s.indexOf(id); i >= 0 {
		s.channels[i].UnreadCount = 0
	}
}

// IncrementUnread counts a new message in a channel that is not active.
func (s *ChannelStore) IncrementUnread(id chat.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.activeID {
		return
	}
	if i := s.indexOf(id); i >= 0 {
		s.channels[i].UnreadCount++
	}
}

// UpdateLastMessage records msg as the last message of its channel unless a
// newer one is already known. It reports whether the channel is in the list.
func (s *ChannelStore) UpdateLastMessage(msg chat.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(msg.ChannelID)
	if i < 0 {
		return false
	}
	if last := s.channels[i].LastMessage; last == nil || last.CreatedAt <= msg.CreatedAt {
		m := msg
		s.channels[i].LastMessage = &m
	}
	return true
}

// SortedChannels returns the channels ordered by last activity, most recent
// first. Ties go to the channel with more unread messages.
func (s *ChannelStore) SortedChannels() []chat.Channel {
	s.mu.Lock()
	out := slices.Clone(s.channels)
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b chat.Channel) int {
		if a.LastActivity() != b.LastActivity() {
			if a.LastActivity() > b.LastActivity() {
				return -1
			}
			return 1
		}
		return b.UnreadCount - a.UnreadCount
	})
	return out
}

// Filter returns the sorted channels whose title or last message text contains
// query, ignoring case. An empty query returns every channel.
func (s *ChannelStore) Filter(query string) []chat.Channel {
	sorted := s.SortedChannels()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return sorted
	}

	return slices.DeleteFunc(sorted, func(ch chat.Channel) bool {
		if strings.Contains(strings.ToLower(ch.Title), query) {
			return false
		}
		return ch.LastMessage == nil || !strings.Contains(strings.ToLower(ch.LastMessage.Text), query)
	})
}

// TotalUnreadCount is the sum of every channel's unread count.
func (s *ChannelStore) TotalUnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, ch := range s.channels {
		total += ch.UnreadCount
	}
	return total
}

// Channel returns the channel with id.
func (s *ChannelStore) Channel(id chat.ID) (chat.Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.channels[i], true
	}
	return chat.Channel{}, false
}

// Len returns the number of channels.
func (s *ChannelStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

func (s *ChannelStore) ActiveID() chat.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

func (s *ChannelStore) FetchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchedAt
}

// NewMessagesCount is the server-side unread counter from the last LoadCounter.
func (s *ChannelStore) NewMessagesCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newMessages
}

// Reset drops everything. Responses to requests issued before Reset are discarded.
func (s *ChannelStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = nil
	s.activeID = ""
	s.fetchedAt = time.Time{}
	s.newMessages = 0
	clear(s.unconfirmed)
	s.gen++
}

// Load fetches the channel list and replaces the local one. On failure the
// list is left unchanged.
func (s *ChannelStore) Load(ctx context.Context) error {
	gen := s.generation()

	list, err := resilient.Call(ctx, s.caller, resilient.KeyChannels, s.api.GetChannels)
	if err != nil {
		return err
	}
	if s.generation() != gen {
		return ErrStale
	}

	s.SetChannels(list)
	s.log.Debug().Int("count", len(list)).Msg("channels loaded")
	return nil
}

// Refresh fetches a single channel and upserts it.
func (s *ChannelStore) Refresh(ctx context.Context, id chat.ID) (chat.Channel, error) {
	gen := s.generation()

	ch, err := resilient.Call(ctx, s.caller, resilient.KeyChannel(id), func(ctx context.Context) dtfapi.Result[chat.Channel] {
		return s.api.GetChannel(ctx, id)
	})
	if err != nil {
		return chat.Channel{}, err
	}
	if s.generation() != gen {
		return chat.Channel{}, ErrStale
	}

	s.UpsertChannel(ch)
	return ch, nil
}

// OpenWithUser returns the direct channel with userID. A known channel whose
// id equals the user id is returned without a network call; otherwise the
// channel is fetched or created and upserted.
func (s *ChannelStore) OpenWithUser(ctx context.Context, userID chat.ID) (chat.Channel, error) {
	if ch, ok := s.Channel(userID); ok {
		return ch, nil
	}

	gen := s.generation()
	ch, err := resilient.Call(ctx, s.caller, resilient.KeyCreateChannel(userID),
		func(ctx context.Context) dtfapi.Result[chat.Channel] {
			return s.api.GetOrCreateChannelWithUser(ctx, userID)
		},
		resilient.WithLoadingIndicator("Opening conversation"),
	)
	if err != nil {
		return chat.Channel{}, err
	}
	if s.generation() != gen {
		return chat.Channel{}, ErrStale
	}

	s.UpsertChannel(ch)
	return ch, nil
}

// LoadCounter refreshes the server-side unread counter.
func (s *ChannelStore) LoadCounter(ctx context.Context) (int, error) {
	n, err := resilient.Call(ctx, s.caller, resilient.KeyCounter, s.api.GetCounter, resilient.WithNotify(false))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.newMessages = max(n, 0)
	s.mu.Unlock()
	return n, nil
}

func (s *ChannelStore) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// indexOf must be called with mu held.
func (s *ChannelStore) indexOf(id chat.ID) int {
	return slices.IndexFunc(s.channels, func(ch chat.Channel) bool { return ch.ID == id })
}

package state

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/dtfapi"
	"github.com/hay-kot/dtfchat/internal/resilient"
)

func msgAt(ts int64, text string) *chat.Message {
	return &chat.Message{ID: chat.ID(idFor(ts)), Text: text, CreatedAt: ts}
}

func newChannelStore(api *fakeAPI) *ChannelStore {
	return NewChannelStore(api, testCaller(), zerolog.New(io.Discard))
}

func TestChannelStore_FreshLoad(t *testing.T) {
	api := &fakeAPI{getChannels: func(context.Context) dtfapi.Result[[]chat.Channel] {
		return dtfapi.Ok([]chat.Channel{{ID: "1", Title: "A", UnreadCount: 2}})
	}}
	s := newChannelStore(api)

	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, s.TotalUnreadCount())
	assert.False(t, s.FetchedAt().IsZero())
}

func TestChannelStore_LoadFailureKeepsList(t *testing.T) {
	api := &fakeAPI{getChannels: func(context.Context) dtfapi.Result[[]chat.Channel] {
		return dtfapi.Fail[[]chat.Channel](404, "gone")
	}}
	s := newChannelStore(api)
	s.SetChannels([]chat.Channel{{ID: "1"}, {ID: "2"}})

	err := s.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, dtfapi.KindRejected, resilient.KindOf(err))
	assert.Equal(t, 2, s.Len())
}

func TestChannelStore_LoadDiscardedAfterReset(t *testing.T) {
	var s *ChannelStore
	api := &fakeAPI{getChannels: func(context.Context) dtfapi.Result[[]chat.Channel] {
		s.Reset()
		return dtfapi.Ok([]chat.Channel{{ID: "1"}})
	}}
	s = newChannelStore(api)

	err := s.Load(context.Background())

	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, 0, s.Len())
}

func TestChannelStore_UpsertNeverDuplicates(t *testing.T) {
	s := newChannelStore(&fakeAPI{})
	s.SetChannels([]chat.Channel{{ID: "1", Title: "A"}, {ID: "2", Title: "B"}, {ID: "1", Title: "dup"}})
	require.Equal(t, 2, s.Len())

	s.UpsertChannel(chat.Channel{ID: "2", Title: "B2"})
	s.UpsertChannel(chat.Channel{ID: "3", Title: "C"})
	s.UpsertChannel(chat.Channel{ID: "3", Title: "C2"})

	assert.Equal(t, 3, s.Len())
	ch, ok := s.Channel("2")
	require.True(t, ok)
	assert.Equal(t, "B2", ch.Title)
	ch, _ = s.Channel("3")
	assert.Equal(t, "C2", ch.Title)
}

func TestChannelStore_SortedChannels(t *testing.T) {
	s := newChannelStore(&fakeAPI{})
	s.SetChannels([]chat.Channel{
		{ID: "old", LastMessage: msgAt(100, "")},
		{ID: "none"},
		{ID: "new-quiet", LastMessage: msgAt(300, ""), UnreadCount: 0},
		{ID: "new-busy", LastMessage: msgAt(300, ""), UnreadCount: 4},
		{ID: "mid", LastMessage: msgAt(200, "")},
	})

	got := make([]chat.ID, 0)
	for _, ch := range s.SortedChannels() {
		got = append(got, ch.ID)
	}

	assert.Equal(t, []chat.ID{"new-busy", "new-quiet", "mid", "old", "none"}, got)
}

func TestChannelStore_UnreadInvariant(t *testing.T) {
	s := newChannelStore(&fakeAPI{})
	s.SetChannels([]chat.Channel{{ID: "1", UnreadCount: 3}, {ID: "2", UnreadCount: 5}, {ID: "3", UnreadCount: -2}})

	assert.Equal(t, 8, s.TotalUnreadCount())

	prior := s.SetActiveChannel("2")
	assert.Equal(t, 5, prior)
	assert.Equal(t, 3, s.TotalUnreadCount())
	assert.Equal(t, 5, s.Unconfirmed("2"))

	s.IncrementUnread("2")
	assert.Equal(t, 3, s.TotalUnreadCount(), "active channel does not count new messages")

	s.IncrementUnread("1")
	assert.Equal(t, 4, s.TotalUnreadCount())

	s.RestoreUnread("2", prior)
	assert.Equal(t, 9, s.TotalUnreadCount())
	assert.Equal(t, 0, s.Unconfirmed("2"))

	s.MarkRead("2")
	assert.Equal(t, 4, s.TotalUnreadCount())
}

func TestChannelStore_LoadDuringPendingRead(t *testing.T) {
	serverUnread := 2
	api := &fakeAPI{getChannels: func(context.Context) dtfapi.Result[[]chat.Channel] {
		return dtfapi.Ok([]chat.Channel{{ID: "A", UnreadCount: serverUnread}, {ID: "B", UnreadCount: 1}})
	}}
	s := newChannelStore(api)
	require.NoError(t, s.Load(context.Background()))

	prior := s.SetActiveChannel("A")
	require.Equal(t, 2, prior)

	t.Run("refresh keeps the pending channel at zero", func(t *testing.T) {
		require.NoError(t, s.Load(context.Background()))

		ch, ok := s.Channel("A")
		require.True(t, ok)
		assert.Equal(t, 0, ch.UnreadCount)
		assert.Equal(t, 2, s.Unconfirmed("A"))
		assert.Equal(t, 1, s.TotalUnreadCount())
	})

	t.Run("failed read restores the server count once", func(t *testing.T) {
		s.RestoreUnread("A", prior)

		ch, _ := s.Channel("A")
		assert.Equal(t, 2, ch.UnreadCount)
		assert.Equal(t, 0, s.Unconfirmed("A"))
	})

	t.Run("restore uses the newest server count", func(t *testing.T) {
		prior := s.SetActiveChannel("A")
		serverUnread = 3
		require.NoError(t, s.Load(context.Background()))

		s.RestoreUnread("A", prior)

		ch, _ := s.Channel("A")
		assert.Equal(t, 3, ch.UnreadCount)
	})

	t.Run("upsert during a pending read", func(t *testing.T) {
		prior := s.SetActiveChannel("A")
		s.UpsertChannel(chat.Channel{ID: "A", UnreadCount: 3})

		ch, _ := s.Channel("A")
		assert.Equal(t, 0, ch.UnreadCount)

		s.RestoreUnread("A", prior)
		ch, _ = s.Channel("A")
		assert.Equal(t, 3, ch.UnreadCount)
	})
}

func TestChannelStore_Filter(t *testing.T) {
	s := newChannelStore(&fakeAPI{})
	s.SetChannels([]chat.Channel{
		{ID: "1", Title: "Alice", LastMessage: msgAt(10, "see you")},
		{ID: "2", Title: "Bob", LastMessage: msgAt(20, "ALICE said hi")},
		{ID: "3", Title: "Carol"},
	})

	tests := []struct {
		query string
		want  []chat.ID
	}{
		{"", []chat.ID{"2", "1", "3"}},
		{"alice", []chat.ID{"2", "1"}},
		{"  carol ", []chat.ID{"3"}},
		{"nobody", []chat.ID{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := make([]chat.ID, 0)
			for _, ch := range s.Filter(tt.query) {
				got = append(got, ch.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelStore_UpdateLastMessage(t *testing.T) {
	s := newChannelStore(&fakeAPI{})
	s.SetChannels([]chat.Channel{{ID: "1", LastMessage: msgAt(100, "newer")}})

	assert.True(t, s.UpdateLastMessage(chat.Message{ChannelID: "1", Text: "older", CreatedAt: 50}))
	ch, _ := s.Channel("1")
	assert.Equal(t, "newer", ch.LastMessage.Text)

	s.UpdateLastMessage(chat.Message{ChannelID: "1", Text: "latest", CreatedAt: 150})
	ch, _ = s.Channel("1")
	assert.Equal(t, "latest", ch.LastMessage.Text)

	assert.False(t, s.UpdateLastMessage(chat.Message{ChannelID: "404", CreatedAt: 1}))
}

func TestChannelStore_OpenWithUser(t *testing.T) {
	t.Run("known channel needs no request", func(t *testing.T) {
		api := &fakeAPI{}
		s := newChannelStore(api)
		s.SetChannels([]chat.Channel{{ID: "42", Title: "Dave"}})

		ch, err := s.OpenWithUser(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, "Dave", ch.Title)
		assert.Equal(t, 0, api.Calls("GetOrCreateChannelWithUser"))
	})

	t.Run("unknown channel is created and inserted first", func(t *testing.T) {
		api := &fakeAPI{}
		s := newChannelStore(api)
		s.SetChannels([]chat.Channel{{ID: "1"}})

		ch, err := s.OpenWithUser(context.Background(), "77")
		require.NoError(t, err)
		assert.Equal(t, chat.ID("77"), ch.ID)
		assert.Equal(t, 1, api.Calls("GetOrCreateChannelWithUser"))
		assert.Equal(t, 2, s.Len())
	})
}

func TestChannelStore_LoadCounter(t *testing.T) {
	api := &fakeAPI{getCounter: func(context.Context) dtfapi.Result[int] { return dtfapi.Ok(7) }}
	s := newChannelStore(api)

	n, err := s.LoadCounter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, 7, s.NewMessagesCount())

	s.Reset()
	assert.Equal(t, 0, s.NewMessagesCount())
}

package state

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/dtfapi"
	"github.com/hay-kot/dtfchat/internal/resilient"
)

// fakeAPI implements API with overridable funcs and per-method call counters.
type fakeAPI struct {
	getChannels   func(ctx context.Context) dtfapi.Result[[]chat.Channel]
	getChannel    func(ctx context.Context, id chat.ID) dtfapi.Result[chat.Channel]
	getOrCreate   func(ctx context.Context, userID chat.ID) dtfapi.Result[chat.Channel]
	getCounter    func(ctx context.Context) dtfapi.Result[int]
	getMessages   func(ctx context.Context, q dtfapi.MessagesQuery) dtfapi.Result[dtfapi.MessagesPage]
	sendMessage   func(ctx context.Context, s dtfapi.SendRequest) dtfapi.Result[chat.Message]
	markAsRead    func(ctx context.Context, channelID chat.ID, ids []chat.ID) dtfapi.Result[struct{}]
	uploadMedia   func(ctx context.Context, a chat.Attachment) dtfapi.Result[chat.MediaRef]
	mu            sync.Mutex
	calls         map[string]int
	lastMarkedIDs []chat.ID
}

func (f *fakeAPI) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeAPI) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) GetChannels(ctx context.Context) dtfapi.Result[[]chat.Channel] {
	f.count("GetChannels")
	if f.getChannels == nil {
		return dtfapi.Ok([]chat.Channel{})
	}
	return f.getChannels(ctx)
}

func (f *fakeAPI) GetChannel(ctx context.Context, id chat.ID) dtfapi.Result[chat.Channel] {
	f.count("GetChannel")
	if f.getChannel == nil {
		return dtfapi.Fail[chat.Channel](404, "not found")
	}
	return f.getChannel(ctx, id)
}

func (f *fakeAPI) GetOrCreateChannelWithUser(ctx context.Context, userID chat.ID) dtfapi.Result[chat.Channel] {
	f.count("GetOrCreateChannelWithUser")
	if f.getOrCreate == nil {
		return dtfapi.Ok(chat.Channel{ID: userID, Title: "new"})
	}
	return f.getOrCreate(ctx, userID)
}

func (f *fakeAPI) GetCounter(ctx context.Context) dtfapi.Result[int] {
	f.count("GetCounter")
	if f.getCounter == nil {
		return dtfapi.Ok(0)
	}
	return f.getCounter(ctx)
}

func (f *fakeAPI) GetMessages(ctx context.Context, q dtfapi.MessagesQuery) dtfapi.Result[dtfapi.MessagesPage] {
	f.count("GetMessages")
	if f.getMessages == nil {
		return dtfapi.Ok(dtfapi.MessagesPage{})
	}
	return f.getMessages(ctx, q)
}

func (f *fakeAPI) SendMessage(ctx context.Context, s dtfapi.SendRequest) dtfapi.Result[chat.Message] {
	f.count("SendMessage")
	if f.sendMessage == nil {
		return dtfapi.Ok(chat.Message{ID: "999", Text: s.Text, ChannelID: s.ChannelID, CreatedAt: s.ClientTimestamp, TmpID: s.ClientTmpID})
	}
	return f.sendMessage(ctx, s)
}

func (f *fakeAPI) MarkAsRead(ctx context.Context, channelID chat.ID, ids []chat.ID) dtfapi.Result[struct{}] {
	f.count("MarkAsRead")
	f.mu.Lock()
	f.lastMarkedIDs = ids
	f.mu.Unlock()
	if f.markAsRead == nil {
		return dtfapi.Ok(struct{}{})
	}
	return f.markAsRead(ctx, channelID, ids)
}

func (f *fakeAPI) UploadMedia(ctx context.Context, a chat.Attachment) dtfapi.Result[chat.MediaRef] {
	f.count("UploadMedia")
	if f.uploadMedia == nil {
		return dtfapi.Ok(chat.MediaRef{UUID: "uuid-" + a.Name, Kind: a.Kind()})
	}
	return f.uploadMedia(ctx, a)
}

func testCaller() *resilient.Caller {
	return resilient.New(resilient.Options{Retries: 2, BaseDelay: time.Millisecond}, zerolog.New(io.Discard))
}

// page builds a messages page for channel with one message per timestamp.
func page(channel chat.ID, limit int, stamps ...int64) dtfapi.MessagesPage {
	msgs := make([]chat.Message, 0, len(stamps))
	for _, ts := range stamps {
		msgs = append(msgs, chat.Message{
			ID:        chat.ID(idFor(ts)),
			Text:      "m" + idFor(ts),
			ChannelID: channel,
			CreatedAt: ts,
		})
	}
	return dtfapi.MessagesPage{Messages: msgs, HasMore: len(msgs) == limit}
}

func idFor(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("150405")
}

type testStores struct {
	api      *fakeAPI
	channels *ChannelStore
	messages *MessageStore
}

func newTestStores(t *testing.T, api *fakeAPI, opts MessageOptions) testStores {
	t.Helper()
	caller := testCaller()
	channels := NewChannelStore(api, caller, zerolog.New(io.Discard))

	var n atomic.Int64
	if opts.NewLocalID == nil {
		opts.NewLocalID = func() string { return chat.TmpIDPrefix + idFor(n.Add(1)) }
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Unix(1_000, 0) }
	}
	if opts.Self == nil {
		opts.Self = func() chat.UserSummary { return chat.UserSummary{ID: "1", DisplayName: "me"} }
	}

	messages := NewMessageStore(api, caller, channels, opts, zerolog.New(io.Discard))
	return testStores{api: api, channels: channels, messages: messages}
}

func ids(msgs []chat.Message) []chat.ID {
	out := make([]chat.ID, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

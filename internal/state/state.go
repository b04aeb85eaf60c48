// Package state holds the in-memory channel list and the message list of the
// active channel. Stores call the API through a resilient.Caller and never
// hold their lock across a network call.
package state

import (
	"context"
	"errors"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/core/validate"
	"github.com/hay-kot/dtfchat/internal/dtfapi"
)

var (
	// ErrValidation is returned for drafts rejected before any network call.
	ErrValidation = validate.ErrValidation
	// ErrNoActiveChannel is returned by operations that need an open channel.
	ErrNoActiveChannel = errors.New("no active channel")
	// ErrStale is returned when a response arrived for a channel that is no longer open.
	ErrStale = errors.New("response discarded: channel changed")
)

// API is the subset of the messenger API the stores use. *dtfapi.Client implements it.
type API interface {
	GetChannels(ctx context.Context) dtfapi.Result[[]chat.Channel]
	GetChannel(ctx context.Context, id chat.ID) dtfapi.Result[chat.Channel]
	GetOrCreateChannelWithUser(ctx context.Context, userID chat.ID) dtfapi.Result[chat.Channel]
	GetCounter(ctx context.Context) dtfapi.Result[int]
	GetMessages(ctx context.Context, q dtfapi.MessagesQuery) dtfapi.Result[dtfapi.MessagesPage]
	SendMessage(ctx context.Context, s dtfapi.SendRequest) dtfapi.Result[chat.Message]
	MarkAsRead(ctx context.Context, channelID chat.ID, messageIDs []chat.ID) dtfapi.Result[struct{}]
	UploadMedia(ctx context.Context, a chat.Attachment) dtfapi.Result[chat.MediaRef]
}

var _ API = (*dtfapi.Client)(nil)

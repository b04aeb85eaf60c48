package dtfapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

var errMissingChannel = errors.New("missing channel")

type channelsPayload struct {
	Channels []chat.Channel `json:"channels"`
}

type channelPayload struct {
	Channel *chat.Channel `json:"channel"`
}

type counterPayload struct {
	Counter int `json:"counter"`
}

// GetChannels lists the user's channels.
func (c *Client) GetChannels(ctx context.Context) Result[[]chat.Channel] {
	r := call[channelsPayload](ctx, c, http.MethodGet, "/m/channels", nil)
	return mapResult(r, func(p channelsPayload) ([]chat.Channel, error) {
		if p.Channels == nil {
			return []chat.Channel{}, nil
		}
		return p.Channels, nil
	})
}

// GetChannel fetches a single channel by id.
func (c *Client) GetChannel(ctx context.Context, id chat.ID) Result[chat.Channel] {
	r := call[channelPayload](ctx, c, http.MethodGet, "/m/channel", func(req *resty.Request) {
		req.SetQueryParam("id", id.String())
	})
	return mapResult(r, unwrapChannel)
}

// CreateChannel opens a direct channel with the given user.
func (c *Client) CreateChannel(ctx context.Context, userID chat.ID) Result[chat.Channel] {
	r := call[channelPayload](ctx, c, http.MethodPost, "/m/create", func(req *resty.Request) {
		req.SetFormData(map[string]string{"userId": userID.String()})
	})
	return mapResult(r, unwrapChannel)
}

// GetOrCreateChannelWithUser returns the direct channel with userID. A direct
// channel's id equals its counterpart's user id, so the channel is looked up
// by that id first and created only when the lookup is rejected.
func (c *Client) GetOrCreateChannelWithUser(ctx context.Context, userID chat.ID) Result[chat.Channel] {
	existing := c.GetChannel(ctx, userID)
	if existing.Success {
		return existing
	}
	if existing.Error.Kind() != KindRejected {
		return existing
	}

	c.log.Debug().Str("user_id", userID.String()).Msg("no existing channel, creating")
	return c.CreateChannel(ctx, userID)
}

// GetCounter returns the number of unread messages across all channels.
func (c *Client) GetCounter(ctx context.Context) Result[int] {
	r := call[counterPayload](ctx, c, http.MethodGet, "/m/counter", nil)
	return mapResult(r, func(p counterPayload) (int, error) { return p.Counter, nil })
}

func unwrapChannel(p channelPayload) (chat.Channel, error) {
	if p.Channel == nil {
		return chat.Channel{}, errMissingChannel
	}
	return *p.Channel, nil
}

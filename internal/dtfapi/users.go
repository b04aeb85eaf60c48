package dtfapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

type usersPayload struct {
	Users []chat.UserSummary `json:"users"`
}

// SearchUsers finds users by name.
func (c *Client) SearchUsers(ctx context.Context, query string, limit int) Result[[]chat.UserSummary] {
	if limit <= 0 {
		limit = 10
	}

	r := call[usersPayload](ctx, c, http.MethodGet, "/users/search", func(req *resty.Request) {
		req.SetQueryParam("q", query)
		req.SetQueryParam("limit", strconv.Itoa(limit))
	})
	return mapResult(r, func(p usersPayload) ([]chat.UserSummary, error) {
		if p.Users == nil {
			return []chat.UserSummary{}, nil
		}
		return p.Users, nil
	})
}

// Ping checks that the API accepts the current token and reports the round trip time.
func (c *Client) Ping(ctx context.Context) Result[time.Duration] {
	start := time.Now()
	r := c.GetCounter(ctx)
	return mapResult(r, func(int) (time.Duration, error) { return time.Since(start), nil })
}

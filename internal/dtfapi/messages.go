package dtfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

var errMissingMessage = errors.New("missing message")

// DefaultPageSize is the number of messages requested per page.
const DefaultPageSize = 20

// MessagesQuery selects a page of history. BeforeTime is unix seconds; zero
// requests the newest page.
type MessagesQuery struct {
	ChannelID  chat.ID
	BeforeTime int64
	Limit      int
}

// MessagesPage is one page of history.
type MessagesPage struct {
	Messages []chat.Message
	HasMore  bool
}

// SendRequest describes an outgoing message.
type SendRequest struct {
	ChannelID chat.ID
	Text      string
	Media     []chat.MediaRef
	// ClientTimestamp is unix seconds.
	ClientTimestamp int64
	ClientTmpID     string
}

type messagesPayload struct {
	Messages []chat.Message `json:"messages"`
}

type messagePayload struct {
	Message *chat.Message `json:"message"`
}

// GetMessages fetches a page of messages. A page shorter than the limit means
// history is exhausted.
func (c *Client) GetMessages(ctx context.Context, q MessagesQuery) Result[MessagesPage] {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}

	r := call[messagesPayload](ctx, c, http.MethodGet, "/m/messages", func(req *resty.Request) {
		req.SetQueryParam("channelId", q.ChannelID.String())
		req.SetQueryParam("limit", strconv.Itoa(q.Limit))
		if q.BeforeTime > 0 {
			req.SetQueryParam("beforeTime", strconv.FormatInt(q.BeforeTime, 10))
		}
	})

	return mapResult(r, func(p messagesPayload) (MessagesPage, error) {
		msgs := p.Messages
		if msgs == nil {
			msgs = []chat.Message{}
		}
		for i := range msgs {
			if msgs[i].ChannelID.IsZero() {
				msgs[i].ChannelID = q.ChannelID
			}
		}
		return MessagesPage{
			Messages: msgs,
			HasMore:  len(msgs) == q.Limit,
		}, nil
	})
}

// SendMessage posts a message and returns the server-confirmed record.
func (c *Client) SendMessage(ctx context.Context, s SendRequest) Result[chat.Message] {
	media := s.Media
	if media == nil {
		media = []chat.MediaRef{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return Fail[chat.Message](CodeValidation, fmt.Sprintf("encode media: %v", err))
	}

	r := call[messagePayload](ctx, c, http.MethodPost, "/m/send", func(req *resty.Request) {
		req.SetFormData(map[string]string{
			"channelId": s.ChannelID.String(),
			"text":      s.Text,
			"ts":        strconv.FormatInt(s.ClientTimestamp, 10),
			"idTmp":     s.ClientTmpID,
			"media":     string(mediaJSON),
		})
	})

	return mapResult(r, func(p messagePayload) (chat.Message, error) {
		if p.Message == nil {
			return chat.Message{}, errMissingMessage
		}
		m := *p.Message
		if m.ChannelID.IsZero() {
			m.ChannelID = s.ChannelID
		}
		if m.TmpID == "" {
			m.TmpID = s.ClientTmpID
		}
		return m, nil
	})
}

// MarkAsRead marks the given messages of a channel as read.
func (c *Client) MarkAsRead(ctx context.Context, channelID chat.ID, messageIDs []chat.ID) Result[struct{}] {
	if messageIDs == nil {
		messageIDs = []chat.ID{}
	}
	ids, err := json.Marshal(messageIDs)
	if err != nil {
		return Fail[struct{}](CodeValidation, fmt.Sprintf("encode message ids: %v", err))
	}

	return call[struct{}](ctx, c, http.MethodPost, "/m/read", func(req *resty.Request) {
		req.SetFormData(map[string]string{
			"channelId":  channelID.String(),
			"messageIds": string(ids),
		})
	})
}

// UploadMedia uploads one attachment. The API answers with either a single
// media object or a list; the first entry is used.
func (c *Client) UploadMedia(ctx context.Context, a chat.Attachment) Result[chat.MediaRef] {
	r := call[json.RawMessage](ctx, c, http.MethodPost, "/uploader/upload", func(req *resty.Request) {
		req.SetFileReader("file", a.Name, bytes.NewReader(a.Data))
	})

	return mapResult(r, func(raw json.RawMessage) (chat.MediaRef, error) {
		var ref chat.MediaRef
		if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			var list []chat.MediaRef
			if err := json.Unmarshal(raw, &list); err != nil {
				return ref, err
			}
			if len(list) == 0 {
				return ref, errors.New("empty upload result")
			}
			ref = list[0]
		} else if err := json.Unmarshal(raw, &ref); err != nil {
			return ref, err
		}

		if ref.UUID == "" {
			return ref, errors.New("upload result has no uuid")
		}
		if ref.Kind == "" {
			ref.Kind = a.Kind()
		}
		return ref, nil
	})
}

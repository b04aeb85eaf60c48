// Package chat defines the channel and message types exchanged with the DTF messenger API.
package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TmpIDPrefix marks identifiers generated locally for optimistic placeholders.
const TmpIDPrefix = "tmp-"

// ID identifies a user, channel or message. The API sends numeric ids while
// placeholders use string ids, so ID decodes from either.
type ID string

// UnmarshalJSON accepts a JSON number, string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON encodes numeric ids as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return id == "" }

// IsTemporary reports whether the id was generated locally for a placeholder.
func (id ID) IsTemporary() bool { return strings.HasPrefix(string(id), TmpIDPrefix) }

// UserSummary is a user as seen by the messenger. It is always replaced
// wholesale, never patched.
type UserSummary struct {
	ID          ID     `json:"id"`
	DisplayName string `json:"title"`
	AvatarURL   string `json:"picture,omitempty"`
}

// Channel is a conversation thread.
type Channel struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	PictureURL  string   `json:"picture,omitempty"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
}

// LastActivity returns the creation time of the last message, or zero.
func (c Channel) LastActivity() int64 {
	if c.LastMessage == nil {
		return 0
	}
	return c.LastMessage.CreatedAt
}

// Message is a single chat message. CreatedAt is in unix seconds.
type Message struct {
	ID        ID          `json:"id"`
	TmpID     string      `json:"idTmp,omitempty"`
	Text      string      `json:"text"`
	Media     []MediaRef  `json:"media,omitempty"`
	Author    UserSummary `json:"author"`
	ChannelID ID          `json:"channelId,omitempty"`
	CreatedAt int64       `json:"dtCreated"`
	IsRead    bool        `json:"isRead,omitempty"`
}

// Time returns CreatedAt as a time.Time.
func (m Message) Time() time.Time {
	return time.Unix(m.CreatedAt, 0)
}

// IsPlaceholder reports whether the message is an unconfirmed local copy.
func (m Message) IsPlaceholder() bool {
	return m.ID.IsTemporary()
}

// HasContent reports whether the message carries text or media.
func (m Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || len(m.Media) > 0
}

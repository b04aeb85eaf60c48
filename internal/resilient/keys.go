package resilient

import (
	"strconv"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

// Request keys. Keys derived from parameters let unrelated calls run
// concurrently while identical calls are deduplicated.
const (
	KeyChannels    = "channels-list"
	KeyCounter     = "messages-counter"
	KeyHealthCheck = "health-check"
)

func KeyChannel(id chat.ID) string           { return "channel-" + id.String() }
func KeyCreateChannel(userID chat.ID) string { return "create-channel-" + userID.String() }
func KeyMessages(channelID chat.ID) string   { return "messages-" + channelID.String() }
func KeyMarkRead(channelID chat.ID) string   { return "mark-read-" + channelID.String() }
func KeySearchUsers(query string) string     { return "search-users-" + query }

// KeyUpload identifies the i-th attachment of the message with tmpID.
func KeyUpload(tmpID string, i int, name string) string {
	return "upload-" + tmpID + "-" + strconv.Itoa(i) + "-" + name
}

// KeySendMessage includes the placeholder id so that two different messages
// sent to one channel are never merged.
func KeySendMessage(channelID chat.ID, tmpID string) string {
	return "send-message-" + channelID.String() + "-" + tmpID
}

// KeyOlderMessages identifies a history page request.
func KeyOlderMessages(channelID chat.ID, before int64) string {
	return "messages-" + channelID.String() + "-before-" + strconv.FormatInt(before, 10)
}

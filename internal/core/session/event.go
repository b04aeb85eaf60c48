package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

// BroadcastChannel is the name of the channel the host page announces session changes on.
const BroadcastChannel = "osnova-events"

// EventType is the kind of a session broadcast.
type EventType string

const (
	EventUpdated EventType = "auth session updated"
	EventLogout  EventType = "auth logout"
	EventError   EventType = "auth error"
)

// Event is a session broadcast as emitted by the host page.
type Event struct {
	Type   EventType   `json:"type"`
	Detail EventDetail `json:"detail"`
}

// EventDetail carries the payload of an Event.
type EventDetail struct {
	Session   *EventSession `json:"session,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

// EventSession is the session payload of an EventUpdated event.
type EventSession struct {
	AccessToken string            `json:"accessToken"`
	User        *chat.UserSummary `json:"user,omitempty"`
	ExpiresAt   *int64            `json:"expiresAt,omitempty"`
}

// DecodeEvent parses a raw broadcast message.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode session event: %w", err)
	}

	switch ev.Type {
	case EventUpdated:
		if ev.Detail.Session == nil || ev.Detail.Session.AccessToken == "" {
			return Event{}, fmt.Errorf("session event %q: %w", ev.Type, ErrMissingToken)
		}
	case EventLogout, EventError:
	default:
		return Event{}, fmt.Errorf("session event %q: %w", ev.Type, ErrUnknownEvent)
	}

	return ev, nil
}

// Handler receives decoded session events.
type Handler func(Event)

// EventSource delivers session events. Subscribe returns once the
// subscription is established; events are delivered until unsubscribe is
// called or ctx is done.
type EventSource interface {
	Subscribe(ctx context.Context, handler Handler) (unsubscribe func(), err error)
}

// EventSourceFunc adapts a function to EventSource.
type EventSourceFunc func(ctx context.Context, handler Handler) (func(), error)

func (f EventSourceFunc) Subscribe(ctx context.Context, handler Handler) (func(), error) {
	return f(ctx, handler)
}

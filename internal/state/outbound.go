package state

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

// ErrInvalidTransition is returned by Reduce for actions the current state does not accept.
var ErrInvalidTransition = errors.New("invalid outbound transition")

// OutboundState is the lifecycle of one message the user sends.
//
//	Composing -> Uploading -> Sending -> Sent
//	                 \            \---> Failed
//	                  \-----------------> Failed
//
// Uploading is skipped for messages without attachments. Failed messages
// re-enter Composing when resubmitted.
type OutboundState int

const (
	Composing OutboundState = iota
	Uploading
	Sending
	Sent
	Failed
)

func (s OutboundState) String() string {
	switch s {
	case Composing:
		return "composing"
	case Uploading:
		return "uploading"
	case Sending:
		return "sending"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("OutboundState(%d)", int(s))
	}
}

// Outbound is a message on its way to the server, keyed by LocalID. LocalID
// doubles as the placeholder message id and the client tmp id sent to the API.
type Outbound struct {
	LocalID     string
	ChannelID   chat.ID
	Text        string
	Attachments []chat.Attachment
	Media       []chat.MediaRef
	CreatedAt   int64
	State       OutboundState
	Confirmed   *chat.Message
	Err         error
}

// Placeholder is the optimistic message shown while o is in flight.
func (o Outbound) Placeholder(author chat.UserSummary) chat.Message {
	return chat.Message{
		ID:        chat.ID(o.LocalID),
		TmpID:     o.LocalID,
		Text:      o.Text,
		Media:     slices.Clone(o.Media),
		Author:    author,
		ChannelID: o.ChannelID,
		CreatedAt: o.CreatedAt,
		IsRead:    true,
	}
}

// Action is an event applied to an Outbound by Reduce.
type Action interface{ outboundAction() }

type (
	// Submit leaves Composing.
	Submit struct{}
	// UploadsDone carries the media references of every attachment.
	UploadsDone struct{ Media []chat.MediaRef }
	// Confirm carries the server's copy of the message.
	Confirm struct{ Message chat.Message }
	// Fail records a failed upload or send.
	Fail struct{ Err error }
	// Resubmit returns a failed message to Composing.
	Resubmit struct{}
)

func (Submit) outboundAction()      {}
func (UploadsDone) outboundAction() {}
func (Confirm) outboundAction()     {}
func (Fail) outboundAction()        {}
func (Resubmit) outboundAction()    {}

// Reduce applies a to o and returns the new value. o is not modified.
func Reduce(o Outbound, a Action) (Outbound, error) {
	invalid := func() (Outbound, error) {
		return o, fmt.Errorf("%w: %T in state %s", ErrInvalidTransition, a, o.State)
	}

	switch a := a.(type) {
	case Submit:
		if o.State != Composing {
			return invalid()
		}
		o.Err = nil
		if len(o.Attachments) > 0 {
			o.State = Uploading
		} else {
			o.State = Sending
		}

	case UploadsDone:
		if o.State != Uploading {
			return invalid()
		}
		if len(a.Media) != len(o.Attachments) {
			return o, fmt.Errorf("%w: %d media for %d attachments", ErrInvalidTransition, len(a.Media), len(o.Attachments))
		}
		o.Media = slices.Clone(a.Media)
		o.State = Sending

	case Confirm:
		if o.State != Sending {
			return invalid()
		}
		m := a.Message
		o.Confirmed = &m
		o.State = Sent

	case Fail:
		if o.State != Uploading && o.State != Sending {
			return invalid()
		}
		o.Err = a.Err
		o.State = Failed

	case Resubmit:
		if o.State != Failed {
			return invalid()
		}
		o.Err = nil
		o.Media = nil
		o.Confirmed = nil
		o.State = Composing

	default:
		return invalid()
	}

	return o, nil
}

// outbox is an insertion-ordered collection of Outbound keyed by LocalID.
type outbox struct {
	items []Outbound
}

func (b *outbox) index(localID string) int {
	return slices.IndexFunc(b.items, func(o Outbound) bool { return o.LocalID == localID })
}

func (b *outbox) get(localID string) (Outbound, bool) {
	if i := b.index(localID); i >= 0 {
		return b.items[i], true
	}
	return Outbound{}, false
}

func (b *outbox) put(o Outbound) {
	if i := b.index(o.LocalID); i >= 0 {
		b.items[i] = o
		return
	}
	b.items = append(b.items, o)
}

func (b *outbox) remove(localID string) {
	if i := b.index(localID); i >= 0 {
		b.items = slices.Delete(b.items, i, i+1)
	}
}

// apply reduces the entry for localID in place.
func (b *outbox) apply(localID string, a Action) (Outbound, error) {
	i := b.index(localID)
	if i < 0 {
		return Outbound{}, fmt.Errorf("outbound %s: %w", localID, ErrInvalidTransition)
	}
	next, err := Reduce(b.items[i], a)
	if err != nil {
		return b.items[i], err
	}
	b.items[i] = next
	return next, nil
}

func (b *outbox) snapshot() []Outbound {
	return slices.Clone(b.items)
}

func (b *outbox) reset() {
	b.items = nil
}

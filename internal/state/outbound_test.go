package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

func TestReduce(t *testing.T) {
	png := chat.Attachment{Name: "a.png", MIMEType: "image/png", Data: []byte("x")}
	boom := errors.New("boom")

	tests := []struct {
		name    string
		start   Outbound
		actions []Action
		want    OutboundState
		wantErr bool
	}{
		{
			name:    "text goes straight to sending",
			start:   Outbound{Text: "hi"},
			actions: []Action{Submit{}},
			want:    Sending,
		},
		{
			name:    "attachments upload first",
			start:   Outbound{Attachments: []chat.Attachment{png}},
			actions: []Action{Submit{}},
			want:    Uploading,
		},
		{
			name:    "uploads then send then sent",
			start:   Outbound{Attachments: []chat.Attachment{png}},
			actions: []Action{Submit{}, UploadsDone{Media: []chat.MediaRef{{UUID: "u"}}}, Confirm{Message: chat.Message{ID: "5"}}},
			want:    Sent,
		},
		{
			name:    "upload failure",
			start:   Outbound{Attachments: []chat.Attachment{png}},
			actions: []Action{Submit{}, Fail{Err: boom}},
			want:    Failed,
		},
		{
			name:    "send failure then resubmit",
			start:   Outbound{Text: "hi"},
			actions: []Action{Submit{}, Fail{Err: boom}, Resubmit{}},
			want:    Composing,
		},
		{
			name:    "partial media is rejected",
			start:   Outbound{Attachments: []chat.Attachment{png, png}},
			actions: []Action{Submit{}, UploadsDone{Media: []chat.MediaRef{{UUID: "u"}}}},
			wantErr: true,
		},
		{
			name:    "confirm while composing",
			start:   Outbound{Text: "hi"},
			actions: []Action{Confirm{}},
			wantErr: true,
		},
		{
			name:    "resubmit a sent message",
			start:   Outbound{Text: "hi"},
			actions: []Action{Submit{}, Confirm{}, Resubmit{}},
			wantErr: true,
		},
		{
			name:    "uploads done without uploading",
			start:   Outbound{Text: "hi"},
			actions: []Action{Submit{}, UploadsDone{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.start
			var err error
			for _, a := range tt.actions {
				o, err = Reduce(o, a)
				if err != nil {
					break
				}
			}

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.State)
		})
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	o := Outbound{Text: "hi"}

	next, err := Reduce(o, Submit{})
	require.NoError(t, err)

	assert.Equal(t, Composing, o.State)
	assert.Equal(t, Sending, next.State)
}

func TestReduce_FailKeepsError(t *testing.T) {
	boom := errors.New("boom")
	o, _ := Reduce(Outbound{Text: "hi"}, Submit{})

	o, err := Reduce(o, Fail{Err: boom})
	require.NoError(t, err)
	assert.ErrorIs(t, o.Err, boom)

	o, err = Reduce(o, Resubmit{})
	require.NoError(t, err)
	assert.NoError(t, o.Err)
}

func TestOutbound_Placeholder(t *testing.T) {
	o := Outbound{LocalID: "tmp-1", ChannelID: "9", Text: "hi", CreatedAt: 50}

	m := o.Placeholder(chat.UserSummary{ID: "1"})

	assert.True(t, m.IsPlaceholder())
	assert.Equal(t, "tmp-1", m.TmpID)
	assert.Equal(t, chat.ID("9"), m.ChannelID)
	assert.Equal(t, int64(50), m.CreatedAt)
}

func TestOutboundState_String(t *testing.T) {
	assert.Equal(t, "uploading", Uploading.String())
	assert.Equal(t, "OutboundState(42)", OutboundState(42).String())
}

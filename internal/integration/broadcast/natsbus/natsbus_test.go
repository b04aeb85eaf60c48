package natsbus

import (
	"context"
	"io"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

func TestCallback(t *testing.T) {
	var got []session.Event
	cb := Callback(func(ev session.Event) { got = append(got, ev) }, zerolog.New(io.Discard))

	cb(&nats.Msg{Subject: "osnova-events", Data: []byte(`{"type":"auth error","detail":{"error":"expired"}}`)})
	cb(&nats.Msg{Subject: "osnova-events", Data: []byte(`{"type":"something else"}`)})

	require.Len(t, got, 1)
	assert.Equal(t, session.EventError, got[0].Type)
	assert.Equal(t, "expired", got[0].Detail.Error)
}

func TestNew_Defaults(t *testing.T) {
	s := New(Options{}, zerolog.New(io.Discard))

	assert.Equal(t, nats.DefaultURL, s.opts.URL)
	assert.Equal(t, session.BroadcastChannel, s.opts.Subject)
}

func TestSubscribe_ConnectionError(t *testing.T) {
	s := New(Options{URL: "nats://127.0.0.1:1"}, zerolog.New(io.Discard))

	_, err := s.Subscribe(context.Background(), func(session.Event) {})
	require.Error(t, err)
}

package redisbus

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

func TestForward(t *testing.T) {
	ch := make(chan *redis.Message, 3)
	ch <- &redis.Message{Channel: "osnova-events", Payload: `{"type":"auth session updated","detail":{"session":{"accessToken":"t"}}}`}
	ch <- &redis.Message{Channel: "osnova-events", Payload: `garbage`}
	ch <- &redis.Message{Channel: "osnova-events", Payload: `{"type":"auth logout","detail":{}}`}
	close(ch)

	var got []session.Event
	Forward(context.Background(), ch, func(ev session.Event) { got = append(got, ev) }, zerolog.New(io.Discard))

	require.Len(t, got, 2)
	assert.Equal(t, "t", got[0].Detail.Session.AccessToken)
	assert.Equal(t, session.EventLogout, got[1].Type)
}

func TestForward_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		Forward(ctx, make(chan *redis.Message), func(session.Event) {}, zerolog.New(io.Discard))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not return after cancel")
	}
}

func TestSubscribe_ConnectionError(t *testing.T) {
	s := New(Options{Addr: "127.0.0.1:1"}, zerolog.New(io.Discard))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := s.Subscribe(ctx, func(session.Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "osnova-events")
}

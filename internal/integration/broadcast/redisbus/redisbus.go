// Package redisbus receives session broadcasts relayed over Redis Pub/Sub.
package redisbus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

// Options configures a Source.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Source is a session.EventSource backed by a Redis channel.
type Source struct {
	opts Options
	log  zerolog.Logger
}

// New creates a Source.
func New(opts Options, log zerolog.Logger) *Source {
	if opts.Channel == "" {
		opts.Channel = session.BroadcastChannel
	}
	return &Source{opts: opts, log: log}
}

// Subscribe connects, subscribes to the channel, and forwards decoded events
// to handler until ctx is done or unsubscribe is called.
func (s *Source) Subscribe(ctx context.Context, handler session.Handler) (func(), error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     s.opts.Addr,
		Password: s.opts.Password,
		DB:       s.opts.DB,
	})

	ps := rdb.Subscribe(ctx, s.opts.Channel)
	// Receive waits for the subscription confirmation so connection errors surface here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("subscribe to redis channel %s: %w", s.opts.Channel, err)
	}

	s.log.Info().Str("addr", s.opts.Addr).Str("channel", s.opts.Channel).Msg("listening for session events on redis")

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		Forward(ctx, ps.Channel(), handler, s.log)
	}()

	return func() {
		cancel()
		_ = ps.Close()
		<-done
		_ = rdb.Close()
	}, nil
}

// Forward decodes payloads from ch and passes valid events to handler.
func Forward(ctx context.Context, ch <-chan *redis.Message, handler session.Handler, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := session.DecodeEvent([]byte(msg.Payload))
			if err != nil {
				log.Debug().Err(err).Str("channel", msg.Channel).Msg("ignoring malformed session event")
				continue
			}
			handler(ev)
		}
	}
}

// Package natsbus receives session broadcasts relayed over a NATS subject.
package natsbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

// Options configures a Source.
type Options struct {
	URL     string
	Subject string
}

// Source is a session.EventSource backed by a NATS subscription.
type Source struct {
	opts Options
	log  zerolog.Logger
}

// New creates a Source.
func New(opts Options, log zerolog.Logger) *Source {
	if opts.URL == "" {
		opts.URL = nats.DefaultURL
	}
	if opts.Subject == "" {
		opts.Subject = session.BroadcastChannel
	}
	return &Source{opts: opts, log: log}
}

// Subscribe connects and forwards decoded events to handler until ctx is
// done or unsubscribe is called.
func (s *Source) Subscribe(ctx context.Context, handler session.Handler) (func(), error) {
	nc, err := nats.Connect(s.opts.URL,
		nats.Name("dtfchat"),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", s.opts.URL, err)
	}

	sub, err := nc.Subscribe(s.opts.Subject, Callback(handler, s.log))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to nats subject %s: %w", s.opts.Subject, err)
	}

	s.log.Info().Str("url", s.opts.URL).Str("subject", s.opts.Subject).Msg("listening for session events on nats")

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		nc.Close()
	}()

	return cancel, nil
}

// Callback adapts handler to a NATS message handler, dropping malformed events.
func Callback(handler session.Handler, log zerolog.Logger) nats.MsgHandler {
	return func(m *nats.Msg) {
		ev, err := session.DecodeEvent(m.Data)
		if err != nil {
			log.Debug().Err(err).Str("subject", m.Subject).Msg("ignoring malformed session event")
			return
		}
		handler(ev)
	}
}

package messenger

import (
	"context"
	"time"
)

// AutoRefresh polls the unread counter, the channel list and the open
// channel until ctx is done. onUpdate, if set, runs after any poll that
// changed state. Polls are skipped while unauthenticated.
func (s *Service) AutoRefresh(ctx context.Context, onUpdate func()) {
	cfg := s.config.Refresh
	if !cfg.Enabled {
		return
	}

	counter := newTicker(cfg.Counter)
	defer counter.stop()
	channels := newTicker(cfg.Channels)
	defer channels.stop()
	messages := newTicker(cfg.Messages)
	defer messages.stop()

	notify := func() {
		if onUpdate != nil {
			onUpdate()
		}
	}

	lastCounter := -1
	for {
		select {
		case <-ctx.Done():
			return

		case <-counter.c:
			if !s.auth.IsAuthenticated() {
				continue
			}
			n, err := s.channels.LoadCounter(ctx)
			if err != nil {
				s.log.Debug().Err(err).Msg("counter poll failed")
				continue
			}
			if lastCounter >= 0 && n != lastCounter {
				// the counter moved, pull the list now instead of waiting
				if err := s.channels.Load(ctx); err == nil {
					notify()
				}
			}
			lastCounter = n

		case <-channels.c:
			if !s.auth.IsAuthenticated() {
				continue
			}
			if err := s.channels.Load(ctx); err != nil {
				s.log.Debug().Err(err).Msg("channel poll failed")
				continue
			}
			notify()

		case <-messages.c:
			id := s.messages.ChannelID()
			if id.IsZero() || !s.auth.IsAuthenticated() {
				continue
			}
			added, err := s.messages.Refresh(ctx)
			if err != nil {
				s.log.Debug().Err(err).Msg("message poll failed")
				continue
			}
			if added > 0 {
				if s.channels.ActiveID() == id {
					if err := s.MarkRead(ctx, id); err != nil {
						s.log.Debug().Err(err).Msg("mark as read after poll failed")
					}
				}
				notify()
			}
		}
	}
}

// ticker is a time.Ticker that never fires when its interval is not positive.
type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

func newTicker(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{t: t, c: t.C}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}

package state

import (
	"slices"
	"strings"
	"time"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

type typingEntry struct {
	user  chat.UserSummary
	gen   uint64
	timer *time.Timer
}

// AddTypingUser shows u as typing until TypingTimeout passes without another
// call for the same user.
func (s *MessageStore) AddTypingUser(u chat.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.typing[u.ID]; ok {
		e.timer.Stop()
	}

	s.typingGen++
	gen := s.typingGen
	s.typing[u.ID] = &typingEntry{
		user:  u,
		gen:   gen,
		timer: time.AfterFunc(s.opts.TypingTimeout, func() { s.expireTyping(u.ID, gen) }),
	}
}

// RemoveTypingUser hides the typing indicator for id immediately.
func (s *MessageStore) RemoveTypingUser(id chat.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.typing[id]; ok {
		e.timer.Stop()
		delete(s.typing, id)
	}
}

// TypingUsers returns the users currently typing, ordered by name.
func (s *MessageStore) TypingUsers() []chat.UserSummary {
	s.mu.Lock()
	out := make([]chat.UserSummary, 0, len(s.typing))
	for _, e := range s.typing {
		out = append(out, e.user)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b chat.UserSummary) int {
		if c := strings.Compare(a.DisplayName, b.DisplayName); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// expireTyping runs on the timer goroutine. A refreshed entry has a newer
// gen and is kept.
func (s *MessageStore) expireTyping(id chat.ID, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.typing[id]; ok && e.gen == gen {
		delete(s.typing, id)
	}
}

func (s *MessageStore) clearTypingLocked() {
	for id, e := range s.typing {
		e.timer.Stop()
		delete(s.typing, id)
	}
}

// Package session defines the authentication session, the broadcast events
// that change it, and the interfaces used to persist and receive it.
package session

import (
	"time"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

// DefaultLifetime is how long a session stays valid after it was issued.
const DefaultLifetime = 24 * time.Hour

// Session is the current bearer token and the user it belongs to.
type Session struct {
	Token     string
	User      *chat.UserSummary
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// New builds a session issued at now. ExpiresAt is always now + lifetime.
func New(token string, user *chat.UserSummary, now time.Time, lifetime time.Duration) Session {
	s := Session{
		Token:    token,
		User:     user,
		IssuedAt: now,
	}
	if lifetime > 0 {
		exp := now.Add(lifetime)
		s.ExpiresAt = &exp
	}
	return s
}

// IsAuthenticated returns true if the session carries a token that has not expired.
func (s Session) IsAuthenticated(now time.Time) bool {
	return s.Token != "" && !s.Expired(now)
}

// Expired returns true if the session has an expiry in the past.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// TimeUntilExpiry returns the remaining lifetime, or zero when unknown or expired.
func (s Session) TimeUntilExpiry(now time.Time) time.Duration {
	if s.ExpiresAt == nil {
		return 0
	}
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Record is the persisted form of a session. Times are unix milliseconds.
type Record struct {
	User         *chat.UserSummary `json:"user"`
	AccessToken  string            `json:"accessToken"`
	ExpiresAt    *int64            `json:"expiresAt"`
	LastActivity int64             `json:"lastActivity"`
}

// ToRecord converts the session for persistence.
func (s Session) ToRecord(now time.Time) Record {
	r := Record{
		User:         s.User,
		AccessToken:  s.Token,
		LastActivity: now.UnixMilli(),
	}
	if s.ExpiresAt != nil {
		ms := s.ExpiresAt.UnixMilli()
		r.ExpiresAt = &ms
	}
	return r
}

// Session rebuilds a session from the record. IssuedAt is derived from the
// expiry when one is set so that ExpiresAt - IssuedAt stays equal to lifetime.
func (r Record) Session(lifetime time.Duration) Session {
	s := Session{
		Token: r.AccessToken,
		User:  r.User,
	}
	if r.ExpiresAt != nil {
		exp := time.UnixMilli(*r.ExpiresAt)
		s.ExpiresAt = &exp
		s.IssuedAt = exp.Add(-lifetime)
	} else {
		s.IssuedAt = time.UnixMilli(r.LastActivity)
	}
	return s
}

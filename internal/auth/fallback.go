package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/core/session"
)

// ErrNoToken is returned when no extractor found a token.
var ErrNoToken = errors.New("no token found")

// Candidate is a token found by an Extractor.
type Candidate struct {
	Token  string
	User   *chat.UserSummary
	Source string
}

// Extractor is one best-effort way of finding a token outside the broadcast channel.
type Extractor interface {
	Name() string
	Extract(ctx context.Context) (Candidate, error)
}

// Fallback tries its extractors in order; the first match wins. It
// implements session.EventSource by emitting one synthetic session update.
type Fallback struct {
	extractors []Extractor
	now        func() time.Time
	log        zerolog.Logger
}

// NewFallback creates a Fallback over the given extractors.
func NewFallback(log zerolog.Logger, extractors ...Extractor) *Fallback {
	return &Fallback{extractors: extractors, now: time.Now, log: log}
}

// Find returns the first candidate any extractor produces.
func (f *Fallback) Find(ctx context.Context) (Candidate, error) {
	for _, ex := range f.extractors {
		c, err := ex.Extract(ctx)
		if err != nil {
			f.log.Debug().Err(err).Str("extractor", ex.Name()).Msg("extractor found nothing")
			continue
		}
		c.Source = ex.Name()
		return c, nil
	}
	return Candidate{}, ErrNoToken
}

// Subscribe emits a session update for the first candidate found. There is
// nothing to unsubscribe from.
func (f *Fallback) Subscribe(ctx context.Context, handler session.Handler) (func(), error) {
	c, err := f.Find(ctx)
	if err != nil {
		return nil, err
	}

	f.log.Info().Str("source", c.Source).Msg("token found by fallback")
	handler(session.Event{
		Type: session.EventUpdated,
		Detail: session.EventDetail{
			Session:   &session.EventSession{AccessToken: c.Token, User: c.User},
			Timestamp: f.now().UnixMilli(),
		},
	})
	return func() {}, nil
}

// EnvExtractor reads a token from an environment variable. The value is
// trusted as-is; JWT claims are used for user info when present.
type EnvExtractor struct {
	Var    string
	Lookup func(string) (string, bool)
}

func (e EnvExtractor) Name() string { return "env:" + e.Var }

func (e EnvExtractor) Extract(ctx context.Context) (Candidate, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	tok, ok := lookup(e.Var)
	tok = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tok), "Bearer "))
	if !ok || tok == "" {
		return Candidate{}, fmt.Errorf("%s: %w", e.Var, ErrNoToken)
	}

	c := Candidate{Token: tok}
	if claims, err := parseClaims(tok); err == nil {
		c.User = userFromClaims(claims)
	}
	return c, nil
}

// localStorageKeys are checked before scanning every value.
var localStorageKeys = []string{"accessToken", "access_token", "osnova-access-token", "auth", "session"}

// LocalStorageExtractor scans a JSON export of the host page's localStorage,
// a flat object of string values. Only JWT-shaped values are accepted.
type LocalStorageExtractor struct {
	Path string
	Now  func() time.Time
}

func (e LocalStorageExtractor) Name() string { return "localstorage:" + e.Path }

func (e LocalStorageExtractor) Extract(ctx context.Context) (Candidate, error) {
	if e.Path == "" {
		return Candidate{}, ErrNoToken
	}

	data, err := os.ReadFile(e.Path)
	if err != nil {
		return Candidate{}, fmt.Errorf("read localStorage dump: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return Candidate{}, fmt.Errorf("parse localStorage dump: %w", err)
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	for _, key := range localStorageKeys {
		if v, ok := entries[key]; ok {
			if c, ok := candidateFromValue(v, now()); ok {
				return c, nil
			}
		}
	}

	// unknown keys in key order so the same dump always yields the same token
	for _, key := range slices.Sorted(maps.Keys(entries)) {
		if c, ok := candidateFromValue(entries[key], now()); ok {
			return c, nil
		}
	}

	return Candidate{}, ErrNoToken
}

// candidateFromValue accepts a raw JWT or a JSON object holding one under accessToken.
func candidateFromValue(v string, now time.Time) (Candidate, bool) {
	v = strings.TrimSpace(v)

	if strings.HasPrefix(v, "{") {
		var obj struct {
			AccessToken string            `json:"accessToken"`
			User        *chat.UserSummary `json:"user"`
		}
		if err := json.Unmarshal([]byte(v), &obj); err != nil || obj.AccessToken == "" {
			return Candidate{}, false
		}
		c, ok := candidateFromValue(obj.AccessToken, now)
		if ok && obj.User != nil {
			c.User = obj.User
		}
		return c, ok
	}

	claims, err := parseClaims(v)
	if err != nil {
		return Candidate{}, false
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && !now.Before(exp.Time) {
		return Candidate{}, false
	}

	return Candidate{Token: v, User: userFromClaims(claims)}, true
}

// parseClaims decodes a JWT without verifying its signature; the server is
// the only party that can verify it.
func parseClaims(tok string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func userFromClaims(claims jwt.MapClaims) *chat.UserSummary {
	var id string
	for _, key := range []string{"user_id", "userId", "id", "sub"} {
		if v, ok := claims[key]; ok {
			id = fmt.Sprint(v)
			if f, ok := v.(float64); ok {
				id = fmt.Sprintf("%.0f", f)
			}
			break
		}
	}
	if id == "" {
		return nil
	}

	u := &chat.UserSummary{ID: chat.ID(id)}
	for _, key := range []string{"name", "title", "username"} {
		if v, ok := claims[key].(string); ok {
			u.DisplayName = v
			break
		}
	}
	return u
}

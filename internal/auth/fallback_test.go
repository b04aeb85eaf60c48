package auth

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/core/session"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func writeDump(t *testing.T, entries map[string]string) string {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "localstorage.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestEnvExtractor(t *testing.T) {
	tok := signedToken(t, jwt.MapClaims{"user_id": float64(42), "name": "Alice"})

	tests := []struct {
		name     string
		env      map[string]string
		wantTok  string
		wantUser *chat.UserSummary
		wantErr  bool
	}{
		{
			name:     "jwt with claims",
			env:      map[string]string{"DTFCHAT_TOKEN": tok},
			wantTok:  tok,
			wantUser: &chat.UserSummary{ID: "42", DisplayName: "Alice"},
		},
		{
			name:    "opaque token with bearer prefix",
			env:     map[string]string{"DTFCHAT_TOKEN": "Bearer opaque"},
			wantTok: "opaque",
		},
		{
			name:    "unset",
			env:     map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := EnvExtractor{Var: "DTFCHAT_TOKEN", Lookup: envLookup(tt.env)}

			c, err := ex.Extract(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTok, c.Token)
			assert.Equal(t, tt.wantUser, c.User)
		})
	}
}

func TestLocalStorageExtractor(t *testing.T) {
	now := time.Now()
	valid := signedToken(t, jwt.MapClaims{"sub": "7", "exp": float64(now.Add(time.Hour).Unix())})
	expired := signedToken(t, jwt.MapClaims{"sub": "8", "exp": float64(now.Add(-time.Hour).Unix())})

	t.Run("known key holding json", func(t *testing.T) {
		path := writeDump(t, map[string]string{
			"theme":   "dark",
			"session": `{"accessToken":"` + valid + `","user":{"id":7,"title":"Bob"}}`,
		})

		c, err := LocalStorageExtractor{Path: path}.Extract(context.Background())
		require.NoError(t, err)
		assert.Equal(t, valid, c.Token)
		assert.Equal(t, "Bob", c.User.DisplayName)
	})

	t.Run("scans unknown keys for jwt", func(t *testing.T) {
		path := writeDump(t, map[string]string{"something": valid, "theme": "dark"})

		c, err := LocalStorageExtractor{Path: path}.Extract(context.Background())
		require.NoError(t, err)
		assert.Equal(t, chat.ID("7"), c.User.ID)
	})

	t.Run("unknown keys scanned in key order", func(t *testing.T) {
		var tokens []string
		entries := map[string]string{}
		for i, key := range []string{"zeta", "alpha", "mid", "beta", "omega"} {
			tok := signedToken(t, jwt.MapClaims{"sub": key, "n": i, "exp": float64(now.Add(time.Hour).Unix())})
			tokens = append(tokens, tok)
			entries[key] = tok
		}
		path := writeDump(t, entries)

		for range 20 {
			c, err := LocalStorageExtractor{Path: path}.Extract(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tokens[1], c.Token, "alpha sorts first")
		}
	})

	t.Run("skips expired and non jwt values", func(t *testing.T) {
		path := writeDump(t, map[string]string{"accessToken": expired, "theme": "not.a.jwt"})

		_, err := LocalStorageExtractor{Path: path}.Extract(context.Background())
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LocalStorageExtractor{Path: filepath.Join(t.TempDir(), "none.json")}.Extract(context.Background())
		assert.Error(t, err)
	})
}

func TestFallback_FirstMatchWins(t *testing.T) {
	valid := signedToken(t, jwt.MapClaims{"sub": "7"})
	dump := writeDump(t, map[string]string{"accessToken": valid})

	t.Run("env before localStorage", func(t *testing.T) {
		f := NewFallback(zerolog.New(io.Discard),
			EnvExtractor{Var: "T", Lookup: envLookup(map[string]string{"T": "from-env"})},
			LocalStorageExtractor{Path: dump},
		)

		c, err := f.Find(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from-env", c.Token)
		assert.Equal(t, "env:T", c.Source)
	})

	t.Run("falls through to localStorage", func(t *testing.T) {
		f := NewFallback(zerolog.New(io.Discard),
			EnvExtractor{Var: "T", Lookup: envLookup(nil)},
			LocalStorageExtractor{Path: dump},
		)

		var got []session.Event
		unsub, err := f.Subscribe(context.Background(), func(ev session.Event) { got = append(got, ev) })
		require.NoError(t, err)
		unsub()

		require.Len(t, got, 1)
		assert.Equal(t, session.EventUpdated, got[0].Type)
		assert.Equal(t, valid, got[0].Detail.Session.AccessToken)
	})

	t.Run("nothing found", func(t *testing.T) {
		f := NewFallback(zerolog.New(io.Discard), EnvExtractor{Var: "T", Lookup: envLookup(nil)})

		_, err := f.Subscribe(context.Background(), func(session.Event) { t.Fatal("unexpected event") })
		assert.ErrorIs(t, err, ErrNoToken)
	})
}

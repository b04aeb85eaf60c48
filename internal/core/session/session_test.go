package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/dtfchat/internal/core/chat"
)

func TestSession_IsAuthenticated(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		sess Session
		want bool
	}{
		{
			name: "fresh session",
			sess: New("tok", nil, now, DefaultLifetime),
			want: true,
		},
		{
			name: "empty token is never authenticated",
			sess: New("", &chat.UserSummary{ID: "1"}, now, DefaultLifetime),
			want: false,
		},
		{
			name: "expired session",
			sess: New("tok", nil, now.Add(-25*time.Hour), DefaultLifetime),
			want: false,
		},
		{
			name: "no expiry",
			sess: Session{Token: "tok", IssuedAt: now},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sess.IsAuthenticated(now))
		})
	}
}

func TestNew_ExpiryIsIssuedPlusLifetime(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	s := New("tok", nil, now, time.Hour)

	require.NotNil(t, s.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *s.ExpiresAt)
	assert.Equal(t, 30*time.Minute, s.TimeUntilExpiry(now.Add(30*time.Minute)))
	assert.Zero(t, s.TimeUntilExpiry(now.Add(2*time.Hour)))
}

func TestRecord_RoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	user := &chat.UserSummary{ID: "42", DisplayName: "Alice"}
	s := New("tok", user, now, DefaultLifetime)

	got := s.ToRecord(now).Session(DefaultLifetime)

	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, user, got.User)
	assert.True(t, got.IssuedAt.Equal(now))
	assert.True(t, got.ExpiresAt.Equal(*s.ExpiresAt))
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    EventType
		wantErr error
	}{
		{
			name: "session updated",
			raw:  `{"type":"auth session updated","detail":{"session":{"accessToken":"abc","user":{"id":7,"title":"Bob"}},"timestamp":1}}`,
			want: EventUpdated,
		},
		{
			name: "logout",
			raw:  `{"type":"auth logout","detail":{"timestamp":1}}`,
			want: EventLogout,
		},
		{
			name: "auth error",
			raw:  `{"type":"auth error","detail":{"error":"boom"}}`,
			want: EventError,
		},
		{
			name:    "update without token",
			raw:     `{"type":"auth session updated","detail":{"session":{}}}`,
			wantErr: ErrMissingToken,
		},
		{
			name:    "unknown type",
			raw:     `{"type":"something else","detail":{}}`,
			wantErr: ErrUnknownEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.raw))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Type)
		})
	}
}

func TestDecodeEvent_UserID(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"auth session updated","detail":{"session":{"accessToken":"abc","user":{"id":7,"title":"Bob"}}}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Detail.Session.User)
	assert.Equal(t, chat.ID("7"), ev.Detail.Session.User.ID)
	assert.Equal(t, "Bob", ev.Detail.Session.User.DisplayName)
}

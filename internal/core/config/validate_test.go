package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Config with all required fields set for testing.
func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func TestLoad_Defaults(t *testing.T) {
	dataDir := t.TempDir()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), dataDir)
	require.NoError(t, err)

	assert.Equal(t, "https://api.dtf.ru/v2.5", cfg.API.BaseURL)
	assert.Equal(t, "JWTAuthorization", cfg.API.TokenHeader)
	assert.Equal(t, 2, cfg.Retry.Retries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 20, cfg.Messages.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Messages.TypingTimeout)
	assert.Equal(t, filepath.Join(dataDir, "session.json"), cfg.SessionFile())
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: http://localhost:8080/v2.5
retry:
  retries: 0
  base_delay: 250ms
messages:
  page_size: 50
broadcast:
  redis:
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/v2.5", cfg.API.BaseURL)
	assert.Equal(t, 0, cfg.Retry.Retries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 50, cfg.Messages.PageSize)
	assert.True(t, cfg.Broadcast.Redis.Enabled)
	assert.Equal(t, "osnova-events", cfg.Broadcast.Redis.Channel)
	// untouched sections keep their defaults
	assert.Equal(t, "JWTAuthorization", cfg.API.TokenHeader)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{
			name:   "relative base url",
			mutate: func(c *Config) { c.API.BaseURL = "/v2.5" },
			field:  "api.base_url",
		},
		{
			name:   "negative retries",
			mutate: func(c *Config) { c.Retry.Retries = -1 },
			field:  "retry.retries",
		},
		{
			name:   "zero page size",
			mutate: func(c *Config) { c.Messages.PageSize = 0 },
			field:  "messages.page_size",
		},
		{
			name:   "wait shorter than fallback",
			mutate: func(c *Config) { c.Session.WaitTimeout = time.Second; c.Session.FallbackDelay = 2 * time.Second },
			field:  "session.wait_timeout",
		},
		{
			name:   "nats without url",
			mutate: func(c *Config) { c.Broadcast.NATS.Enabled = true; c.Broadcast.NATS.URL = "" },
			field:  "broadcast.nats",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()

			var fieldErrs criterio.FieldErrors
			require.ErrorAs(t, err, &fieldErrs)
			require.Len(t, fieldErrs, 1)
			assert.Equal(t, tt.field, fieldErrs[0].Field)
		})
	}
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidateDeep_InvalidOrigin(t *testing.T) {
	cfg := validConfig(t)
	cfg.Broadcast.WebSocket.AllowedOrigins = []string{"https://dtf.ru", "dtf.ru"}

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 1)
	assert.Contains(t, fieldErrs[0].Field, "allowed_origins[1]")
}

func TestValidateDeep_MissingLocalStorageDump(t *testing.T) {
	cfg := validConfig(t)
	cfg.Session.LocalStorageDump = filepath.Join(t.TempDir(), "nope.json")

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "session.local_storage_dump", fieldErrs[0].Field)
}

func TestValidateDeep_ConfigIsDirectory(t *testing.T) {
	cfg := validConfig(t)

	err := cfg.ValidateDeep(t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "config", fieldErrs[0].Field)
}

func TestConfig_Warnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   []string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "no transports",
			mutate: func(c *Config) {
				c.Broadcast.WebSocket.Enabled = false
			},
			want: []string{"broadcast"},
		},
		{
			name: "bridge on all interfaces",
			mutate: func(c *Config) {
				c.Broadcast.WebSocket.Listen = "0.0.0.0:7717"
			},
			want: []string{"broadcast (websocket)"},
		},
		{
			name: "fallback without sources and refresh off",
			mutate: func(c *Config) {
				c.Session.TokenEnv = ""
				c.Refresh.Enabled = false
			},
			want: []string{"session (fallback)", "refresh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			var got []string
			for _, w := range cfg.Warnings() {
				label := w.Category
				if w.Item != "" {
					label += " (" + w.Item + ")"
				}
				got = append(got, label)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

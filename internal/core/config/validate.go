package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
)

// ValidateDeep performs comprehensive validation of the configuration.
// Unlike Validate(), this checks file access, listen addresses and origins.
func (c *Config) ValidateDeep(configPath string) error {
	var errs criterio.FieldErrorsBuilder

	if err := c.Validate(); err != nil {
		var fieldErrs criterio.FieldErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = errs.Append(fe.Field, fe.Err)
		}
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil && info.IsDir() {
			errs = errs.Append("config", fmt.Errorf("%s is a directory, not a file", configPath))
		}
	}

	if info, err := os.Stat(c.DataDir); err == nil && !info.IsDir() {
		errs = errs.Append("data_dir", fmt.Errorf("%s exists but is not a directory", c.DataDir))
	}

	if dump := c.Session.LocalStorageDump; dump != "" {
		if _, err := os.Stat(dump); err != nil {
			errs = errs.Append("session.local_storage_dump", fmt.Errorf("cannot access %s: %w", dump, err))
		}
	}

	ws := c.Broadcast.WebSocket
	if ws.Enabled {
		if _, _, err := net.SplitHostPort(ws.Listen); err != nil {
			errs = errs.Append("broadcast.websocket.listen", fmt.Errorf("invalid address %q: %w", ws.Listen, err))
		}
		if !strings.HasPrefix(ws.Path, "/") {
			errs = errs.Append("broadcast.websocket.path", fmt.Errorf("must start with /, got %q", ws.Path))
		}
		for i, origin := range ws.AllowedOrigins {
			if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
				errs = errs.Append(fmt.Sprintf("broadcast.websocket.allowed_origins[%d]", i), fmt.Errorf("invalid origin %q", origin))
			}
		}
	}

	for i, prefix := range c.Messages.AllowedTypes {
		if !strings.Contains(prefix, "/") {
			errs = errs.Append(fmt.Sprintf("messages.allowed_types[%d]", i), fmt.Errorf("expected a MIME type or prefix, got %q", prefix))
		}
	}

	return errs.ToError()
}

// ValidationWarning is a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Warnings returns settings that are valid but likely unintended.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	b := c.Broadcast
	if !b.WebSocket.Enabled && !b.Redis.Enabled && !b.NATS.Enabled {
		msg := "no broadcast transport enabled; tokens only come from the stored session"
		if c.Session.Fallback {
			msg += " or the fallback sources"
		}
		warnings = append(warnings, ValidationWarning{Category: "broadcast", Message: msg})
	}

	if b.WebSocket.Enabled {
		if host, _, err := net.SplitHostPort(b.WebSocket.Listen); err == nil && !isLoopback(host) {
			warnings = append(warnings, ValidationWarning{
				Category: "broadcast",
				Item:     "websocket",
				Message:  fmt.Sprintf("bridge listens on %s, reachable from other machines", b.WebSocket.Listen),
			})
		}
		if len(b.WebSocket.AllowedOrigins) == 0 {
			warnings = append(warnings, ValidationWarning{
				Category: "broadcast",
				Item:     "websocket",
				Message:  "no allowed origins; browser pages cannot connect",
			})
		}
	}

	if c.Session.Fallback && c.Session.TokenEnv == "" && c.Session.LocalStorageDump == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "session",
			Item:     "fallback",
			Message:  "enabled but neither token_env nor local_storage_dump is set",
		})
	}

	if !c.Refresh.Enabled {
		warnings = append(warnings, ValidationWarning{
			Category: "refresh",
			Message:  "auto refresh disabled; new messages appear only on manual reload",
		})
	}

	return warnings
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

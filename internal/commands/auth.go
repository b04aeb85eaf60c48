package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

// authenticate waits for a session and turns a missing one into an
// actionable error.
func authenticate(ctx context.Context, flags *Flags) error {
	err := flags.Service.Initialize(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, session.ErrNotAuthenticated) {
		return err
	}

	cfg := flags.Config
	hint := "log in on " + cfg.API.SiteURL
	if cfg.Broadcast.WebSocket.Enabled {
		hint += " with the bridge userscript installed (dtfchat bridge script)"
	}
	if cfg.Session.Fallback && cfg.Session.TokenEnv != "" {
		hint += " or set " + cfg.Session.TokenEnv
	}
	return fmt.Errorf("%w: %s", err, hint)
}

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/dtfchat/internal/auth"
	"github.com/hay-kot/dtfchat/internal/core/session"
	"github.com/hay-kot/dtfchat/internal/printer"
	"github.com/hay-kot/dtfchat/pkg/executil"
)

type SessionCmd struct {
	flags *Flags
	json  bool
}

// NewSessionCmd creates a new session command.
func NewSessionCmd(flags *Flags) *SessionCmd {
	return &SessionCmd{flags: flags}
}

// Register adds the session command to the application.
func (cmd *SessionCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "session",
		Usage: "Inspect and manage the authentication session",
		Description: `The session holds the bearer token used for every API call.

Tokens arrive from the host site through the configured broadcast transports
(the local WebSocket bridge, Redis or NATS), from the persisted session file,
or from the fallback sources when enabled.`,
		Commands: []*cli.Command{
			cmd.statusCmd(),
			cmd.listenCmd(),
			cmd.logoutCmd(),
			cmd.openCmd(),
		},
	})

	return app
}

// SessionStatus represents the output of the session status command.
type SessionStatus struct {
	Authenticated bool       `json:"authenticated"`
	UserID        string     `json:"userId,omitempty"`
	UserName      string     `json:"userName,omitempty"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	File          string     `json:"file"`
}

func (cmd *SessionCmd) statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the current session",
		UsageText: "dtfchat session status [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print status as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.runStatus,
	}
}

func (cmd *SessionCmd) runStatus(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)
	mgr := cmd.flags.Service.Auth()

	if err := mgr.Initialize(ctx); err != nil && !errors.Is(err, session.ErrNotAuthenticated) {
		return err
	}

	status := SessionStatus{File: cmd.flags.Config.SessionFile()}
	if s, ok := mgr.Current(); ok {
		status.Authenticated = mgr.IsAuthenticated()
		if s.User != nil {
			status.UserID = s.User.ID.String()
			status.UserName = s.User.DisplayName
		}
		if !s.IssuedAt.IsZero() {
			issued := s.IssuedAt
			status.IssuedAt = &issued
		}
		status.ExpiresAt = s.ExpiresAt
	}
	if err := mgr.LastError(); err != nil {
		status.LastError = err.Error()
	}

	if cmd.json {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	if !status.Authenticated {
		p.Warnf("Not authenticated")
	} else {
		p.Successf("Authenticated as %s (%s)", status.UserName, status.UserID)
	}
	if status.ExpiresAt != nil {
		p.Infof("Expires %s", status.ExpiresAt.Format(time.DateTime))
	}
	if status.LastError != "" {
		p.Errorf("Last error: %s", status.LastError)
	}
	p.Infof("Stored in %s", status.File)
	return nil
}

func (cmd *SessionCmd) listenCmd() *cli.Command {
	return &cli.Command{
		Name:      "listen",
		Usage:     "Wait for a session broadcast",
		UsageText: "dtfchat session listen",
		Description: `Subscribes to the configured broadcast transports and prints every session
event until interrupted. Use it to check that the bridge userscript reaches
dtfchat after logging in on the host site.`,
		Action: cmd.runListen,
	}
}

func (cmd *SessionCmd) runListen(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)
	mgr := cmd.flags.Service.Auth()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr.OnChange(func(ch auth.Change) {
		switch {
		case ch.Err != nil:
			p.Errorf("%s: %v", ch.Type, ch.Err)
		case ch.Authenticated():
			name := "unknown user"
			if ch.Session.User != nil {
				name = ch.Session.User.DisplayName
			}
			p.Successf("%s: %s", ch.Type, name)
		default:
			p.Warnf("%s", ch.Type)
		}
	})

	if cfg := cmd.flags.Config.Broadcast.WebSocket; cfg.Enabled {
		p.Infof("Bridge listening on %s", cfg.URL())
	}

	err := mgr.Initialize(ctx)
	switch {
	case err == nil:
		p.Successf("Session available")
	case errors.Is(err, session.ErrNotAuthenticated):
		p.Infof("No session yet, waiting for broadcasts")
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}

	<-ctx.Done()
	return nil
}

func (cmd *SessionCmd) logoutCmd() *cli.Command {
	return &cli.Command{
		Name:      "logout",
		Usage:     "Forget the stored session",
		UsageText: "dtfchat session logout",
		Action: func(ctx context.Context, _ *cli.Command) error {
			if err := cmd.flags.Service.Auth().Logout(ctx); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			printer.Ctx(ctx).Successf("Logged out")
			return nil
		},
	}
}

func (cmd *SessionCmd) openCmd() *cli.Command {
	return &cli.Command{
		Name:        "open",
		Usage:       "Open the host site in the browser to log in",
		UsageText:   "dtfchat session open",
		Description: "Opens the configured site with the browser command from the config file.",
		Action: func(ctx context.Context, _ *cli.Command) error {
			cfg := cmd.flags.Config
			if err := executil.OpenURL(&executil.RealExecutor{}, cfg.Browser, cfg.API.SiteURL); err != nil {
				return fmt.Errorf("open %s: %w", cfg.API.SiteURL, err)
			}
			printer.Ctx(ctx).Successf("Opened %s", cfg.API.SiteURL)
			return nil
		},
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/dtfchat/internal/integration/broadcast/wsbridge"
	"github.com/hay-kot/dtfchat/internal/printer"
)

type BridgeCmd struct {
	flags *Flags
}

// NewBridgeCmd creates a new bridge command
func NewBridgeCmd(flags *Flags) *BridgeCmd {
	return &BridgeCmd{flags: flags}
}

// Register adds the bridge command to the application
func (cmd *BridgeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "bridge",
		Usage: "Session bridge helpers",
		Commands: []*cli.Command{
			{
				Name:      "script",
				Usage:     "Print the userscript that relays session broadcasts",
				UsageText: "dtfchat bridge script > dtfchat.user.js",
				Description: `Prints a userscript for Tampermonkey or Violentmonkey. Installed in the
browser, it forwards the site's session broadcasts to the local WebSocket
bridge so dtfchat receives the token as soon as you log in.`,
				Action: cmd.runScript,
			},
		},
	})

	return app
}

func (cmd *BridgeCmd) runScript(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	ws := cfg.Broadcast.WebSocket

	script, err := wsbridge.Userscript(wsbridge.ScriptOptions{
		URL:     ws.URL(),
		SiteURL: cfg.API.SiteURL,
		Version: c.Root().Version,
	})
	if err != nil {
		return fmt.Errorf("render userscript: %w", err)
	}

	if !ws.Enabled {
		printer.Ctx(ctx).Warnf("broadcast.websocket.enabled is false; the script will have nothing to connect to")
	}

	_, err = fmt.Fprint(c.Root().Writer, script)
	return err
}

package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/dtfchat/internal/printer"
)

type ReadCmd struct {
	flags *Flags
}

// NewReadCmd creates a new read command
func NewReadCmd(flags *Flags) *ReadCmd {
	return &ReadCmd{flags: flags}
}

// Register adds the read command to the application
func (cmd *ReadCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "read",
		Usage:       "Mark a channel as read",
		UsageText:   "dtfchat read <channel>",
		Description: "Marks the newest page of a channel as read. The unread count is restored if the server rejects the request.",
		Action:      cmd.run,
	})

	return app
}

func (cmd *ReadCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	id, err := channelArg(c)
	if err != nil {
		return err
	}

	if err := authenticate(ctx, cmd.flags); err != nil {
		return err
	}

	svc := cmd.flags.Service
	if err := svc.LoadChannels(ctx); err != nil {
		return err
	}
	if err := svc.ReadChannel(ctx, id); err != nil {
		return err
	}

	p.Successf("Channel %s marked as read", id)
	if total := svc.Channels().TotalUnreadCount(); total > 0 {
		p.Infof("%d unread message(s) left in other channels", total)
	}
	return nil
}

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/printer"
)

type SendCmd struct {
	flags  *Flags
	attach []string
}

// NewSendCmd creates a new send command
func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

// Register adds the send command to the application
func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "send",
		Usage:     "Send a message to a channel",
		UsageText: "dtfchat send <channel> [text...] [--attach <glob>]...",
		Description: `Sends a message with optional attachments.

Text is taken from the remaining arguments, or from stdin when none are given
and stdin is not a terminal. Attachments accept doublestar globs and are
uploaded before the message is sent.

Example:
  dtfchat send 12345 hello there
  dtfchat send 12345 --attach 'shots/**/*.png'
  echo "from a pipe" | dtfchat send 12345`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "attach",
				Aliases:     []string{"a"},
				Usage:       "file or glob pattern to attach (repeatable)",
				Destination: &cmd.attach,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	id, err := channelArg(c)
	if err != nil {
		return err
	}

	text := strings.Join(c.Args().Tail(), " ")
	if text == "" && !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimRight(string(data), "\n")
	}

	attachments, err := loadAttachments(cmd.attach)
	if err != nil {
		return err
	}

	if err := authenticate(ctx, cmd.flags); err != nil {
		return err
	}

	svc := cmd.flags.Service
	if err := svc.LoadChannels(ctx); err != nil {
		return fmt.Errorf("load channels: %w", err)
	}
	if err := svc.OpenChannel(ctx, id); err != nil {
		return err
	}

	msg, err := svc.Send(ctx, text, attachments)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	p.Success("Message sent", fmt.Sprintf("id %s in channel %s", msg.ID, id))
	return nil
}

// loadAttachments expands glob patterns and reads every matched file.
func loadAttachments(patterns []string) ([]chat.Attachment, error) {
	var (
		attachments []chat.Attachment
		seen        = map[string]bool{}
	)

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid attachment pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}

		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true

			a, err := chat.ReadAttachment(path)
			if err != nil {
				return nil, err
			}
			attachments = append(attachments, a)
		}
	}

	return attachments, nil
}

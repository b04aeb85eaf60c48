package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/printer"
)

type ChannelsCmd struct {
	flags  *Flags
	filter string
	json   bool
}

// NewChannelsCmd creates a new channels command
func NewChannelsCmd(flags *Flags) *ChannelsCmd {
	return &ChannelsCmd{flags: flags}
}

// Register adds the channels command to the application
func (cmd *ChannelsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "channels",
		Aliases:     []string{"ls"},
		Usage:       "List conversations",
		UsageText:   "dtfchat channels [options]",
		Description: "Displays conversations ordered by latest activity with their unread counts.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "filter",
				Aliases:     []string{"f"},
				Usage:       "only show channels whose title or last message contains this text",
				Destination: &cmd.filter,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print channels as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ChannelsCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if err := authenticate(ctx, cmd.flags); err != nil {
		return err
	}

	store := cmd.flags.Service.Channels()
	if err := cmd.flags.Service.LoadChannels(ctx); err != nil {
		return fmt.Errorf("load channels: %w", err)
	}

	channels := store.Filter(cmd.filter)

	out := c.Root().Writer
	if cmd.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(channels)
	}

	if len(channels) == 0 {
		p.Infof("No channels found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tUNREAD\tLAST ACTIVITY\tLAST MESSAGE")
	for _, ch := range channels {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ch.ID, ch.Title, unreadLabel(ch.UnreadCount), activity(ch), preview(ch.LastMessage, 40))
	}
	_ = w.Flush()

	if total := store.TotalUnreadCount(); total > 0 {
		fmt.Fprintln(out)
		p.Warnf("%d unread message(s)", total)
	}

	return nil
}

func unreadLabel(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

func activity(ch chat.Channel) string {
	if ch.LastActivity() == 0 {
		return "-"
	}
	return time.Unix(ch.LastActivity(), 0).Format(time.DateTime)
}

// preview returns the first line of a message shortened to n runes.
func preview(m *chat.Message, n int) string {
	if m == nil {
		return ""
	}

	text := firstLine(m.Text)
	if text == "" && len(m.Media) > 0 {
		text = fmt.Sprintf("[%d attachment(s)]", len(m.Media))
	}

	runes := []rune(text)
	if len(runes) > n {
		return string(runes[:n-1]) + "…"
	}
	return text
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/printer"
	"github.com/hay-kot/dtfchat/internal/styles"
)

type MessagesCmd struct {
	flags  *Flags
	before string
	pages  int
	render bool
	json   bool
}

// NewMessagesCmd creates a new messages command
func NewMessagesCmd(flags *Flags) *MessagesCmd {
	return &MessagesCmd{flags: flags}
}

// Register adds the messages command to the application
func (cmd *MessagesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "messages",
		Aliases:   []string{"history"},
		Usage:     "Show the history of a channel",
		UsageText: "dtfchat messages <channel> [options]",
		Description: `Prints messages of a channel oldest first.

By default the newest page is shown. Use --pages to walk further back and
--before to start from a point in time (unix seconds or RFC 3339).

Reading history does not mark messages as read; use 'dtfchat read' for that.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "before",
				Usage:       "only show messages older than this time",
				Destination: &cmd.before,
			},
			&cli.IntFlag{
				Name:        "pages",
				Aliases:     []string{"n"},
				Usage:       "number of pages to fetch",
				Value:       1,
				Destination: &cmd.pages,
			},
			&cli.BoolFlag{
				Name:        "render",
				Aliases:     []string{"r"},
				Usage:       "render message text as markdown",
				Destination: &cmd.render,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print messages as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *MessagesCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	id, err := channelArg(c)
	if err != nil {
		return err
	}

	before, err := parseBefore(cmd.before)
	if err != nil {
		return err
	}

	if err := authenticate(ctx, cmd.flags); err != nil {
		return err
	}

	msgs, err := cmd.flags.Service.History(ctx, id, before, cmd.pages)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}

	if len(msgs) == 0 {
		p.Infof("No messages")
		return nil
	}

	var r *glamour.TermRenderer
	if cmd.render {
		r, err = newRenderer()
		if err != nil {
			return err
		}
	}

	self := selfID(cmd.flags)
	for _, m := range msgs {
		writeMessage(out, m, self, r)
	}
	return nil
}

// channelArg reads the required channel id argument.
func channelArg(c *cli.Command) (chat.ID, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("channel id required\n\nUsage: %s", c.UsageText)
	}
	return chat.ID(arg), nil
}

// parseBefore accepts unix seconds or an RFC 3339 timestamp.
func parseBefore(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("invalid --before %q: use unix seconds or RFC 3339", s)
	}
	return t.Unix(), nil
}

func selfID(flags *Flags) chat.ID {
	if s, ok := flags.Service.Auth().Current(); ok && s.User != nil {
		return s.User.ID
	}
	return ""
}

// newRenderer builds a markdown renderer wrapped to the terminal width.
func newRenderer() (*glamour.TermRenderer, error) {
	width := 80
	style := glamour.WithStandardStyle("notty")

	fd := int(os.Stdout.Fd())
	if term.IsTerminal(fd) {
		style = glamour.WithAutoStyle()
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			width = w - 4
		}
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return r, nil
}

// writeMessage prints one message with its author header. r may be nil.
func writeMessage(w io.Writer, m chat.Message, self chat.ID, r *glamour.TermRenderer) {
	author := m.Author.DisplayName
	if author == "" {
		author = m.Author.ID.String()
	}

	name := styles.AuthorStyle.Render(author)
	if self != "" && m.Author.ID == self {
		name = styles.SelfStyle.Render(author)
	}

	_, _ = fmt.Fprintf(w, "%s %s\n", name, styles.TimestampStyle.Render(m.Time().Format(time.DateTime)))

	text := m.Text
	if r != nil && text != "" {
		if rendered, err := r.Render(text); err == nil {
			text = strings.Trim(rendered, "\n")
		}
	}
	if text != "" {
		_, _ = fmt.Fprintln(w, indent(text, "  "))
	}
	for _, media := range m.Media {
		_, _ = fmt.Fprintf(w, "  %s %s\n", styles.TimestampStyle.Render("["+string(media.Kind)+"]"), media.PreviewURL())
	}
	_, _ = fmt.Fprintln(w)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

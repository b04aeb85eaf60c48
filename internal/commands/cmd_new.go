package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/dtfchat/internal/core/chat"
	"github.com/hay-kot/dtfchat/internal/printer"
)

type NewCmd struct {
	flags  *Flags
	userID string
}

// NewNewCmd creates a new new command
func NewNewCmd(flags *Flags) *NewCmd {
	return &NewCmd{flags: flags}
}

// Register adds the new command to the application
func (cmd *NewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "new",
		Usage:     "Start a conversation with a user",
		UsageText: "dtfchat new [query...]",
		Description: `Searches users by name and opens the direct conversation with the one
you pick. The conversation is created if it does not exist yet.

Example:
  dtfchat new alice
  dtfchat new --user 12345`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id to open directly, skipping the search",
				Destination: &cmd.userID,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *NewCmd) run(ctx context.Context, c *cli.Command) error {
	p := printer.Ctx(ctx)

	if err := authenticate(ctx, cmd.flags); err != nil {
		return err
	}

	userID := chat.ID(strings.TrimSpace(cmd.userID))
	if userID.IsZero() {
		picked, err := cmd.pick(ctx, strings.Join(c.Args().Slice(), " "))
		if err != nil {
			return err
		}
		if picked.IsZero() {
			p.Infof("No user selected")
			return nil
		}
		userID = picked
	}

	ch, err := cmd.flags.Service.StartChat(ctx, userID)
	if err != nil {
		return err
	}

	p.Success("Conversation ready", fmt.Sprintf("%s (channel %s)", ch.Title, ch.ID))
	return nil
}

// pick searches for users and lets the user choose one.
func (cmd *NewCmd) pick(ctx context.Context, query string) (chat.ID, error) {
	if strings.TrimSpace(query) == "" {
		err := huh.NewInput().
			Title("Search users").
			Placeholder("name").
			Value(&query).
			Run()
		if err != nil {
			return "", fmt.Errorf("read query: %w", err)
		}
	}

	users, err := cmd.flags.Service.SearchUsers(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search users: %w", err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("no users match %q", query)
	}
	if len(users) == 1 {
		return users[0].ID, nil
	}

	options := make([]huh.Option[chat.ID], 0, len(users))
	for _, u := range users {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%s)", u.DisplayName, u.ID), u.ID))
	}

	var selected chat.ID
	err = huh.NewSelect[chat.ID]().
		Title("Start a conversation with").
		Options(options...).
		Value(&selected).
		Run()
	if err != nil {
		return "", fmt.Errorf("select user: %w", err)
	}
	return selected, nil
}

package commands

import (
	"context"
	"encoding/json"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/dtfchat/internal/commands/doctor"
	"github.com/hay-kot/dtfchat/internal/printer"
	"github.com/hay-kot/dtfchat/internal/store/jsonfile"
)

// doctorSessionWait bounds how long doctor waits for a session broadcast.
const doctorSessionWait = 3 * time.Second

type DoctorCmd struct {
	flags  *Flags
	format string
	fix    bool
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your dtfchat setup",
		UsageText:   "dtfchat doctor [options]",
		Description: "Runs diagnostic checks on configuration, the session bridge, the stored session, and API reachability.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "remove an unreadable session file",
				Destination: &cmd.fix,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	var (
		cfg = cmd.flags.Config
		svc = cmd.flags.Service
		mgr = svc.Auth()
	)

	// The bridge check binds the listen address, so it runs before the
	// session check starts the bridge.
	checks := []doctor.Check{
		doctor.NewConfigCheck(cfg, cmd.flags.ConfigPath),
		doctor.NewBridgeCheck(cfg.Broadcast.WebSocket),
		doctor.NewSessionCheck(jsonfile.New(cfg.SessionFile()), mgr, doctorSessionWait, cmd.fix),
		doctor.NewAPICheck(svc, cfg.API.BaseURL, mgr.IsAuthenticated),
	}

	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(ctx, results)
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(doctor.NewReport(results))
}

func (cmd *DoctorCmd) outputText(ctx context.Context, results []doctor.Result) error {
	p := printer.Ctx(ctx)

	for _, result := range results {
		p.Section(result.Name)

		for _, item := range result.Items {
			switch item.Status {
			case doctor.StatusPass:
				p.CheckItem(item.Label, item.Detail)
			case doctor.StatusWarn:
				p.WarnItem(item.Label, item.Detail)
			case doctor.StatusFail:
				p.FailItem(item.Label, item.Detail)
			}
			if item.Hint != "" && !item.Fixed {
				p.Printf("    %s", p.Dim(item.Hint))
			}
		}

		p.Printf("")
	}

	report := doctor.NewReport(results)
	sum := report.Summary
	p.Printf("Summary: %d passed, %d warnings, %d failed", sum.Passed, sum.Warned, sum.Failed)

	if sum.Fixable > 0 {
		p.Infof("Run 'dtfchat doctor --fix' to repair %d issue(s)", sum.Fixable)
	}

	if !report.Healthy {
		return cli.Exit("", 1)
	}

	return nil
}

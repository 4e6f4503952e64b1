package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mentor/internal/commands/doctor"
	"github.com/hay-kot/mentor/internal/printer"
)

type DoctorCmd struct {
	flags  *Flags
	format string
	fix    bool
	ping   bool
	only   []string
}

func NewDoctorCmd(flags *Flags) *DoctorCmd {
	return &DoctorCmd{flags: flags}
}

func (cmd *DoctorCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:        "doctor",
		Usage:       "Run health checks on your mentor setup",
		UsageText:   "mentor doctor [options]",
		Description: "Runs diagnostic checks on configuration, storage, and the reply provider.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &cmd.format,
			},
			&cli.BoolFlag{
				Name:        "fix",
				Usage:       "create a missing data directory",
				Destination: &cmd.fix,
			},
			&cli.BoolFlag{
				Name:        "ping",
				Usage:       "send one short query to the reply provider",
				Destination: &cmd.ping,
			},
			&cli.StringSliceFlag{
				Name:        "only",
				Usage:       "run only the named checks (config, store, gateway)",
				Destination: &cmd.only,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DoctorCmd) run(ctx context.Context, c *cli.Command) error {
	checks, err := selectChecks(map[string]doctor.Check{
		"config":  doctor.NewConfigCheck(cmd.flags.Config, cmd.flags.ConfigPath),
		"store":   doctor.NewStoreCheck(cmd.flags.Config, cmd.fix),
		"gateway": doctor.NewGatewayCheck(cmd.flags.Config, cmd.ping),
	}, cmd.only)
	if err != nil {
		return err
	}

	results := doctor.RunAll(ctx, checks)

	if cmd.format == "json" {
		return cmd.outputJSON(c, results)
	}

	return cmd.outputText(ctx, results)
}

var checkOrder = []string{"config", "store", "gateway"}

// selectChecks returns the checks named in only, in run order. An empty
// selection runs everything.
func selectChecks(available map[string]doctor.Check, only []string) ([]doctor.Check, error) {
	want := make(map[string]bool, len(only))
	for _, name := range only {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := available[name]; !ok {
			return nil, fmt.Errorf("unknown check %q (valid: %s)", name, strings.Join(checkOrder, ", "))
		}
		want[name] = true
	}

	checks := make([]doctor.Check, 0, len(available))
	for _, name := range checkOrder {
		if len(want) == 0 || want[name] {
			checks = append(checks, available[name])
		}
	}
	return checks, nil
}

func (cmd *DoctorCmd) outputJSON(c *cli.Command, results []doctor.Result) error {
	passed, warned, failed := doctor.Summary(results)

	out := struct {
		Healthy bool            `json:"healthy"`
		Summary summaryJSON     `json:"summary"`
		Checks  []doctor.Result `json:"checks"`
	}{
		Healthy: doctor.Healthy(results),
		Summary: summaryJSON{Passed: passed, Warned: warned, Failed: failed},
		Checks:  results,
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type summaryJSON struct {
	Passed int `json:"passed"`
	Warned int `json:"warned"`
	Failed int `json:"failed"`
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
		}

		p.Printf("")
	}

	passed, warned, failed := doctor.Summary(results)
	p.Printf("Summary: %d passed, %d warnings, %d failed", passed, warned, failed)

	if n := doctor.CountFixable(results); n > 0 {
		p.Infof("%d issue(s) can be fixed with --fix", n)
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}

	return nil
}

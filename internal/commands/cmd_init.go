package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/printer"
	"github.com/hay-kot/mentor/internal/setup"
	"github.com/hay-kot/mentor/pkg/randid"
)

type InitCmd struct {
	flags *Flags

	force bool
	yes   bool
	sets  []string
}

// NewInitCmd creates a new init command.
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application.
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Create a configuration file",
		UsageText: "mentor init [options]",
		Description: `Asks for a user id, reply provider and storage backend and writes the
configuration file.

Answers can be given up front with --set, which is required when stdin is not
a terminal. Known settings: user_id, provider, backend, project, api_key_env,
server.

Examples:
  mentor init
  mentor init --yes --set provider=openai --set backend=sqlite`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "overwrite an existing configuration file",
				Destination: &cmd.force,
			},
			&cli.BoolFlag{
				Name:        "yes",
				Aliases:     []string{"y"},
				Usage:       "accept defaults without prompting",
				Destination: &cmd.yes,
			},
			&cli.StringSliceFlag{
				Name:        "set",
				Usage:       "answer a setting as name=value",
				Destination: &cmd.sets,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *InitCmd) run(ctx context.Context, _ *cli.Command) error {
	p := printer.Ctx(ctx)
	path := cmd.flags.ConfigPath

	if _, err := os.Stat(path); err == nil && !cmd.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	cfg.DataDir = cmd.flags.DataDir

	answers := setup.Defaults(&cfg)
	answers.UserID = randid.WithPrefix("user", 8)

	values, err := setup.ParseSetValues(cmd.sets)
	if err != nil {
		return err
	}
	if err := answers.Apply(values); err != nil {
		return err
	}

	if !cmd.yes && term.IsTerminal(int(os.Stdin.Fd())) {
		answers, err = setup.RunForm(answers)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
	}

	if err := answers.Validate(); err != nil {
		return err
	}

	answers.ApplyTo(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Save(path); err != nil {
		return err
	}

	p.Success("Configuration written", path)
	for _, w := range cfg.Warnings() {
		p.Warnf("%s: %s", w.Item, w.Message)
	}
	return nil
}

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/mentor"
	"github.com/hay-kot/mentor/internal/printer"
)

type AskCmd struct {
	flags *Flags

	user    string
	json    bool
	noSave  bool
	context bool

	stdin io.Reader
}

// NewAskCmd creates a new ask command.
func NewAskCmd(flags *Flags) *AskCmd {
	return &AskCmd{flags: flags, stdin: os.Stdin}
}

// Register adds the ask command to the application.
func (cmd *AskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ask",
		Usage:     "Ask the mentor a single question",
		UsageText: "mentor ask [options] [question...]",
		Description: `Sends one question and prints the reply.

The question is read from the arguments, or from stdin when none are given.
Both the question and the reply are saved to the user's history unless
--no-save is set.

Examples:
  mentor ask "How do I prepare for a job interview?"
  echo "I feel sick" | mentor ask --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id (overrides user_id in config)",
				Sources:     cli.EnvVars("MENTOR_USER"),
				Destination: &cmd.user,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the result as JSON",
				Destination: &cmd.json,
			},
			&cli.BoolFlag{
				Name:        "no-save",
				Usage:       "do not write the exchange to storage",
				Destination: &cmd.noSave,
			},
			&cli.BoolFlag{
				Name:        "context",
				Usage:       "load stored history first so it can be sent as context",
				Destination: &cmd.context,
			},
		},
		Action: cmd.run,
	})

	return app
}

type askResult struct {
	Outcome  mentor.Outcome `json:"outcome"`
	Category chat.Category  `json:"category,omitempty"`
	Reply    string         `json:"reply,omitempty"`
	Error    string         `json:"error,omitempty"`
	Kind     chat.ErrorKind `json:"kind,omitempty"`
}

func (cmd *AskCmd) run(ctx context.Context, c *cli.Command) error {
	text, err := readText(c.Args().Slice(), cmd.stdin)
	if err != nil {
		return err
	}

	user, err := resolveUser(cmd.user, cmd.flags)
	if err != nil {
		return err
	}

	rt, err := NewRuntime(ctx, cmd.flags.Config, RuntimeOptions{Gateway: true, Store: !cmd.noSave})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	ctl, err := rt.NewController(user, nil)
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	if cmd.context {
		rt.Hydrate(ctx, ctl)
	}

	res := ctl.Submit(ctx, text)
	// Flush queued writes before the store is closed.
	ctl.Close()

	out := askResult{
		Outcome:  res.Outcome,
		Category: res.User.Category,
		Reply:    res.Reply.Content,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
		out.Kind = chat.KindOf(res.Err)
	}

	if cmd.json {
		enc := json.NewEncoder(c.Root().Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		p := printer.Ctx(ctx)
		switch res.Outcome {
		case mentor.OutcomeReplied:
			_, _ = fmt.Fprintln(c.Root().Writer, res.Reply.Content)
		case mentor.OutcomeIgnored:
			p.Warnf("nothing to send: %s", res.Reason)
		default:
			p.Errorf("%s", out.Error)
		}
	}

	if res.Outcome != mentor.OutcomeReplied {
		return cli.Exit("", 1)
	}
	return nil
}

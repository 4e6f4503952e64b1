package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mentor/internal/core/chat"
)

type ClassifyCmd struct {
	flags *Flags
	json  bool

	stdin io.Reader
}

// NewClassifyCmd creates a new classify command.
func NewClassifyCmd(flags *Flags) *ClassifyCmd {
	return &ClassifyCmd{flags: flags, stdin: os.Stdin}
}

// Register adds the classify command to the application.
func (cmd *ClassifyCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "classify",
		Usage:     "Print the category a message would be tagged with",
		UsageText: "mentor classify [options] [text...]",
		Description: `Runs the keyword classifier without contacting a provider.

Categories are checked in order: health, legal, career, support. The first
category with a keyword contained anywhere in the lowercased text wins, and
anything else is general.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the result as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ClassifyCmd) run(_ context.Context, c *cli.Command) error {
	text, err := readText(c.Args().Slice(), cmd.stdin)
	if err != nil {
		return err
	}

	category := chat.Classify(text)
	w := c.Root().Writer

	if cmd.json {
		return json.NewEncoder(w).Encode(struct {
			Text     string        `json:"text"`
			Category chat.Category `json:"category"`
		}{Text: text, Category: category})
	}

	_, err = fmt.Fprintln(w, category)
	return err
}

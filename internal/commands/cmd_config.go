package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/printer"
)

const redacted = "<redacted>"

type ConfigCmd struct {
	flags  *Flags
	format string
}

func NewConfigCmd(flags *Flags) *ConfigCmd {
	return &ConfigCmd{flags: flags}
}

// Register adds the config command and its subcommands to the application.
func (cmd *ConfigCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Inspect and validate the configuration",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "mentor config validate [options]",
				Description: "Checks the prompt template, provider settings, storage, and server options.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.validate,
			},
			{
				Name:        "show",
				Usage:       "Print the effective configuration",
				UsageText:   "mentor config show",
				Description: "Prints the loaded configuration as YAML, defaults applied and API keys redacted.",
				Action:      cmd.show,
			},
		},
	})

	return app
}

func (cmd *ConfigCmd) validate(ctx context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	err := cmd.flags.Config.ValidateDeep(cmd.flags.ConfigPath)
	warnings := cmd.flags.Config.Warnings()

	if cmd.format == "json" {
		return writeValidationJSON(c, err, warnings)
	}

	return writeValidationText(printer.Ctx(ctx), err, warnings)
}

func (cmd *ConfigCmd) show(_ context.Context, c *cli.Command) error {
	if cmd.flags.Config == nil {
		return fmt.Errorf("configuration not loaded")
	}

	w := c.Root().Writer
	_, _ = fmt.Fprintf(w, "# config: %s\n# data dir: %s\n", cmd.flags.ConfigPath, cmd.flags.Config.DataDir)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(redact(*cmd.flags.Config)); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// redact returns a copy of cfg with inline secrets masked.
func redact(cfg config.Config) config.Config {
	if cfg.Gateway.Gemini.APIKey != "" {
		cfg.Gateway.Gemini.APIKey = redacted
	}
	if cfg.Gateway.OpenAI.APIKey != "" {
		cfg.Gateway.OpenAI.APIKey = redacted
	}
	return cfg
}

func writeValidationJSON(c *cli.Command, validationErr error, warnings []config.ValidationWarning) error {
	type fieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	out := struct {
		Valid    bool                       `json:"valid"`
		Errors   []fieldError               `json:"errors,omitempty"`
		Warnings []config.ValidationWarning `json:"warnings,omitempty"`
	}{
		Valid:    validationErr == nil,
		Warnings: warnings,
	}

	for _, fe := range fieldErrors(validationErr) {
		out.Errors = append(out.Errors, fieldError{Field: fe.Field, Message: fe.Err.Error()})
	}

	enc := json.NewEncoder(c.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func fieldErrors(err error) criterio.FieldErrors {
	if err == nil {
		return nil
	}
	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs
	}
	return criterio.FieldErrors{{Err: err}}
}

func writeValidationText(p *printer.Printer, validationErr error, warnings []config.ValidationWarning) error {
	fieldErrs := fieldErrors(validationErr)

	if len(fieldErrs) > 0 {
		p.Section("Errors")
		for _, fe := range fieldErrs {
			label := fe.Field
			if label == "" {
				label = "config"
			}
			p.FailItem(label, fe.Err.Error())
		}
	}

	if len(warnings) > 0 {
		p.Section("Warnings")
		for _, w := range warnings {
			label := w.Item
			if label == "" {
				label = w.Category
			}
			p.WarnItem(label, w.Message)
		}
	}

	p.Printf("")
	if validationErr != nil {
		p.Errorf("%d error(s), %d warning(s)", len(fieldErrs), len(warnings))
		return cli.Exit("", 1)
	}

	if len(warnings) > 0 {
		p.Successf("Configuration is valid (%d warning(s))", len(warnings))
	} else {
		p.Successf("Configuration is valid")
	}
	return nil
}

package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/tui"
)

type ChatCmd struct {
	flags *Flags

	user     string
	noBanner bool
}

// NewChatCmd creates a new chat command.
func NewChatCmd(flags *Flags) *ChatCmd {
	return &ChatCmd{flags: flags}
}

// Register adds the chat command to the application.
func (cmd *ChatCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "chat",
		Usage:     "Open the interactive chat",
		UsageText: "mentor chat [options]",
		Description: `Opens a full screen conversation with the mentor.

Previous messages for the user are loaded from storage. Press tab to filter
the conversation by category, esc to cancel a pending reply, ctrl+l to clear
the screen and ctrl+c to quit.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id (overrides user_id in config)",
				Sources:     cli.EnvVars("MENTOR_USER"),
				Destination: &cmd.user,
			},
			&cli.BoolFlag{
				Name:        "no-banner",
				Usage:       "hide the banner on an empty conversation",
				Destination: &cmd.noBanner,
			},
		},
		Action: cmd.run,
	})

	return app
}

// Run executes the chat UI. Exported for use as the default command.
func (cmd *ChatCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *ChatCmd) run(ctx context.Context, _ *cli.Command) error {
	user, err := resolveUser(cmd.user, cmd.flags)
	if err != nil {
		return err
	}

	rt, err := NewRuntime(ctx, cmd.flags.Config, RuntimeOptions{Gateway: true, Store: true})
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
	defer ctl.Close()

	rt.Hydrate(ctx, ctl)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := tui.New(ctx, ctl, tui.Options{Banner: !cmd.noBanner})
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	return nil
}

// resolveUser returns the --user value, or the configured user id, after
// checking it can name a conversation.
func resolveUser(user string, flags *Flags) (string, error) {
	if user == "" && flags.Config != nil {
		user = flags.Config.UserID
	}
	if err := chat.ValidateUserID(user); err != nil {
		return "", fmt.Errorf("user %q: %w", user, err)
	}
	return user, nil
}

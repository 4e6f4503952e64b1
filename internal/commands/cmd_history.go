package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mentor/internal/core/chat"
)

type HistoryCmd struct {
	flags *Flags

	user     string
	limit    int
	category string
	json     bool
	follow   bool

	retry backoff.BackOff
}

// NewHistoryCmd creates a new history command.
func NewHistoryCmd(flags *Flags) *HistoryCmd {
	return &HistoryCmd{flags: flags}
}

// Register adds the history command to the application.
func (cmd *HistoryCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "history",
		Usage:     "Print stored conversation history",
		UsageText: "mentor history [options]",
		Description: `Prints the most recent stored messages for a user, oldest first.

Use --follow to keep printing messages as they are stored, for example while
a chat is open in another terminal or the server is handling the user.

Examples:
  mentor history
  mentor history --category health --limit 10
  mentor history --follow --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id (overrides user_id in config)",
				Sources:     cli.EnvVars("MENTOR_USER"),
				Destination: &cmd.user,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "number of recent messages to read (default: storage.history_limit)",
				Destination: &cmd.limit,
			},
			&cli.StringFlag{
				Name:        "category",
				Aliases:     []string{"c"},
				Usage:       "only show messages in this category",
				Destination: &cmd.category,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print one JSON object per message",
				Destination: &cmd.json,
			},
			&cli.BoolFlag{
				Name:        "follow",
				Aliases:     []string{"f"},
				Usage:       "keep printing new messages until interrupted",
				Destination: &cmd.follow,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *HistoryCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.category != "" && cmd.category != "all" {
		category, err := chat.ParseCategory(cmd.category)
		if err != nil {
			return err
		}
		cmd.category = string(category)
	}

	user, err := resolveUser(cmd.user, cmd.flags)
	if err != nil {
		return err
	}

	rt, err := NewRuntime(ctx, cmd.flags.Config, RuntimeOptions{Store: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	limit := cmd.limit
	if limit <= 0 {
		limit = rt.Config.Storage.HistoryLimit
	}

	w := c.Root().Writer

	if !cmd.follow {
		msgs, err := chat.Latest(ctx, rt.Store, user, limit)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		return cmd.print(w, chat.Filter(msgs, cmd.category))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cmd.followStore(ctx, w, rt.Store, user, limit)
}

// followStore prints new messages until ctx ends. A subscription the store
// closes early is opened again after a backoff; messages already printed are
// not repeated.
func (cmd *HistoryCmd) followStore(ctx context.Context, w io.Writer, store chat.Store, user string, limit int) error {
	b := cmd.retry
	if b == nil {
		exp := backoff.NewExponentialBackOff()
		exp.MaxInterval = 30 * time.Second
		exp.MaxElapsedTime = 0
		b = exp
	}

	seen := make(map[string]bool)
	for attempt := 0; ; attempt++ {
		snaps, err := store.Subscribe(ctx, user, limit)
		switch {
		case err != nil && attempt == 0:
			return fmt.Errorf("subscribe: %w", err)
		case err != nil:
			log.Warn().Err(err).Int("attempt", attempt).Msg("resubscribe history")
		default:
			received, err := cmd.followSnapshots(ctx, w, snaps, seen)
			if err != nil {
				return err
			}
			if received {
				b.Reset()
			}
		}

		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("history subscription ended")
		}
		log.Debug().Dur("wait", wait).Msg("history subscription closed, resubscribing")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// followSnapshots prints each message not yet in seen, in the order it first
// appears, until snaps closes or ctx ends. It reports whether any snapshot
// was read without error.
func (cmd *HistoryCmd) followSnapshots(ctx context.Context, w io.Writer, snaps <-chan chat.Snapshot, seen map[string]bool) (bool, error) {
	received := false

	for {
		select {
		case <-ctx.Done():
			return received, nil
		case snap, ok := <-snaps:
			if !ok {
				return received, nil
			}
			if snap.Err != nil {
				log.Warn().Err(snap.Err).Msg("read history")
				continue
			}
			received = true

			var fresh []chat.Message
			for _, m := range snap.Messages {
				if seen[m.ID] {
					continue
				}
				seen[m.ID] = true
				fresh = append(fresh, m)
			}

			if err := cmd.print(w, chat.Filter(fresh, cmd.category)); err != nil {
				return received, err
			}
		}
	}
}

func (cmd *HistoryCmd) print(w io.Writer, msgs []chat.Message) error {
	if cmd.json {
		return writeJSONLines(w, msgs)
	}
	return writeTranscript(w, msgs)
}

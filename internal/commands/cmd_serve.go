package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/mentor/internal/mentor"
	"github.com/hay-kot/mentor/internal/server"
)

type ServeCmd struct {
	flags *Flags

	addr       string
	noSessions bool
	debug      bool
}

// NewServeCmd creates a new serve command.
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application.
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve the reply API and per-user chat sessions over HTTP",
		UsageText: "mentor serve [options]",
		Description: `Starts the HTTP server.

POST /api/gemini and POST /api/reply accept {"message": "..."} and return
{"reply": "..."} using the configured provider. Unless --no-sessions is set,
/api/sessions/:user exposes a stored conversation per user, including a
server-sent event stream of state changes.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address (overrides server.addr)",
				Sources:     cli.EnvVars("MENTOR_ADDR"),
				Destination: &cmd.addr,
			},
			&cli.BoolFlag{
				Name:        "no-sessions",
				Usage:       "serve only the stateless reply endpoints",
				Destination: &cmd.noSessions,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "run gin in debug mode",
				Destination: &cmd.debug,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cmd.debug {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg := cmd.flags.Config
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	rt, err := NewRuntime(ctx, cfg, RuntimeOptions{Gateway: true, Store: !cmd.noSessions})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	serverCfg := cfg.Server
	if cmd.addr != "" {
		serverCfg.Addr = cmd.addr
	}

	opts := server.Options{
		Config:         serverCfg,
		Gateway:        rt.Gateway,
		GatewayTimeout: cfg.Gateway.Timeout,
		Logger:         rt.Logger,
	}

	if !cmd.noSessions {
		factory := func(userID string) (*mentor.Controller, error) {
			return rt.NewController(userID, nil)
		}
		sessions, err := server.NewSessions(factory, server.SessionsOptions{
			HistorySize: cfg.Storage.HistoryLimit,
			HydrateWait: cfg.Storage.Timeout,
			MaxSessions: cfg.Server.MaxSessions,
			IdleTimeout: cfg.Server.SessionIdle,
		}, rt.Logger)
		if err != nil {
			return err
		}
		opts.Sessions = sessions
	}

	log.Info().
		Str("provider", cfg.Gateway.Provider).
		Str("storage", cfg.Storage.Backend).
		Bool("sessions", !cmd.noSessions).
		Msg("starting server")

	return server.New(opts).Run(ctx)
}

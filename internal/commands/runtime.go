package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/gateway"
	"github.com/hay-kot/mentor/internal/mentor"
	"github.com/hay-kot/mentor/internal/store"
)

// Runtime holds the gateway and store built from configuration. Commands
// create one, pass it explicitly to whatever needs it, and close it on exit.
type Runtime struct {
	Config  *config.Config
	Gateway chat.Gateway
	Store   *store.Opened
	Logger  zerolog.Logger
}

// RuntimeOptions selects which collaborators to build.
type RuntimeOptions struct {
	Gateway bool
	Store   bool
}

// NewRuntime builds the requested collaborators from cfg.
func NewRuntime(ctx context.Context, cfg *config.Config, opts RuntimeOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	rt := &Runtime{
		Config: cfg,
		Logger: log.With().Str("component", "mentor").Logger(),
	}

	if opts.Gateway {
		gw, err := gateway.New(ctx, cfg, rt.Logger)
		if err != nil {
			return nil, fmt.Errorf("create gateway: %w", err)
		}
		rt.Gateway = gw
	}

	if opts.Store {
		st, err := store.Open(ctx, cfg, rt.Logger)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		rt.Store = st
	}

	return rt, nil
}

// NewController creates a controller for userID wired to the runtime's
// gateway and store.
func (rt *Runtime) NewController(userID string, onChange func(mentor.State)) (*mentor.Controller, error) {
	if rt.Gateway == nil {
		return nil, mentor.ErrNoGateway
	}

	opts := mentor.Options{
		Gateway:      rt.Gateway,
		UserID:       userID,
		HistoryTurns: rt.Config.Gateway.HistoryTurns,
		Timeout:      rt.Config.Gateway.Timeout,
		StoreTimeout: rt.Config.Storage.Timeout,
		QueueSize:    rt.Config.Storage.QueueSize,
		Logger:       rt.Logger,
		OnChange:     onChange,
	}
	if rt.Store != nil {
		opts.Store = rt.Store
	}

	return mentor.New(opts)
}

// Hydrate loads persisted history into ctl, bounded by the storage timeout.
// A failed read is logged and the session starts empty.
func (rt *Runtime) Hydrate(ctx context.Context, ctl *mentor.Controller) {
	if rt.Store == nil {
		return
	}

	if rt.Config.Storage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.Config.Storage.Timeout)
		defer cancel()
	}

	if err := ctl.Hydrate(ctx, rt.Config.Storage.HistoryLimit); err != nil {
		rt.Logger.Warn().Err(err).Msg("load history")
	}
}

// Close releases the store.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	return errors.Join(errs...)
}

package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Rayus223/admin3/internal/calls"
	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/notify"
	"github.com/Rayus223/admin3/internal/realtime"
	"github.com/Rayus223/admin3/internal/store"
	appsync "github.com/Rayus223/admin3/internal/sync"
)

// Runtime holds the long-lived components of one admin3 process. It is
// built once by the composition root and shared by the TUI and the
// headless runner.
type Runtime struct {
	Config     *model.AppConfig
	ConfigPath string
	Logger     zerolog.Logger
	Store      *store.Persistent
	Channel    *realtime.Channel
	Center     *notify.Center
	Calls      *calls.Client
	Poller     *appsync.Poller

	states chan realtime.State
}

// RuntimeOptions carries what the config file does not.
type RuntimeOptions struct {
	// Token authenticates both the websocket and the REST API.
	Token string

	// BellOut receives the terminal bell when no sound command is set.
	BellOut io.Writer

	// ConfigPath is where the settings view saves changes.
	ConfigPath string
}

// NewRuntime opens the store and wires the channel, the notification
// center and the scheduled-calls poller. Nothing is started.
func NewRuntime(cfg *model.AppConfig, logger zerolog.Logger, opts RuntimeOptions) (*Runtime, error) {
	backend, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening notification store: %w", err)
	}
	persistent := store.NewPersistent(backend, logger)

	rt := &Runtime{
		Config:     cfg,
		ConfigPath: opts.ConfigPath,
		Logger:     logger,
		Store:      persistent,
		states:     make(chan realtime.State, 1),
	}

	rt.Channel = realtime.NewChannel(
		realtime.WebsocketDialer{
			URL:       cfg.Realtime.URL,
			Token:     opts.Token,
			ReadLimit: cfg.Realtime.ReadLimitBytes,
		},
		realtime.Options{
			ReconnectDelay: cfg.Realtime.ReconnectDelay,
			Logger:         logger,
			OnStateChange:  rt.publishState,
		},
	)

	var player notify.SoundPlayer
	if cfg.Sound.Command != "" || opts.BellOut != nil {
		player = notify.NewSoundPlayer(cfg.Sound.Command, opts.BellOut)
	}
	rt.Center = notify.NewCenter(persistent, rt.Channel, notify.Options{
		Capacity:     cfg.Notifications.Max,
		Sound:        player,
		SoundEnabled: cfg.Sound.Enabled,
		Logger:       logger,
	})

	rt.Calls = calls.NewClient(calls.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   opts.Token,
		Timeout: cfg.API.Timeout,
		Retries: cfg.API.Retries,
		Logger:  logger,
	})
	rt.Poller = appsync.New(rt.Calls, rt.Center, appsync.Options{
		Interval: cfg.API.PollInterval,
		Logger:   logger,
	})
	return rt, nil
}

// publishState keeps only the latest channel state for the UI. It runs
// under the channel lock and must not block.
func (r *Runtime) publishState(s realtime.State) {
	select {
	case <-r.states:
	default:
	}
	select {
	case r.states <- s:
	default:
	}
}

// States delivers channel state transitions, latest first.
func (r *Runtime) States() <-chan realtime.State {
	return r.states
}

// Start loads persisted notification state and connects the channel.
// The poller is started by whoever consumes its results.
func (r *Runtime) Start(ctx context.Context) {
	r.Center.Start(ctx)
}

// ApplyConfig applies the settings that can change without a restart.
func (r *Runtime) ApplyConfig(cfg *model.AppConfig) {
	r.Center.SetSoundEnabled(cfg.Sound.Enabled)
	r.Logger.Info().Bool("sound", cfg.Sound.Enabled).Msg("config reloaded")
}

// Close stops polling, closes the channel and the store.
func (r *Runtime) Close() error {
	r.Poller.Stop()
	r.Center.Close()
	if err := r.Store.Close(); err != nil {
		return fmt.Errorf("closing notification store: %w", err)
	}
	return nil
}

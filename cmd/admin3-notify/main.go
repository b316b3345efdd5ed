package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rayus223/admin3/internal/app"
	"github.com/Rayus223/admin3/internal/credential"
	"github.com/Rayus223/admin3/internal/model"
	"github.com/Rayus223/admin3/internal/ui/login"
)

func main() {
	configPath := flag.String("config", envOrDefault("ADMIN3_CONFIG", model.DefaultConfigPath()), "config file path")
	doLogin := flag.Bool("login", false, "prompt for the API token and store it in the keyring")
	headless := flag.Bool("headless", false, "run without the terminal UI and log notifications")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := run(*configPath, *doLogin, *headless, *debug); err != nil {
		fmt.Fprintln(os.Stderr, "admin3:", err)
		os.Exit(1)
	}
}

func run(configPath string, doLogin, headless, debug bool) error {
	configPath = model.ExpandHome(configPath)
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if headless {
		cfg.Log.File = ""
	}

	logger, closer, err := app.NewLogger(cfg.Log, debug)
	if err != nil {
		return err
	}
	defer closer.Close()

	if doLogin {
		if err := runLogin(cfg.API.BaseURL); err != nil {
			return err
		}
	}

	token, err := credential.Token()
	if errors.Is(err, credential.ErrNoToken) {
		return fmt.Errorf("%w: run with --login or set %s", err, credential.TokenEnv)
	}
	if err != nil {
		return err
	}

	opts := app.RuntimeOptions{Token: token, ConfigPath: configPath}
	if !headless {
		opts.BellOut = os.Stdout
	}
	rt, err := app.NewRuntime(cfg, logger, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model.WatchConfig(configPath, rt.ApplyConfig, func(err error) {
		logger.Warn().Err(err).Msg("config reload rejected")
	})

	if headless {
		return app.RunHeadless(ctx, rt)
	}

	rt.Start(ctx)
	p := tea.NewProgram(app.New(rt), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

func runLogin(apiURL string) error {
	m := login.New(apiURL, credential.SetToken)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("running login: %w", err)
	}
	saved, err := m.Result()
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	if !saved {
		return errors.New("login aborted")
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

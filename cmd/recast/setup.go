package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"recast/internal/core/app"
	"recast/internal/core/config"
	"recast/internal/shared/observability"
	"syscall"

	"github.com/spf13/cobra"
)

type session struct {
	app      *app.App
	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

// loadConfig resolves --config, falling back to the discovered project's
// recast.toml and then to defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, "", err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}

	if configPath == "" {
		root, err := config.DetectProjectRoot([]string{cwd})
		if err != nil {
			return nil, "", err
		}
		configPath = config.Locate(root)
		if configPath == "" {
			cfg := config.Default()
			config.ApplyEnvOverrides(cfg)
			cfg.Paths.ProjectRoot = root
			return cfg, cwd, nil
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", configPath, err)
	}
	base, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, "", err
	}
	return cfg, base, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

// openSession loads configuration, applies override (command flags) and
// builds the app.
func openSession(ctx context.Context, cmd *cobra.Command, override func(*config.Config)) (*session, error) {
	cfg, base, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
		if errs := config.Validate(cfg); len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}
	paths, err := config.ResolvePaths(cfg, base)
	if err != nil {
		return nil, err
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg, paths, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	return &session{app: a, cfg: cfg, logger: logger, shutdown: shutdown}, nil
}

func (s *session) Close() {
	if err := s.shutdown(context.Background()); err != nil {
		s.logger.Warn("tracing shutdown failed", "error", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

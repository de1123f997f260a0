package app

import (
	"context"

	"go.uber.org/zap"

	"ragd/internal/infra/config"
)

// App is the top-level entry point behind the CLI commands.
type App struct {
	logger *zap.Logger
}

type ServeConfig struct {
	ConfigPath string
}

type DiscoverConfig struct {
	ConfigPath string
}

type ValidateConfig struct {
	ConfigPath string
}

func New(logger *zap.Logger) *App {
	return &App{
		logger: logger.Named("app"),
	}
}

// ValidateConfig loads and validates the configuration without starting
// any services.
func (a *App) ValidateConfig(_ context.Context, cfg ValidateConfig) error {
	loader := config.NewLoader(a.logger)
	parsed, err := loader.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration validated",
		zap.String("config", cfg.ConfigPath),
		zap.Int("providers", len(parsed.Providers)),
	)
	return nil
}

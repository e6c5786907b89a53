package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/vk/shplanner/internal/ctxlog"
	"github.com/vk/shplanner/internal/hcl_adapter"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader *hcl_adapter.Loader
}

// NewApp is the constructor for the main application. Output meant for the
// user and the log both go to outW.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")
	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		loader: hcl_adapter.NewLoader(),
	}
}

// Context returns ctx carrying the application's logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

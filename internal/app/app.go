package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/specialistvlad/pacforge/internal/config"
	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/orchestrator"
	"github.com/specialistvlad/pacforge/internal/resolver"
	"github.com/specialistvlad/pacforge/internal/upgrade"
)

// MenuPrompter shows the upgrade menu and returns the user's exclusions.
type MenuPrompter interface {
	UpgradeMenu(ctx context.Context, set *upgrade.Set) (string, error)
}

// Collaborators are the external effects the pipelines drive. Chooser,
// Devel and Menu are optional.
type Collaborators struct {
	Fetcher    orchestrator.Fetcher
	Reviewer   orchestrator.Reviewer
	Builder    orchestrator.Builder
	Transactor orchestrator.Transactor
	Chooser    resolver.ProviderChooser
	Devel      upgrade.DevelChecker
	Menu       MenuPrompter
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	cfg        *config.Config
	collab     Collaborators
	registry   *prometheus.Registry
	metrics    *orchestrator.Metrics
	lock       *orchestrator.Lock
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and metrics
// registry. cfg must already be validated.
func NewApp(outW io.Writer, cfg *config.Config, collab Collaborators) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		collab:   collab,
		registry: reg,
		metrics:  orchestrator.NewMetrics(reg),
		lock:     orchestrator.NewLock(),
	}
}

// Config returns the application's configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Registry returns the application's metrics registry. This is primarily for testing.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

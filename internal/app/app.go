package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/properties"
	"github.com/specialistvlad/gridflow/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	model      *config.Model
	converter  config.Converter
	properties *properties.Properties

	prometheus *metrics.Prometheus
	counters   *metrics.Memory
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// Configuration errors are programmer or user errors at startup, so NewApp
// panics on them; the entrypoint recovers and reports.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	props, err := properties.Load(cfg.PropertiesFile)
	if err != nil {
		panic(fmt.Errorf("failed to load properties: %w", err))
	}
	logger.Debug("Properties loaded.", "settings", props.AllSettings())

	// Create and populate the registry with Go handlers.
	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(outW)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	a := &App{
		ctx:        ctx,
		outW:       outW,
		logger:     logger,
		config:     cfg,
		registry:   reg,
		properties: props,
		prometheus: metrics.NewPrometheus(),
		counters:   metrics.NewMemory(),
	}

	if err := a.load(ctx, loader); err != nil {
		panic(err)
	}

	// Populate the registry's definitions from the loaded config model.
	reg.PopulateDefinitionsFromModel(a.model)
	logger.Debug("Registry definitions populated from config model.")

	// Validate the integrity of the registry.
	if err := reg.ValidateRegistry(ctx); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")
	return a
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded flow description and manifests.
func (a *App) Model() *config.Model {
	return a.model
}

// Counters returns the counters of every run of the app.
func (a *App) Counters() *metrics.Memory {
	return a.counters
}

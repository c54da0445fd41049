package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
)

// load reads the flow description and every operation manifest into one
// model: the manifests compiled into the registered modules first, then the
// files under the flow and modules paths.
func (a *App) load(ctx context.Context, loader config.Loader) error {
	logger := ctxlog.FromContext(ctx)

	model := config.NewModel()
	for _, m := range a.registry.Manifests() {
		parsed, err := loader.Parse(ctx, m.Filename, m.Src)
		if err != nil {
			return fmt.Errorf("failed to load module manifest: %w", err)
		}
		if err := model.Merge(parsed); err != nil {
			return fmt.Errorf("in module manifest %s: %w", m.Filename, err)
		}
	}
	logger.Debug("Module manifests loaded.", "count", len(a.registry.Manifests()), "operations", len(model.Operations))

	// Merge all configuration paths into a single collection for the loader.
	paths := []string{a.config.FlowPath}
	if a.config.ModulesPath != "" {
		paths = append(paths, a.config.ModulesPath)
	}
	loaded, converter, err := loader.Load(ctx, paths...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := model.Merge(loaded); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.", "operations", len(model.Operations))

	a.model = model
	a.converter = converter
	return nil
}

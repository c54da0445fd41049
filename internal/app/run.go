package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/assembly"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/flow"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/rules"
	"github.com/specialistvlad/gridflow/internal/trace"
)

// Run builds the flow from the loaded description, plans it and runs it to
// completion.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.")

	a.startServer()
	defer func() {
		if err := a.stopServer(); err != nil {
			a.logger.Warn("Status server did not shut down cleanly.", "error", err)
		}
	}()

	f, err := a.newFlow(ctx)
	if err != nil {
		return err
	}

	if a.config.PlanOnly {
		plan, err := f.Plan(ctx)
		if err != nil {
			return fmt.Errorf("planning failed: %w", err)
		}
		a.logger.Info("✅ Flow planned.", "steps", len(plan.Steps.Steps))
		return trace.WriteSteps(a.outW, plan.Steps)
	}

	a.logger.Info("Operation handlers registered:", "count", len(a.registry.HandlerRegistry))
	res, err := f.Complete(ctx)
	if res != nil {
		a.logSummary(res)
	}
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// newFlow builds the assembly of the loaded description and a flow planned
// with the local rules and configured from the properties.
func (a *App) newFlow(ctx context.Context) (*flow.Flow, error) {
	a.logger.Debug("Building assembly from config model...")
	asm, err := assembly.Build(ctx, a.model, a.registry, a.converter)
	if err != nil {
		return nil, fmt.Errorf("failed to build assembly: %w", err)
	}
	a.logger.Debug("Assembly built.", "flow", asm.Name, "elements", len(asm.Graph.Elements()))

	reg, err := rules.Local()
	if err != nil {
		return nil, fmt.Errorf("failed to create rule registry: %w", err)
	}

	opts := []flow.Option{
		flow.WithWorkers(a.config.WorkerCount),
		flow.WithCounters(metrics.Tee(a.prometheus, a.counters)),
		flow.WithSpill(a.properties.SpillThreshold(), a.properties.SpillDir()),
		flow.WithMaxRewrites(a.properties.MaxRewrites()),
	}
	transform, step, stats := a.properties.TracePaths()
	if traceOpts := (trace.Options{TransformPath: transform, StepPath: step, StatsPath: stats}); traceOpts.Enabled() {
		a.logger.Info("💾 Writing planner traces.", "transform", transform, "step", step, "stats", stats)
		opts = append(opts, flow.WithTracer(trace.New(traceOpts)))
	}
	return flow.New(asm, reg, opts...), nil
}

func (a *App) logSummary(res *flow.Result) {
	byStatus := make(map[string]int)
	for _, st := range res.Statuses {
		byStatus[st.String()]++
	}
	args := []any{"run", res.RunID.String(), "duration", res.Duration}
	for _, st := range []node.Status{node.StatusCompleted, node.StatusFailed, node.StatusSkipped} {
		args = append(args, st.String(), byStatus[st.String()])
	}
	for _, k := range a.counters.Keys() {
		args = append(args, k.Group+"."+k.Name, a.counters.Get(k.Group, k.Name))
	}
	a.logger.Info("Run summary.", args...)
}

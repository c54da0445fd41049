// Package flow plans an assembly and runs its steps on the local substrate.
package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/executor"
	"github.com/specialistvlad/gridflow/internal/inmemorystore"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/nodestore"
	"github.com/specialistvlad/gridflow/internal/physical"
	"github.com/specialistvlad/gridflow/internal/planner"
	"github.com/specialistvlad/gridflow/internal/stream"
)

// Result describes one completed run.
type Result struct {
	RunID uuid.UUID
	Plan  *planner.RuleResult
	// Statuses holds the final status of every step and node by address.
	Statuses map[string]node.Status
	Duration time.Duration
}

// Option configures a Flow.
type Option func(*Flow)

// WithWorkers sets how many steps may run at once.
func WithWorkers(n int) Option {
	return func(f *Flow) { f.workers = n }
}

// WithCounters installs the counters every stage reports to.
func WithCounters(c metrics.Counters) Option {
	return func(f *Flow) { f.counters = c }
}

// WithStore replaces the in-memory status store.
func WithStore(s nodestore.Store) Option {
	return func(f *Flow) { f.store = s }
}

// WithSpill configures grouping and exchange spill lists.
func WithSpill(threshold int, dir string) Option {
	return func(f *Flow) {
		f.spillThreshold = threshold
		f.spillDir = dir
	}
}

// WithTracer installs a planning tracer.
func WithTracer(t planner.Tracer) Option {
	return func(f *Flow) { f.plannerOpts = append(f.plannerOpts, planner.WithTracer(t)) }
}

// WithMaxRewrites overrides the planner convergence guard.
func WithMaxRewrites(n int) Option {
	return func(f *Flow) {
		if n > 0 {
			f.plannerOpts = append(f.plannerOpts, planner.WithMaxRewrites(n))
		}
	}
}

// Flow is one runnable assembly.
type Flow struct {
	asm      *element.Assembly
	registry *planner.Registry
	runID    uuid.UUID

	workers        int
	counters       metrics.Counters
	store          nodestore.Store
	spillThreshold int
	spillDir       string
	plannerOpts    []planner.Option

	mu        sync.Mutex
	substrate Substrate
}

// New returns a flow for asm planned with reg.
func New(asm *element.Assembly, reg *planner.Registry, opts ...Option) *Flow {
	f := &Flow{
		asm:      asm,
		registry: reg,
		runID:    uuid.New(),
		workers:  1,
		counters: metrics.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.store == nil {
		f.store = inmemorystore.New()
	}
	return f
}

// RunID identifies the run in logs and traces.
func (f *Flow) RunID() uuid.UUID { return f.runID }

// Store returns the status store of the flow.
func (f *Flow) Store() nodestore.Store { return f.store }

// Plan plans the assembly without running it.
func (f *Flow) Plan(ctx context.Context) (*planner.RuleResult, error) {
	return planner.New(f.registry, f.plannerOpts...).Plan(ctx, f.asm)
}

// Complete plans the assembly and runs every step to completion. Steps run
// once all the steps they read from completed; the first failure cancels the
// run.
func (f *Flow) Complete(ctx context.Context) (*Result, error) {
	start := time.Now()
	ctx = ctxlog.With(ctx, "flow", f.asm.Name, "run", f.runID.String())
	logger := ctxlog.FromContext(ctx)

	plan, err := f.Plan(ctx)
	if err != nil {
		return nil, err
	}

	sub := NewLocalSubstrate(f.store, stream.Options{
		SpillThreshold: f.spillThreshold,
		SpillDir:       f.spillDir,
		Counters:       f.counters,
	})
	f.mu.Lock()
	f.substrate = sub
	f.mu.Unlock()

	steps := plan.Steps
	nodes := make([]*node.Node, 0, len(steps.Steps))
	for _, s := range steps.Steps {
		nodes = append(nodes, node.New(s))
	}

	exec, err := executor.New(steps.Deps(), nodes, f.store, func(ctx context.Context, n *node.Node) error {
		ctx = ctxlog.With(ctx, "step", n.ID())
		ctxlog.FromContext(ctx).Info("▶️ Running step.", "nodes", len(n.Step.Nodes))
		if err := sub.Schedule(ctx, n.Step); err != nil {
			f.counters.Increment(metrics.GroupFlow, metrics.StepsFailed, 1)
			return err
		}
		f.counters.Increment(metrics.GroupFlow, metrics.StepsCompleted, 1)
		ctxlog.FromContext(ctx).Info("✅ Step completed.")
		return nil
	}, f.workers)
	if err != nil {
		return nil, fmt.Errorf("flow %q: %w", f.asm.Name, err)
	}
	exec.PushCleanup("substrate", func() {
		if err := sub.Close(); err != nil {
			logger.Warn("Failed to release substrate resources.", "error", err)
		}
	})

	logger.Info("🚀 Running flow.", "steps", len(steps.Steps), "workers", f.workers)
	runErr := exec.Run(ctx)

	statuses, err := f.store.Statuses(context.WithoutCancel(ctx))
	if err != nil {
		logger.Warn("Failed to read statuses.", "error", err)
	}
	res := &Result{RunID: f.runID, Plan: plan, Statuses: statuses, Duration: time.Since(start)}
	if runErr != nil {
		logger.Error("Flow failed.", "error", runErr, "duration", res.Duration)
		return res, runErr
	}
	logger.Info("🏁 Flow completed.", "duration", res.Duration)
	return res, nil
}

// Stop cancels step if it is running.
func (f *Flow) Stop(step *physical.Step) {
	f.mu.Lock()
	sub := f.substrate
	f.mu.Unlock()
	if sub != nil {
		sub.Stop(step)
	}
}

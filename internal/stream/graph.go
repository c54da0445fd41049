package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/physical"
)

// Graph is the executable form of one node.
type Graph struct {
	node     *physical.Node
	stages   []Stage
	sources  []*sourceStage
	traps    []*trapHandler
	observer Observer
	records  int
}

// Stages returns the stages in forward topological order.
func (g *Graph) Stages() []Stage {
	return append([]Stage(nil), g.stages...)
}

// Records returns the number of records read by the last Execute.
func (g *Graph) Records() int { return g.records }

// Node returns the node the graph executes.
func (g *Graph) Node() *physical.Node { return g.node }

func (g *Graph) observe(l Lifecycle, s Stage) {
	if g.observer != nil {
		g.observer(l, s)
	}
}

// Execute binds the stages, prepares them from the sinks up and drains every
// source: accumulated sources first, then the streamed ones. Cleanup always
// runs, in forward order, even when execution failed or ctx was cancelled.
func (g *Graph) Execute(ctx context.Context) (err error) {
	ctx = ctxlog.With(ctx, "node", g.node.ID.String())
	logger := ctxlog.FromContext(ctx)

	defer func() {
		if cerr := g.cleanup(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for _, s := range g.stages {
		g.observe(LifecycleBind, s)
		if err := s.bind(ctx); err != nil {
			return err
		}
	}
	for i := len(g.stages) - 1; i >= 0; i-- {
		g.observe(LifecycleInitialize, g.stages[i])
		if err := g.stages[i].initialize(ctx); err != nil {
			return err
		}
	}
	for i := len(g.stages) - 1; i >= 0; i-- {
		g.observe(LifecyclePrepare, g.stages[i])
		if err := g.stages[i].prepare(ctx); err != nil {
			return err
		}
	}

	logger.Debug("▶️ Streaming node.", "stages", len(g.stages), "sources", len(g.sources))
	g.records = 0
	for _, src := range g.sources {
		g.observe(LifecycleRun, src)
		n, err := src.run(ctx)
		g.records += n
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return fmt.Errorf("cancelled after %d records: %w", g.records, cerr)
			}
			return err
		}
	}
	logger.Debug("Node streamed.", "records", g.records)
	return nil
}

func (g *Graph) cleanup(ctx context.Context) error {
	var errs []error
	for _, s := range g.stages {
		g.observe(LifecycleCleanup, s)
		if err := s.cleanup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", s.Element(), err))
		}
	}
	for _, t := range g.traps {
		if err := t.flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package executor

import (
	"context"
	"log/slog"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/node"
)

// worker drains ready steps until the channel is closed. Every step taken
// from the channel reaches a terminal state exactly once and releases one
// wait group slot.
func (e *Executor) worker(ctx context.Context, ready chan *node.Node, cancel context.CancelFunc, id int) {
	logger := ctxlog.FromContext(ctx).With("worker", id)
	logger.Debug("Worker started.")
	defer logger.Debug("Worker finished.")

	for n := range ready {
		stepLogger := logger.With("step", n.ID())
		if err := ctx.Err(); err != nil {
			if n.Skip(err, &e.wg) {
				stepLogger.Warn("Run cancelled, step skipped.")
				e.record(ctx, n)
				e.skipDependents(ctx, n)
			}
			continue
		}
		e.execute(ctxlog.WithLogger(ctx, stepLogger), n, ready, cancel)
	}
}

// execute runs n and either unlocks its dependents or cancels the run.
func (e *Executor) execute(ctx context.Context, n *node.Node, ready chan<- *node.Node, cancel context.CancelFunc) {
	logger := ctxlog.FromContext(ctx)
	e.setStatus(ctx, n, node.StatusRunning)
	err := e.run(ctx, n)
	if !n.Finish(err) {
		return
	}
	defer e.wg.Done()
	e.record(ctx, n)

	if err != nil {
		logger.Error("Step failed.", "error", err)
		cancel()
		e.skipDependents(ctx, n)
		return
	}
	e.unlock(logger, n, ready)
}

// unlock queues every dependent of n whose last dependency just completed.
func (e *Executor) unlock(logger *slog.Logger, n *node.Node, ready chan<- *node.Node) {
	dependents, err := e.graph.Dependents(n.ID())
	if err != nil {
		logger.Error("Failed to read dependents.", "error", err)
		return
	}
	for _, id := range dependents {
		if d := e.nodes[id]; d.DecrementDepCount() == 0 {
			logger.Debug("Dependencies satisfied.", "dependent", id)
			ready <- d
		}
	}
}

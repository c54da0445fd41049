// Package executor runs a dependency graph of steps on a fixed pool of
// workers. A step starts once every step it depends on completed; a failure
// cancels the run and skips every dependent of the failed step.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/dag"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/nodestore"
)

// ErrSkipped marks nodes that never ran. Skips are symptoms of another
// failure and are never reported as the root cause.
var ErrSkipped = errors.New("skipped")

// RunFunc executes the work of one node.
type RunFunc func(ctx context.Context, n *node.Node) error

// Executor orchestrates one run over a graph of nodes.
type Executor struct {
	graph      *dag.Graph
	nodes      map[string]*node.Node
	order      []string
	store      nodestore.Store
	run        RunFunc
	numWorkers int

	wg sync.WaitGroup

	cleanupMu sync.Mutex
	cleanups  []cleanup
}

// New returns an executor for nodes ordered by graph, whose vertices are the
// node IDs.
func New(graph *dag.Graph, nodes []*node.Node, store nodestore.Store, run RunFunc, numWorkers int) (*Executor, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	e := &Executor{
		graph:      graph,
		nodes:      make(map[string]*node.Node, len(nodes)),
		store:      store,
		run:        run,
		numWorkers: numWorkers,
	}
	for _, n := range nodes {
		e.nodes[n.ID()] = n
		e.order = append(e.order, n.ID())
	}
	for _, id := range graph.Nodes() {
		n, ok := e.nodes[id]
		if !ok {
			return nil, fmt.Errorf("graph references unknown node %s", id)
		}
		deps, err := graph.Dependencies(id)
		if err != nil {
			return nil, err
		}
		n.SetDepCount(int32(len(deps)))
	}
	return e, nil
}

// Run executes the entire graph concurrently and returns an error if any node
// fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer e.executeCleanupStack(ctx)

	if len(e.nodes) == 0 {
		return nil
	}

	readyChan := make(chan *node.Node, len(e.nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.wg.Add(len(e.nodes))
	rootNodeCount := 0
	for _, id := range e.order {
		n := e.nodes[id]
		e.setStatus(ctx, n, node.StatusPending)
		if n.DepCount() == 0 {
			logger.Debug("Found root node.", "nodeID", id)
			readyChan <- n
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes reached a terminal state.")

	var failedNodes []string
	var rootCauseError, cancelError error
	for _, id := range e.order {
		n := e.nodes[id]
		if n.Status() != node.StatusFailed || n.Error == nil {
			continue
		}
		// A skip or a cancellation is a symptom, not a cause.
		if errors.Is(n.Error, context.Canceled) || errors.Is(n.Error, context.DeadlineExceeded) {
			if cancelError == nil {
				cancelError = n.Error
			}
			continue
		}
		if errors.Is(n.Error, ErrSkipped) {
			continue
		}
		failedNodes = append(failedNodes, id)
		if rootCauseError == nil {
			rootCauseError = n.Error
		}
	}

	switch {
	case rootCauseError != nil:
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	case cancelError != nil:
		return fmt.Errorf("execution cancelled: %w", cancelError)
	case ctx.Err() != nil:
		return fmt.Errorf("execution cancelled: %w", ctx.Err())
	}
	return nil
}

// Node returns the node with the given ID.
func (e *Executor) Node(id string) (*node.Node, bool) {
	n, ok := e.nodes[id]
	return n, ok
}

// skipDependents recursively marks all downstream nodes as skipped.
func (e *Executor) skipDependents(ctx context.Context, n *node.Node) {
	logger := ctxlog.FromContext(ctx)
	dependents, err := e.graph.Dependents(n.ID())
	if err != nil {
		logger.Error("Failed to get dependents of failed node.", "nodeID", n.ID(), "error", err)
		return
	}
	for _, id := range dependents {
		dependent := e.nodes[id]
		skipErr := fmt.Errorf("%w due to upstream failure of '%s'", ErrSkipped, n.ID())
		if dependent.Skip(skipErr, &e.wg) {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", id, "dependency", n.ID())
			e.record(ctx, dependent)
			e.skipDependents(ctx, dependent)
		}
	}
}

func (e *Executor) setStatus(ctx context.Context, n *node.Node, s node.Status) {
	n.SetStatus(s)
	if e.store == nil {
		return
	}
	if err := e.store.SetStatus(ctx, *n.Address(), s); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to record node status.", "nodeID", n.ID(), "error", err)
	}
}

// record persists the terminal state of n.
func (e *Executor) record(ctx context.Context, n *node.Node) {
	if e.store == nil {
		return
	}
	logger := ctxlog.FromContext(ctx)
	if err := e.store.SetStatus(ctx, *n.Address(), n.Status()); err != nil {
		logger.Warn("Failed to record node status.", "nodeID", n.ID(), "error", err)
	}
	if n.Error != nil {
		if err := e.store.SetError(ctx, *n.Address(), n.Error); err != nil {
			logger.Warn("Failed to record node error.", "nodeID", n.ID(), "error", err)
		}
	}
}

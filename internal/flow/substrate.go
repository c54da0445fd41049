package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/nodestore"
	"github.com/specialistvlad/gridflow/internal/physical"
	"github.com/specialistvlad/gridflow/internal/spill"
	"github.com/specialistvlad/gridflow/internal/stream"
	"github.com/specialistvlad/gridflow/internal/tap"
)

// Substrate runs the nodes of one step.
type Substrate interface {
	// Schedule runs every node of step and returns once all of them are
	// done. It fails with the first node failure.
	Schedule(ctx context.Context, step *physical.Step) error
	// Stop cancels a running step. Stopping an idle step does nothing.
	Stop(step *physical.Step)
}

// LocalSubstrate runs nodes in-process. Nodes without dependencies on each
// other run concurrently, in waves derived from the step's node graph.
type LocalSubstrate struct {
	exchange *Exchange
	traps    *trapWriters
	store    nodestore.Store
	opts     stream.Options

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// NewLocalSubstrate returns a substrate streaming with opts. store may be nil.
func NewLocalSubstrate(store nodestore.Store, opts stream.Options) *LocalSubstrate {
	if opts.Counters == nil {
		opts.Counters = metrics.Nop()
	}
	return &LocalSubstrate{
		exchange: NewExchange(spill.Options{Threshold: opts.SpillThreshold, Dir: opts.SpillDir}),
		traps:    newTrapWriters(),
		store:    store,
		opts:     opts,
		running:  make(map[string]context.CancelFunc),
	}
}

// Exchange returns the exchange holding boundary and checkpoint records.
func (s *LocalSubstrate) Exchange() *Exchange { return s.exchange }

// Schedule implements Substrate.
func (s *LocalSubstrate) Schedule(ctx context.Context, step *physical.Step) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := step.ID.String()
	s.mu.Lock()
	s.running[id] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	waves, err := nodeWaves(step)
	if err != nil {
		return fmt.Errorf("step %s: %w", id, err)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Scheduling step.", "step", id, "nodes", len(step.Nodes), "waves", len(waves))
	for i, wave := range waves {
		g, gctx := errgroup.WithContext(ctx)
		for _, n := range wave {
			g.Go(func() error { return s.runNode(gctx, n) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
		logger.Debug("Wave completed.", "step", id, "wave", i)
	}
	return nil
}

// Stop implements Substrate.
func (s *LocalSubstrate) Stop(step *physical.Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[step.ID.String()]; ok {
		cancel()
	}
}

// Close releases the exchanged records and closes the trap connectors.
func (s *LocalSubstrate) Close() error {
	return errors.Join(s.traps.close(), s.exchange.Close())
}

func (s *LocalSubstrate) runNode(ctx context.Context, n *physical.Node) (err error) {
	ctx = ctxlog.With(ctx, "node", n.ID.String())
	logger := ctxlog.FromContext(ctx)
	start := time.Now()
	s.setStatus(ctx, n, node.StatusRunning)
	defer func() {
		if err != nil {
			s.setStatus(ctx, n, node.StatusFailed)
			if s.store != nil {
				_ = s.store.SetError(ctx, *n.ID, err)
			}
			return
		}
		s.setStatus(ctx, n, node.StatusCompleted)
	}()

	h, closers, err := s.open(ctx, n)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i](); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	}()
	if err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}

	g, err := stream.Build(ctx, n, h, s.opts)
	if err != nil {
		return err
	}
	if err := g.Execute(ctx); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}

	if s.store != nil {
		_ = s.store.SetOutput(ctx, *n.ID, g.Records())
	}
	s.opts.Counters.Increment(metrics.GroupFlow, metrics.NodesCompleted, 1)
	logger.Debug("Node completed.", "records", g.Records(), "duration", time.Since(start))
	return nil
}

// open binds a handle to every connector of n. Taps open their external
// resource; boundaries and checkpoints go through the exchange. The returned
// closers run even when opening failed halfway.
func (s *LocalSubstrate) open(ctx context.Context, n *physical.Node) (stream.Handles, []func() error, error) {
	h := stream.Handles{
		Sources: make(map[element.Element]tap.Reader),
		Sinks:   make(map[element.Element]tap.Writer),
		Traps:   make(map[string]tap.Writer),
	}
	var closers []func() error

	for _, e := range n.Graph.Elements() {
		if !element.IsConnector(e) {
			continue
		}
		in, out := len(n.Graph.InnerIncoming(e)), len(n.Graph.InnerOutgoing(e))
		switch {
		case in == 0 && out == 0:
			continue
		case in == 0:
			r, err := s.reader(ctx, e)
			if err != nil {
				return h, closers, err
			}
			h.Sources[e] = r
			closers = append(closers, r.Close)
		default:
			w, err := s.writer(ctx, e)
			if err != nil {
				return h, closers, err
			}
			h.Sinks[e] = w
			closers = append(closers, w.Close)
		}
	}

	for branch, trap := range n.Traps {
		w, err := s.traps.writer(ctx, trap)
		if err != nil {
			return h, closers, err
		}
		h.Traps[branch] = w
	}
	return h, closers, nil
}

func (s *LocalSubstrate) reader(ctx context.Context, e element.Element) (tap.Reader, error) {
	if t, ok := e.(*element.Tap); ok {
		r, err := t.Tap().OpenRead(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening source %s: %w", e, err)
		}
		return r, nil
	}
	return s.exchange.Reader(e)
}

func (s *LocalSubstrate) writer(ctx context.Context, e element.Element) (tap.Writer, error) {
	if t, ok := e.(*element.Tap); ok {
		w, err := t.Tap().OpenWrite(ctx)
		if err != nil {
			return nil, fmt.Errorf("opening sink %s: %w", e, err)
		}
		return w, nil
	}
	return s.exchange.Writer(e)
}

func (s *LocalSubstrate) setStatus(ctx context.Context, n *physical.Node, st node.Status) {
	if s.store == nil {
		return
	}
	if err := s.store.SetStatus(ctx, *n.ID, st); err != nil {
		ctxlog.FromContext(ctx).Warn("Failed to record node status.", "status", st, "error", err)
	}
}

// nodeWaves groups the nodes of step by dependency depth. Every node of a
// wave depends only on nodes of earlier waves.
func nodeWaves(step *physical.Step) ([][]*physical.Node, error) {
	order, err := step.NodeDeps.TopologicalSort()
	if err != nil {
		return nil, err
	}
	level := make(map[string]int, len(order))
	var waves [][]*physical.Node
	for _, id := range order {
		deps, err := step.NodeDeps.Dependencies(id)
		if err != nil {
			return nil, err
		}
		l := 0
		for _, d := range deps {
			if level[d]+1 > l {
				l = level[d] + 1
			}
		}
		level[id] = l

		n, ok := step.Node(id)
		if !ok {
			return nil, fmt.Errorf("unknown node %s", id)
		}
		for len(waves) <= l {
			waves = append(waves, nil)
		}
		waves[l] = append(waves[l], n)
	}
	return waves, nil
}

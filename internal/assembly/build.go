// Package assembly turns a loaded flow description into the element graph
// the planner consumes.
package assembly

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/dag"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// DefaultName names flows that declare no flow block.
const DefaultName = "flow"

// ErrEmptyFlow is returned when the description declares nothing to run.
var ErrEmptyFlow = errors.New("flow declares no sources, pipes or sinks")

// builder carries the state of one Build call.
type builder struct {
	ctx   context.Context
	reg   *registry.Registry
	conv  config.Converter
	graph *element.Graph

	sources map[string]*config.Tap
	sinks   map[string]*config.Tap
	pipes   map[string]*config.Pipe
	// tails holds the last element of every built branch.
	tails map[string]element.Element
	deps  *dag.Graph
}

// Build constructs the assembly described by model. Operations are created
// through reg and their parameters decoded with conv.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry, conv config.Converter) (*element.Assembly, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting assembly construction.")

	flow := model.Flow
	if flow.Empty() {
		return nil, ErrEmptyFlow
	}
	name := flow.Name
	if name == "" {
		name = DefaultName
	}

	b := &builder{
		ctx:     ctx,
		reg:     reg,
		conv:    conv,
		graph:   element.NewGraph(),
		sources: make(map[string]*config.Tap),
		sinks:   make(map[string]*config.Tap),
		pipes:   make(map[string]*config.Pipe),
		tails:   make(map[string]element.Element),
		deps:    dag.New(),
	}

	// First pass: declare every branch name.
	if err := b.declare(flow); err != nil {
		return nil, err
	}
	logger.Debug("Build: Branch declaration complete.", "branches", b.deps.Len())

	// Second pass: link every branch to the branches it reads.
	if err := b.link(flow); err != nil {
		return nil, err
	}
	order, err := b.deps.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("error validating flow %q: %w", name, err)
	}
	logger.Debug("Build: Branch linking complete.")

	// Third pass: create the elements, upstream branches first.
	for _, id := range order {
		if err := b.build(id); err != nil {
			return nil, err
		}
	}

	traps, err := b.traps(flow.Traps)
	if err != nil {
		return nil, err
	}
	b.graph.Normalize()
	logger.Debug("Build: Assembly construction successful.", "elements", len(b.graph.Elements()), "traps", len(traps))
	return &element.Assembly{Name: name, Graph: b.graph, Traps: traps}, nil
}

func (b *builder) declare(flow *config.Flow) error {
	add := func(kind, name string) error {
		if name == "" {
			return fmt.Errorf("%s without a name", kind)
		}
		if b.sources[name] != nil || b.sinks[name] != nil || b.pipes[name] != nil {
			return fmt.Errorf("%s %q: name already used by another branch", kind, name)
		}
		b.deps.AddNode(name)
		return nil
	}
	for _, s := range flow.Sources {
		if err := add("source", s.Name); err != nil {
			return err
		}
		b.sources[s.Name] = s
	}
	for _, p := range flow.Pipes {
		if err := add("pipe", p.Name); err != nil {
			return err
		}
		b.pipes[p.Name] = p
	}
	for _, s := range flow.Sinks {
		if err := add("sink", s.Name); err != nil {
			return err
		}
		b.sinks[s.Name] = s
	}
	return nil
}

func (b *builder) link(flow *config.Flow) error {
	for _, p := range flow.Pipes {
		for _, from := range p.From {
			if err := b.linkFrom("pipe", p.Name, from); err != nil {
				return err
			}
		}
	}
	for _, s := range flow.Sinks {
		if s.From == "" {
			return fmt.Errorf("sink %q: missing required argument \"from\"", s.Name)
		}
		if err := b.linkFrom("sink", s.Name, s.From); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) linkFrom(kind, name, from string) error {
	if b.sources[from] == nil && b.pipes[from] == nil && b.sinks[from] == nil {
		return fmt.Errorf("%s %q reads from unknown branch %q", kind, name, from)
	}
	if err := b.deps.AddEdge(from, name); err != nil {
		return fmt.Errorf("%s %q: %w", kind, name, err)
	}
	return nil
}

func (b *builder) build(id string) error {
	logger := ctxlog.FromContext(b.ctx)
	switch {
	case b.sources[id] != nil:
		t, err := newTap(b.sources[id])
		if err != nil {
			return fmt.Errorf("source %q: %w", id, err)
		}
		if len(t.Tap().SourceFields()) == 0 {
			return fmt.Errorf("source %q: fields are required", id)
		}
		b.graph.AddVertex(t)
		b.tails[id] = t

	case b.sinks[id] != nil:
		s := b.sinks[id]
		t, err := newTap(s)
		if err != nil {
			return fmt.Errorf("sink %q: %w", id, err)
		}
		b.graph.AddVertex(t)
		if err := b.graph.AddEdge(b.tails[s.From], t, nil); err != nil {
			return fmt.Errorf("sink %q: %w", id, err)
		}
		b.tails[id] = t

	default:
		tail, err := b.buildPipe(b.pipes[id])
		if err != nil {
			return fmt.Errorf("pipe %q: %w", id, err)
		}
		b.tails[id] = tail
	}
	logger.Debug("Branch built.", "branch", id, "tail", b.tails[id].String())
	return nil
}

func newTap(t *config.Tap) (*element.Tap, error) {
	c, err := tap.New(tap.Options{
		Scheme:    tap.Scheme(t.Scheme),
		Path:      t.Path,
		Fields:    tuple.NewFields(t.Fields...),
		SinkOnly:  tuple.NewFields(t.SinkFields...),
		Delimiter: t.Delimiter,
		Header:    t.Header,
	})
	if err != nil {
		return nil, err
	}
	return element.NewTap(t.Name, c), nil
}

// traps creates the trap connectors by branch name.
func (b *builder) traps(declared []*config.Tap) (map[string]*element.Tap, error) {
	if len(declared) == 0 {
		return nil, nil
	}
	out := make(map[string]*element.Tap, len(declared))
	for _, t := range declared {
		if b.pipes[t.Name] == nil {
			return nil, fmt.Errorf("trap %q: no pipe with that name", t.Name)
		}
		if _, ok := out[t.Name]; ok {
			return nil, fmt.Errorf("trap %q declared more than once", t.Name)
		}
		el, err := newTap(t)
		if err != nil {
			return nil, fmt.Errorf("trap %q: %w", t.Name, err)
		}
		out[t.Name] = el
	}
	return out, nil
}

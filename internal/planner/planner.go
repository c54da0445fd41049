package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/dag"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/nodeid"
	"github.com/specialistvlad/gridflow/internal/physical"
)

// Tracer receives planning artifacts as they are produced. Its failures are
// logged and never fail planning.
type Tracer interface {
	// Transform receives the graph after one rewrite or partition.
	Transform(phaseOrdinal int, phase string, ruleOrdinal int, name string, g *element.Graph) error
	// Steps receives the final step graph.
	Steps(flow string, steps *physical.StepGraph) error
	// Stats receives the planner statistics.
	Stats(flow string, stats any) error
}

// RuleResult is the output of one planning run.
type RuleResult struct {
	Assembly *element.Assembly
	// Graph is the resolved logical graph before partitioning.
	Graph *element.Graph
	Steps *physical.StepGraph
	// Trace holds one result tree per phase execution, in execution order.
	Trace []*Result
	Stats *Stats
}

// Option configures a Planner.
type Option func(*Planner)

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(p *Planner) { p.tracer = t }
}

// WithMaxRewrites overrides the convergence guard of every transform.
func WithMaxRewrites(n int) Option {
	return func(p *Planner) { p.maxRewrites = n }
}

// Planner turns an assembly into a step graph by running every phase of its
// registry.
type Planner struct {
	registry    *Registry
	tracer      Tracer
	maxRewrites int
	engine      *Engine
}

// New returns a planner over reg.
func New(reg *Registry, opts ...Option) *Planner {
	p := &Planner{registry: reg}
	for _, opt := range opts {
		opt(p)
	}
	p.engine = NewEngine(reg, p.maxRewrites)
	return p
}

// run carries the state of one Plan call.
type run struct {
	*Planner
	ctx   context.Context
	flow  string
	trace []*Result
	stats *Stats
}

// Plan validates asm and produces its physical plan. Planning is pure: asm is
// never modified.
func (p *Planner) Plan(ctx context.Context, asm *element.Assembly) (*RuleResult, error) {
	start := time.Now()
	ctx = ctxlog.With(ctx, "flow", asm.Name, "registry", p.registry.Name())
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Planning flow.")

	if err := asm.Graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid assembly %q: %w", asm.Name, err)
	}

	r := &run{Planner: p, ctx: ctx, flow: asm.Name, stats: newStats(asm.Name, p.registry.Name())}
	g := asm.Graph
	var err error
	for _, phase := range []Phase{PhasePreBalance, PhaseBalance, PhasePostBalance, PhasePreResolve} {
		if g, err = r.phase(phase, "flow", g); err != nil {
			return nil, err
		}
	}
	if g, err = r.resolve(g); err != nil {
		return nil, err
	}
	if g, err = r.phase(PhasePostResolve, "flow", g); err != nil {
		return nil, err
	}

	steps, err := r.build(g, asm.Traps)
	if err != nil {
		return nil, err
	}

	r.stats.finish(steps, time.Since(start))
	if p.tracer != nil {
		if err := p.tracer.Steps(asm.Name, steps); err != nil {
			logger.Warn("Failed to trace step graph.", "error", err)
		}
		if err := p.tracer.Stats(asm.Name, r.stats); err != nil {
			logger.Warn("Failed to trace planner stats.", "error", err)
		}
	}
	logger.Info("✅ Planning finished.",
		"steps", r.stats.Steps, "nodes", r.stats.Nodes, "pipelines", r.stats.Pipelines,
		"duration", r.stats.Duration)

	return &RuleResult{Assembly: asm, Graph: g, Steps: steps, Trace: r.trace, Stats: r.stats}, nil
}

// phase executes one rule phase over g. scope names the graph in traces.
func (r *run) phase(phase Phase, scope string, g *element.Graph) (*element.Graph, error) {
	start := time.Now()
	out, res, err := r.engine.ExecutePhase(r.ctx, phase, g)
	r.trace = append(r.trace, res)
	r.stats.phase(phase, res.Len(), time.Since(start))
	if err != nil {
		return nil, err
	}
	r.traceResult(scope, res)
	return out, nil
}

func (r *run) resolve(g *element.Graph) (*element.Graph, error) {
	start := time.Now()
	root := newRoot(PhaseResolve, PhaseResolve.String(), g)
	r.trace = append(r.trace, root)
	resolved, err := element.Resolve(g)
	r.stats.phase(PhaseResolve, 0, time.Since(start))
	if err != nil {
		return nil, &PlanningError{
			Phase:    PhaseResolve,
			Rule:     "resolve",
			Message:  "scope fields could not be resolved",
			Subgraph: g,
			Err:      err,
		}
	}
	root.child("resolve", "resolve", g).child("resolve", "resolved", resolved)
	r.traceResult("flow", root)
	return resolved, nil
}

// split partitions g with the rules of a partition phase.
func (r *run) split(phase Phase, scope string, g *element.Graph) ([]*element.Graph, error) {
	start := time.Now()
	parts, err := SplitAt(g, r.registry.Boundaries(phase, g))
	r.stats.phase(phase, len(parts), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("phase %s: %w", phase, err)
	}
	for i, part := range parts {
		r.emit(phase, 0, fmt.Sprintf("%s-partition-%d", scope, i), part)
	}
	return parts, nil
}

// build splits g into steps, nodes and pipelines, running the post phase of
// every level on each partition.
func (r *run) build(g *element.Graph, traps map[string]*element.Tap) (*physical.StepGraph, error) {
	sg := physical.NewStepGraph(r.flow)

	stepGraphs, err := r.split(PhasePartitionSteps, "flow", g)
	if err != nil {
		return nil, err
	}
	for i := range stepGraphs {
		id := sg.Flow.Step(i)
		if stepGraphs[i], err = r.phase(PhasePostSteps, segmentName(id), stepGraphs[i]); err != nil {
			return nil, err
		}
		step, err := r.buildStep(id, i, stepGraphs[i], traps)
		if err != nil {
			return nil, err
		}
		sg.AddStep(step)
	}

	for _, link := range physical.Link(stepGraphs) {
		if err := sg.AddDependency(sg.Steps[link[0]], sg.Steps[link[1]]); err != nil {
			return nil, fmt.Errorf("linking steps: %w", err)
		}
	}
	if err := sg.Deps().DetectCycles(); err != nil {
		return nil, fmt.Errorf("step graph: %w", err)
	}
	return sg, nil
}

func (r *run) buildStep(id *nodeid.Address, ordinal int, g *element.Graph, traps map[string]*element.Tap) (*physical.Step, error) {
	step := &physical.Step{ID: id, Ordinal: ordinal, Graph: g, NodeDeps: dag.New()}

	nodeGraphs, err := r.split(PhasePartitionNodes, segmentName(id), g)
	if err != nil {
		return nil, err
	}
	for j := range nodeGraphs {
		nid := id.Node(j)
		if nodeGraphs[j], err = r.phase(PhasePostNodes, segmentName(nid), nodeGraphs[j]); err != nil {
			return nil, err
		}
		node := &physical.Node{ID: nid, Ordinal: j, Graph: nodeGraphs[j], Traps: nodeTraps(nodeGraphs[j], traps)}

		pipeGraphs, err := r.split(PhasePartitionPipelines, segmentName(nid), nodeGraphs[j])
		if err != nil {
			return nil, err
		}
		for k := range pipeGraphs {
			pid := nid.Pipeline(k)
			if pipeGraphs[k], err = r.phase(PhasePostPipelines, segmentName(pid), pipeGraphs[k]); err != nil {
				return nil, err
			}
			node.Pipelines = append(node.Pipelines, &physical.Pipeline{ID: pid, Ordinal: k, Graph: pipeGraphs[k]})
		}
		step.Nodes = append(step.Nodes, node)
		step.NodeDeps.AddNode(nid.String())
	}

	for _, link := range physical.Link(nodeGraphs) {
		from, to := step.Nodes[link[0]].ID.String(), step.Nodes[link[1]].ID.String()
		if err := step.NodeDeps.AddEdge(from, to); err != nil {
			return nil, fmt.Errorf("linking nodes of %s: %w", id, err)
		}
	}
	return step, nil
}

// nodeTraps selects the traps declared for the branch names present in g.
func nodeTraps(g *element.Graph, traps map[string]*element.Tap) map[string]*element.Tap {
	out := make(map[string]*element.Tap)
	for _, e := range g.Elements() {
		if t, ok := traps[e.Name()]; ok {
			out[e.Name()] = t
		}
	}
	return out
}

func (r *run) traceResult(scope string, root *Result) {
	for _, rule := range root.Children {
		for _, rewrite := range rule.Rewrites() {
			r.emit(root.Phase, rule.Ordinal(), scope+"-"+rewrite.Name, rewrite.Graph)
		}
	}
}

func (r *run) emit(phase Phase, ruleOrdinal int, name string, g *element.Graph) {
	if r.tracer == nil {
		return
	}
	if err := r.tracer.Transform(int(phase), phase.String(), ruleOrdinal, name, g); err != nil {
		ctxlog.FromContext(r.ctx).Warn("Failed to trace transform.", "phase", phase.String(), "name", name, "error", err)
	}
}

// segmentName renders the last address segment, e.g. "node[2]".
func segmentName(a *nodeid.Address) string {
	last := a.Last()
	if last.HasIndex() {
		return fmt.Sprintf("%s[%d]", last.Name, last.Index)
	}
	return last.Name
}

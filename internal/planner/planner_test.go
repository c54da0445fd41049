package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/expression"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/physical"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type splitFn struct{}

func (splitFn) Name() string           { return "split" }
func (splitFn) Declared() tuple.Fields { return tuple.NewFields("key", "word") }
func (splitFn) Operate(_ context.Context, args tuple.Entry, out operation.Collector) error {
	parts := strings.Fields(args.Tuple[0].(string))
	vals := make([]any, len(parts))
	for i, p := range parts {
		vals[i] = p
	}
	return out.Collect(tuple.Of(vals...))
}

type countAgg struct{}

func (countAgg) Name() string           { return "count" }
func (countAgg) Declared() tuple.Fields { return tuple.NewFields("count") }
func (countAgg) Start(context.Context, tuple.Entry) (any, error) {
	return int64(0), nil
}
func (countAgg) Aggregate(_ context.Context, state any, _ tuple.Entry) (any, error) {
	return state.(int64) + 1, nil
}
func (countAgg) Complete(_ context.Context, state any) (tuple.Tuple, error) {
	return tuple.Of(state), nil
}

type fixture struct {
	graph  *element.Graph
	source *element.Tap
	pipe   *element.Pipe
	split  *element.Operator
	group  *element.Splice
	count  *element.Operator
	sink   *element.Tap
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	var f fixture
	var err error
	f.source = element.NewTap("lines", tap.NewMemory("in", tuple.NewFields("line")))
	f.pipe = element.NewPipe("lines")
	f.split, err = element.NewEach("lines", splitFn{})
	require.NoError(t, err)
	f.group = element.NewGroupBy("lines", tuple.NewFields("key"))
	f.count, err = element.NewEvery("lines", countAgg{})
	require.NoError(t, err)
	f.sink = element.NewTap("lines", tap.NewMemory("out", nil))

	g := element.NewGraph()
	chain := []element.Element{f.source, f.pipe, f.split, f.group, f.count, f.sink}
	for _, e := range chain {
		g.AddVertex(e)
	}
	for i := 1; i < len(chain); i++ {
		g.MustAddEdge(chain[i-1], chain[i], nil)
	}
	g.Normalize()
	f.graph = g
	return f
}

func removePipes() *Rule {
	return Contract("remove-pipes", PhasePreResolve,
		expression.New(expression.Element("pipe", expression.RoleSecondary, expression.Kinds(element.KindPipe))), "")
}

func boundaryBeforeGrouping() *Rule {
	return Insert("boundary-before-grouping", PhaseBalance,
		expression.New(
			expression.Element("upstream", expression.RolePrimary, expression.Not(expression.Is(element.IsConnector))),
			expression.Element("grouping", expression.RoleSecondary, expression.Is(element.IsGrouping)),
		).Arc(0, 1, nil), "boundary")
}

var testFactories = map[string]Factory{
	"boundary":   func(name string) element.Element { return element.NewBoundary(name) },
	"checkpoint": func(name string) element.Element { return element.NewCheckpoint(name) },
	"pipe":       func(name string) element.Element { return element.NewPipe(name) },
}

func testRegistry(t *testing.T, extra ...*Rule) *Registry {
	t.Helper()
	rules := []*Rule{
		removePipes(),
		boundaryBeforeGrouping(),
		Partition("nodes-at-boundaries", PhasePartitionNodes,
			expression.New(expression.Element("boundary", expression.RolePrimary, expression.Kinds(element.KindBoundary)))),
		Partition("pipelines-at-gates", PhasePartitionPipelines,
			expression.New(expression.Element("gate", expression.RolePrimary, expression.Is(element.IsSplice)))),
	}
	reg, err := NewRegistry("test", testFactories, append(rules, extra...)...)
	require.NoError(t, err)
	return reg
}

func testContext() context.Context {
	return ctxlog.Discard(context.Background())
}

func TestNewRegistryRejectsInvalidRules(t *testing.T) {
	pipe := expression.New(expression.Element("pipe", expression.RoleSecondary, expression.Kinds(element.KindPipe)))

	testCases := []struct {
		name    string
		rules   []*Rule
		wantErr error
		wantMsg string
	}{
		{
			name:    "duplicate names",
			rules:   []*Rule{removePipes(), removePipes()},
			wantErr: ErrInvalidRegistry,
			wantMsg: `duplicate rule "remove-pipes"`,
		},
		{
			name:    "partition outside a partition phase",
			rules:   []*Rule{Partition("cut", PhaseBalance, pipe)},
			wantErr: ErrInvalidRegistry,
			wantMsg: "cannot run in phase balance",
		},
		{
			name:    "transform inside a partition phase",
			rules:   []*Rule{Contract("drop", PhasePartitionSteps, pipe, "")},
			wantErr: ErrInvalidRegistry,
			wantMsg: "cannot run in phase partition-steps",
		},
		{
			name:    "rule in the resolve phase",
			rules:   []*Rule{Assert("check", PhaseResolve, pipe, "no")},
			wantErr: ErrInvalidRegistry,
			wantMsg: "cannot run in phase resolve",
		},
		{
			name:    "empty expression",
			rules:   []*Rule{Assert("empty", PhasePreBalance, expression.New(), "no")},
			wantErr: ErrInvalidRegistry,
			wantMsg: "expression graph is empty",
		},
		{
			name:    "unknown factory",
			rules:   []*Rule{Insert("add", PhaseBalance, pipe, "nope")},
			wantErr: ErrMissingFactory,
			wantMsg: `factory "nope"`,
		},
		{
			name:    "insert without factory",
			rules:   []*Rule{Insert("add", PhaseBalance, pipe, "")},
			wantErr: ErrMissingFactory,
			wantMsg: "insert requires a factory",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry("broken", testFactories, tc.rules...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, ErrInvalidRegistry)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestAssertionRaisesPlanningError(t *testing.T) {
	f := newFixture(t)
	reg := testRegistry(t, Assert("no-pipes", PhasePreBalance,
		expression.New(expression.Element("pipe", expression.RolePrimary, expression.Kinds(element.KindPipe))),
		"pipe markers are not allowed"))

	_, _, err := NewEngine(reg, 0).ExecutePhase(testContext(), PhasePreBalance, f.graph)

	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhasePreBalance, perr.Phase)
	assert.Equal(t, "no-pipes", perr.Rule)
	assert.Equal(t, "pipe markers are not allowed", perr.Message)
	assert.Equal(t, []element.Element{f.pipe}, perr.Subgraph.Elements())
}

func TestContractBridgesScopesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(testRegistry(t), 0)
	before := f.graph.String()

	once, res, err := engine.ExecutePhase(testContext(), PhasePreResolve, f.graph)
	require.NoError(t, err)
	assert.Equal(t, before, f.graph.String(), "input graph must not change")
	assert.False(t, once.Contains(f.pipe))
	assert.Equal(t, []element.Element{f.source}, once.Predecessors(f.split))
	require.NoError(t, once.Validate())
	assert.Equal(t, 1, res.Len())
	assert.Same(t, once, res.Final().Graph)

	twice, res, err := engine.ExecutePhase(testContext(), PhasePreResolve, once)
	require.NoError(t, err)
	assert.Same(t, once, twice)
	assert.Zero(t, res.Len())
	assert.True(t, element.SameStructure(once, twice))
}

func TestRewritesFormAChain(t *testing.T) {
	f := newFixture(t)
	regroup := element.NewGroupBy("lines", tuple.NewFields("key"))
	recount, err := element.NewEvery("lines", countAgg{})
	require.NoError(t, err)

	g := element.NewGraph()
	chain := []element.Element{f.source, f.split, f.group, f.count, regroup, recount, f.sink}
	for _, e := range chain {
		g.AddVertex(e)
	}
	for i := 1; i < len(chain); i++ {
		g.MustAddEdge(chain[i-1], chain[i], nil)
	}
	g.Normalize()

	out, res, err := NewEngine(testRegistry(t), 0).ExecutePhase(testContext(), PhaseBalance, g)
	require.NoError(t, err)
	assert.Equal(t, element.KindBoundary, out.Predecessors(f.group)[0].Kind())
	assert.Equal(t, element.KindBoundary, out.Predecessors(regroup)[0].Kind())

	require.Len(t, res.Children, 1)
	rule := res.Children[0]
	rewrites := rule.Rewrites()
	require.Len(t, rewrites, 2)
	assert.Same(t, rule, rewrites[0].Parent)
	assert.Same(t, rewrites[0], rewrites[1].Parent)
	assert.Equal(t, []int{0, 0, 0}, rewrites[1].Path)
	assert.Equal(t, "boundary-before-grouping-1", rewrites[1].Name)
	assert.Same(t, g, rule.Graph)
	assert.Same(t, out, res.Final().Graph)
	assert.Equal(t, 2, res.Len())
}

func TestContractWithFactoryInheritsBoundaryScopes(t *testing.T) {
	f := newFixture(t)
	reg, err := NewRegistry("test", testFactories, Contract("pipe-to-checkpoint", PhasePreResolve,
		expression.New(expression.Element("pipe", expression.RoleSecondary, expression.Kinds(element.KindPipe))), "checkpoint"))
	require.NoError(t, err)

	out, _, err := NewEngine(reg, 0).ExecutePhase(testContext(), PhasePreResolve, f.graph)
	require.NoError(t, err)

	preds := out.Predecessors(f.split)
	require.Len(t, preds, 1)
	assert.Equal(t, element.KindCheckpoint, preds[0].Kind())
	assert.Equal(t, []element.Element{f.source}, out.Predecessors(preds[0]))
	assert.Equal(t, f.graph.Incoming(f.split)[0].Scope, out.Incoming(f.split)[0].Scope)
}

func TestInsertBoundaryBeforeGrouping(t *testing.T) {
	f := newFixture(t)
	out, res, err := NewEngine(testRegistry(t), 0).ExecutePhase(testContext(), PhaseBalance, f.graph)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())

	preds := out.Predecessors(f.group)
	require.Len(t, preds, 1)
	assert.Equal(t, element.KindBoundary, preds[0].Kind())
	assert.Equal(t, []element.Element{f.split}, out.Predecessors(preds[0]))
	assert.Same(t, f.graph.Incoming(f.group)[0].Scope, out.Incoming(f.group)[0].Scope)
}

func TestAnnotateMarksPrimariesOnce(t *testing.T) {
	f := newFixture(t)
	reg := testRegistry(t, Annotate("streamed-sources", PhasePostBalance,
		expression.New(expression.Element("source", expression.RolePrimary,
			expression.Kinds(element.KindTap), expression.Source())),
		element.AnnotationStreamed))
	engine := NewEngine(reg, 0)

	out, res, err := engine.ExecutePhase(testContext(), PhasePostBalance, f.graph)
	require.NoError(t, err)
	assert.True(t, out.HasAnnotation(f.source, element.AnnotationStreamed))
	assert.False(t, out.HasAnnotation(f.sink, element.AnnotationStreamed))
	assert.False(t, f.graph.HasAnnotation(f.source, element.AnnotationStreamed))
	assert.Equal(t, 1, res.Len())

	_, res, err = engine.ExecutePhase(testContext(), PhasePostBalance, out)
	require.NoError(t, err)
	assert.Zero(t, res.Len())
}

func TestTransformConvergenceGuard(t *testing.T) {
	f := newFixture(t)
	reg := testRegistry(t, Insert("endless", PhasePostBalance,
		expression.New(
			expression.Element("fn", expression.RolePrimary, expression.Kinds(element.KindFunction)),
			expression.Element("next", expression.RoleSecondary, expression.Any()),
		).Arc(0, 1, nil), "pipe"))

	_, _, err := NewEngine(reg, 5).ExecutePhase(testContext(), PhasePostBalance, f.graph)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoConvergence))
	assert.Contains(t, err.Error(), `rule "endless" after 5 rewrites`)
}

func TestSplitAtIsTotal(t *testing.T) {
	f := newFixture(t)
	engine := NewEngine(testRegistry(t), 0)
	balanced, _, err := engine.ExecutePhase(testContext(), PhaseBalance, f.graph)
	require.NoError(t, err)

	boundary := balanced.Predecessors(f.group)[0]
	parts, err := SplitAt(balanced, []element.Element{boundary})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	assert.Equal(t, []element.Element{f.source, f.pipe, f.split, boundary}, parts[0].Elements())
	assert.Equal(t, []element.Element{f.group, f.count, f.sink, boundary}, parts[1].Elements())
	for _, p := range parts {
		require.NoError(t, p.Validate())
	}
	assert.True(t, element.SameStructure(balanced, element.Union(parts...)))

	counts := make(map[element.Element]int)
	for _, p := range parts {
		for _, e := range p.Elements() {
			counts[e]++
		}
	}
	for _, e := range balanced.Elements() {
		want := 1
		if e == boundary {
			want = 2
		}
		assert.Equal(t, want, counts[e], "element %s", e)
	}
}

func TestSplitAtWithoutBoundariesKeepsGraph(t *testing.T) {
	f := newFixture(t)
	parts, err := SplitAt(f.graph, nil)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.True(t, element.SameStructure(f.graph, parts[0]))
}

type recordingTracer struct {
	transforms []string
	steps      int
	stats      []any
	fail       bool
}

func (r *recordingTracer) Transform(_ int, phase string, _ int, name string, _ *element.Graph) error {
	r.transforms = append(r.transforms, phase+":"+name)
	if r.fail {
		return errors.New("disk full")
	}
	return nil
}

func (r *recordingTracer) Steps(string, *physical.StepGraph) error {
	r.steps++
	return nil
}

func (r *recordingTracer) Stats(_ string, s any) error {
	r.stats = append(r.stats, s)
	return nil
}

func TestPlanWordCount(t *testing.T) {
	f := newFixture(t)
	tracer := &recordingTracer{fail: true}
	p := New(testRegistry(t), WithTracer(tracer))

	res, err := p.Plan(testContext(), &element.Assembly{Name: "word count", Graph: f.graph})
	require.NoError(t, err)

	sg := res.Steps
	assert.Equal(t, "word_count", sg.Flow.String())
	require.Len(t, sg.Steps, 1)
	step := sg.Steps[0]
	require.Len(t, step.Nodes, 2)
	assert.Equal(t, "word_count.step[0].node[0]", step.Nodes[0].ID.String())
	assert.Equal(t, "word_count.step[0].node[1]", step.Nodes[1].ID.String())

	deps, err := step.NodeDeps.Dependencies("word_count.step[0].node[1]")
	require.NoError(t, err)
	assert.Equal(t, []string{"word_count.step[0].node[0]"}, deps)

	assert.Len(t, step.Nodes[0].Pipelines, 1)
	assert.Len(t, step.Nodes[1].Pipelines, 2)
	assert.Equal(t, "word_count.step[0].node[1].pipeline[1]", step.Nodes[1].Pipelines[1].ID.String())

	assert.False(t, res.Graph.Contains(f.pipe))
	assert.Equal(t, tuple.NewFields("key", "count"), res.Graph.Incoming(f.sink)[0].Scope.Fields)

	assert.Equal(t, 1, res.Stats.Steps)
	assert.Equal(t, 2, res.Stats.Nodes)
	assert.Equal(t, 3, res.Stats.Pipelines)
	assert.Equal(t, 1, tracer.steps, "tracer failures must not stop planning")
	assert.Len(t, tracer.stats, 1)
	assert.Contains(t, tracer.transforms, "balance:flow-boundary-before-grouping-0")
	assert.Contains(t, tracer.transforms, "partition-nodes:step[0]-partition-1")
}

func TestPlanWithoutContextLogger(t *testing.T) {
	f := newFixture(t)
	var res *RuleResult
	require.NotPanics(t, func() {
		var err error
		res, err = New(testRegistry(t)).Plan(context.Background(), &element.Assembly{Name: "wc", Graph: f.graph})
		require.NoError(t, err)
	})
	require.Len(t, res.Steps.Steps, 1)
}

func TestPlanResolveFailure(t *testing.T) {
	f := newFixture(t)
	g := f.graph.Copy()
	g.RemoveVertex(f.pipe)
	g.RemoveVertex(f.split)
	g.MustAddEdge(f.source, f.group, nil)
	g.Normalize()

	_, err := New(testRegistry(t)).Plan(testContext(), &element.Assembly{Name: "broken", Graph: g})
	var perr *PlanningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseResolve, perr.Phase)
	assert.ErrorIs(t, err, element.ErrFieldResolution)
}

package element

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type splitFn struct{ declared tuple.Fields }

func (s splitFn) Name() string           { return "split" }
func (s splitFn) Declared() tuple.Fields { return s.declared }
func (s splitFn) Operate(_ context.Context, args tuple.Entry, out operation.Collector) error {
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

type wordCount struct {
	graph  *Graph
	source *Tap
	split  *Operator
	group  *Splice
	count  *Operator
	sink   *Tap
}

func newWordCount(t *testing.T) wordCount {
	t.Helper()
	var w wordCount
	var err error
	w.source = NewTap("lines", tap.NewMemory("in", tuple.NewFields("line")))
	w.split, err = NewEach("lines", splitFn{declared: tuple.NewFields("key", "word")})
	require.NoError(t, err)
	w.group = NewGroupBy("lines", tuple.NewFields("key"))
	w.count, err = NewEvery("lines", countAgg{})
	require.NoError(t, err)
	w.sink = NewTap("lines", tap.NewMemory("out", nil))

	g := NewGraph()
	for _, e := range []Element{w.source, w.split, w.group, w.count, w.sink} {
		g.AddVertex(e)
	}
	g.MustAddEdge(w.source, w.split, nil)
	g.MustAddEdge(w.split, w.group, nil)
	g.MustAddEdge(w.group, w.count, nil)
	g.MustAddEdge(w.count, w.sink, nil)
	g.Normalize()
	w.graph = g
	return w
}

func TestGraphCopyOnWrite(t *testing.T) {
	w := newWordCount(t)
	before := w.graph.String()

	c := w.graph.Copy()
	c.RemoveVertex(w.split)
	c.Annotate(w.source, AnnotationStreamed)

	assert.Equal(t, before, w.graph.String())
	assert.True(t, w.graph.Contains(w.split))
	assert.False(t, c.Contains(w.split))
	assert.False(t, w.graph.HasAnnotation(w.source, AnnotationStreamed))
	assert.True(t, c.HasAnnotation(w.source, AnnotationStreamed))
}

func TestTopologicalOrder(t *testing.T) {
	w := newWordCount(t)
	order, err := w.graph.TopologicalOrder()
	require.NoError(t, err)
	want := []Element{Head, w.source, w.split, w.group, w.count, w.sink, Tail}
	assert.Equal(t, want, order)

	w.graph.MustAddEdge(w.count, w.split, nil)
	_, err = w.graph.TopologicalOrder()
	assert.ErrorIs(t, err, ErrCycle)
}

func TestNormalizeAndValidate(t *testing.T) {
	w := newWordCount(t)
	require.NoError(t, w.graph.Validate())
	assert.Equal(t, []Element{w.source}, w.graph.Successors(Head))
	assert.Equal(t, []Element{w.sink}, w.graph.Predecessors(Tail))

	orphan := NewPipe("orphan")
	w.graph.AddVertex(orphan)
	assert.ErrorContains(t, w.graph.Validate(), "not reachable from head")

	w.graph.Normalize()
	assert.NoError(t, w.graph.Validate())
}

func TestAddEdgeRejectsUnknownAndSelfLoops(t *testing.T) {
	g := NewGraph()
	p := NewPipe("p")
	assert.ErrorContains(t, g.AddEdge(p, Tail, nil), "source element not found")
	g.AddVertex(p)
	assert.ErrorContains(t, g.AddEdge(p, p, nil), "self-referential")
}

func TestMultigraphEdges(t *testing.T) {
	g := NewGraph()
	a, b := NewPipe("a"), NewGroupBy("b", tuple.NewFields("k"))
	g.AddVertex(a)
	g.AddVertex(b)
	first, second := NewScope("a", 0), NewScope("a", 1)
	g.MustAddEdge(a, b, first)
	g.MustAddEdge(a, b, second)

	assert.Len(t, g.Outgoing(a), 2)
	assert.Len(t, g.Successors(a), 1)

	g.RemoveEdge(Edge{From: a, To: b, Scope: first})
	require.Len(t, g.Incoming(b), 1)
	assert.Same(t, second, g.Incoming(b)[0].Scope)
}

func TestResolveWordCount(t *testing.T) {
	w := newWordCount(t)
	r, err := Resolve(w.graph)
	require.NoError(t, err)

	scopeOf := func(from, to Element) *Scope {
		for _, ed := range r.Outgoing(from) {
			if ed.To == to {
				return ed.Scope
			}
		}
		t.Fatalf("no edge %s -> %s", from, to)
		return nil
	}

	assert.Equal(t, tuple.NewFields("line"), scopeOf(w.source, w.split).Fields)
	assert.Equal(t, tuple.NewFields("key", "word"), scopeOf(w.split, w.group).Fields)

	grouped := scopeOf(w.group, w.count)
	assert.True(t, grouped.Grouped)
	assert.Equal(t, tuple.NewFields("key"), grouped.Key)
	assert.Equal(t, tuple.NewFields("key", "word"), grouped.Values)

	assert.Equal(t, tuple.NewFields("key", "count"), scopeOf(w.count, w.sink).Fields)

	// the input graph keeps its unresolved scopes
	for _, ed := range w.graph.Edges() {
		assert.Nil(t, ed.Scope.Fields)
	}
}

func TestResolveFailures(t *testing.T) {
	t.Run("unknown group key", func(t *testing.T) {
		w := newWordCount(t)
		g := w.graph.Copy()
		bad := NewGroupBy("lines", tuple.NewFields("missing"))
		g.AddVertex(bad)
		g.RemoveVertex(w.group)
		g.MustAddEdge(w.split, bad, nil)
		g.MustAddEdge(bad, w.count, nil)
		g.Normalize()

		_, err := Resolve(g)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFieldResolution))
		assert.ErrorContains(t, err, "missing")
	})

	t.Run("every without grouping", func(t *testing.T) {
		w := newWordCount(t)
		g := w.graph.Copy()
		g.RemoveVertex(w.group)
		g.MustAddEdge(w.split, w.count, nil)
		g.Normalize()

		_, err := Resolve(g)
		assert.ErrorIs(t, err, ErrFieldResolution)
	})

	t.Run("colliding join fields", func(t *testing.T) {
		left := NewTap("left", tap.NewMemory("l", tuple.NewFields("k", "v")))
		right := NewTap("right", tap.NewMemory("r", tuple.NewFields("k", "v")))
		cg := NewCoGroup("join", []tuple.Fields{tuple.NewFields("k")}, nil, nil)
		g := NewGraph()
		g.AddVertex(left)
		g.AddVertex(right)
		g.AddVertex(cg)
		g.MustAddEdge(left, cg, NewScope("left", 0))
		g.MustAddEdge(right, cg, NewScope("right", 1))
		g.Normalize()

		_, err := Resolve(g)
		assert.ErrorContains(t, err, "collide")
	})
}

func TestResolveOutputModes(t *testing.T) {
	in := tuple.NewFields("line", "n")
	fn := splitFn{declared: tuple.NewFields("word")}

	testCases := []struct {
		name string
		opts []OperatorOption
		want tuple.Fields
	}{
		{name: "results", want: tuple.NewFields("word")},
		{name: "all", opts: []OperatorOption{WithArguments(tuple.NewFields("line")), WithOutput(OutputAll)}, want: tuple.NewFields("line", "n", "word")},
		{name: "swap", opts: []OperatorOption{WithArguments(tuple.NewFields("line")), WithOutput(OutputSwap)}, want: tuple.NewFields("n", "word")},
		{name: "explicit", opts: []OperatorOption{WithOutputFields(tuple.NewFields("word", "n"))}, want: tuple.NewFields("word", "n")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			op, err := NewEach("x", fn, tc.opts...)
			require.NoError(t, err)
			_, plan, err := op.Plan(in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, plan.Fields)
		})
	}

	t.Run("apply", func(t *testing.T) {
		op, err := NewEach("x", fn, WithArguments(tuple.NewFields("line")), WithOutput(OutputSwap))
		require.NoError(t, err)
		_, plan, err := op.Plan(in)
		require.NoError(t, err)
		assert.Equal(t, tuple.Of(3, "a"), plan.Apply(tuple.Of("a b", 3), tuple.Of("a")))
	})
}

func TestUnionSameStructure(t *testing.T) {
	w := newWordCount(t)
	upstream := w.graph.InducedSubgraph([]Element{w.source, w.split, w.group})
	downstream := w.graph.InducedSubgraph([]Element{w.group, w.count, w.sink})

	u := Union(upstream, downstream)
	assert.True(t, SameStructure(w.graph, u))
	assert.False(t, SameStructure(w.graph, upstream))
}

func TestNewEachRejectsGroupOperations(t *testing.T) {
	_, err := NewEach("x", countAgg{})
	assert.ErrorContains(t, err, "cannot be used in an each")
	_, err = NewEvery("x", splitFn{})
	assert.ErrorContains(t, err, "cannot be used in an every")
}

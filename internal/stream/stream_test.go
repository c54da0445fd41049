package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/join"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/nodeid"
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
	if len(parts) != 2 {
		return fmt.Errorf("malformed line %q", args.Tuple[0])
	}
	return out.Collect(tuple.Of(parts[0], parts[1]))
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

// rankBuffer emits every value of a group with its position.
type rankBuffer struct{}

func (rankBuffer) Name() string           { return "rank" }
func (rankBuffer) Declared() tuple.Fields { return tuple.NewFields("word", "rank") }
func (rankBuffer) Operate(_ context.Context, _ tuple.Entry, values operation.Values, out operation.Collector) error {
	rank := 0
	for values.Next() {
		rank++
		if err := out.Collect(tuple.Of(values.Entry().Tuple[0], rank)); err != nil {
			return err
		}
	}
	return values.Err()
}

// rejectFilter fails on the configured value.
type rejectFilter struct{ bad string }

func (rejectFilter) Name() string           { return "reject" }
func (rejectFilter) Declared() tuple.Fields { return nil }
func (f rejectFilter) Remove(_ context.Context, args tuple.Entry) (bool, error) {
	if args.Tuple[0] == f.bad {
		return false, errors.New("rejected value")
	}
	return false, nil
}

func testContext() context.Context {
	return ctxlog.Discard(context.Background())
}

func words(records ...string) []tuple.Tuple {
	out := make([]tuple.Tuple, len(records))
	for i, r := range records {
		out[i] = tuple.Of(r)
	}
	return out
}

// harness resolves a graph into a node and binds memory connectors to it.
type harness struct {
	node    *physical.Node
	handles Handles
	sinks   map[element.Element]*tap.Memory
	traps   map[string]*tap.Memory
}

func newHarness(t *testing.T, g *element.Graph, annotate func(*element.Graph)) *harness {
	t.Helper()
	g.Normalize()
	resolved, err := element.Resolve(g)
	require.NoError(t, err)
	if annotate != nil {
		annotate(resolved)
	}

	h := &harness{
		node: &physical.Node{ID: nodeid.Flow("test").Step(0).Node(0), Graph: resolved},
		handles: Handles{
			Sources: make(map[element.Element]tap.Reader),
			Sinks:   make(map[element.Element]tap.Writer),
			Traps:   make(map[string]tap.Writer),
		},
		sinks: make(map[element.Element]*tap.Memory),
		traps: make(map[string]*tap.Memory),
	}
	ctx := context.Background()
	for _, e := range h.node.Sources() {
		r, err := e.(*element.Tap).Tap().OpenRead(ctx)
		require.NoError(t, err)
		h.handles.Sources[e] = r
	}
	for _, e := range h.node.Sinks() {
		m := tap.NewMemory(e.Name(), nil)
		w, err := m.OpenWrite(ctx)
		require.NoError(t, err)
		h.handles.Sinks[e] = w
		h.sinks[e] = m
	}
	return h
}

func (h *harness) trap(t *testing.T, branch string) *tap.Memory {
	t.Helper()
	m := tap.NewMemory("trap-"+branch, nil)
	w, err := m.OpenWrite(context.Background())
	require.NoError(t, err)
	h.handles.Traps[branch] = w
	h.traps[branch] = m
	return m
}

func (h *harness) run(t *testing.T, opts Options) error {
	t.Helper()
	g, err := Build(testContext(), h.node, h.handles, opts)
	require.NoError(t, err)
	return g.Execute(testContext())
}

func chain(g *element.Graph, elements ...element.Element) {
	for _, e := range elements {
		g.AddVertex(e)
	}
	for i := 1; i < len(elements); i++ {
		g.MustAddEdge(elements[i-1], elements[i], nil)
	}
}

func wordCountGraph(t *testing.T, records ...string) (*element.Graph, *element.Tap) {
	t.Helper()
	source := element.NewTap("lines", tap.NewMemory("in", tuple.NewFields("line"), words(records...)...))
	split, err := element.NewEach("lines", splitFn{})
	require.NoError(t, err)
	group := element.NewGroupBy("lines", tuple.NewFields("key"))
	count, err := element.NewEvery("lines", countAgg{})
	require.NoError(t, err)
	sink := element.NewTap("lines", tap.NewMemory("out", nil))

	g := element.NewGraph()
	chain(g, source, split, group, count, sink)
	return g, sink
}

func TestExecuteWordCount(t *testing.T) {
	g, sink := wordCountGraph(t, "2 c", "1 a", "1 b")
	h := newHarness(t, g, nil)

	var events []string
	err := h.run(t, Options{Observer: func(l Lifecycle, s Stage) {
		events = append(events, l.String()+":"+s.Role())
	}})
	require.NoError(t, err)

	want := []tuple.Tuple{tuple.Of("1", 2), tuple.Of("2", 1)}
	if diff := cmp.Diff(want, h.sinks[sink].Records()); diff != "" {
		t.Errorf("sink records mismatch (-want +got):\n%s", diff)
	}

	roles := []string{"source", "each", "grouping-gate", "window-open", "aggregator", "window-close", "sink"}
	var wantEvents []string
	for _, r := range roles {
		wantEvents = append(wantEvents, "bind:"+r)
	}
	for i := len(roles) - 1; i >= 0; i-- {
		wantEvents = append(wantEvents, "initialize:"+roles[i])
	}
	for i := len(roles) - 1; i >= 0; i-- {
		wantEvents = append(wantEvents, "prepare:"+roles[i])
	}
	wantEvents = append(wantEvents, "run:source")
	for _, r := range roles {
		wantEvents = append(wantEvents, "cleanup:"+r)
	}
	assert.Equal(t, wantEvents, events)
}

func TestBuildDecidesWraps(t *testing.T) {
	left := element.NewTap("left", tap.NewMemory("l", tuple.NewFields("v"), tuple.Of(1)))
	right := element.NewTap("right", tap.NewMemory("r", tuple.NewFields("v"), tuple.Of(2)))
	merge := element.NewMerge("merged")
	first := element.NewTap("merged", tap.NewMemory("a", nil))
	second := element.NewTap("copy", tap.NewMemory("b", nil))

	g := element.NewGraph()
	for _, e := range []element.Element{left, right, merge, first, second} {
		g.AddVertex(e)
	}
	g.MustAddEdge(left, merge, element.NewScope("left", 0))
	g.MustAddEdge(right, merge, element.NewScope("right", 0))
	g.MustAddEdge(merge, first, nil)
	g.MustAddEdge(merge, second, nil)
	h := newHarness(t, g, nil)

	sg, err := Build(testContext(), h.node, h.handles, Options{})
	require.NoError(t, err)

	wraps := make(map[element.Element]Wrap)
	for _, s := range sg.Stages() {
		wraps[s.Element()] = s.Wrap()
	}
	assert.True(t, wraps[left].Has(WrapOrdinal))
	assert.False(t, wraps[left].Has(WrapFork))
	assert.True(t, wraps[merge].Has(WrapFork))
	assert.Equal(t, WrapNone, wraps[first])

	require.NoError(t, sg.Execute(testContext()))
	assert.ElementsMatch(t, []tuple.Tuple{tuple.Of(1), tuple.Of(2)}, h.sinks[first].Records())
	assert.ElementsMatch(t, []tuple.Tuple{tuple.Of(1), tuple.Of(2)}, h.sinks[second].Records())
}

func coGroupGraph(joiner join.Joiner) (*element.Graph, *element.Tap) {
	people := element.NewTap("people", tap.NewMemory("people", tuple.NewFields("id", "name"),
		tuple.Of(1, "ann"), tuple.Of(2, "bob"), tuple.Of(3, "cid")))
	scores := element.NewTap("scores", tap.NewMemory("scores", tuple.NewFields("pid", "score"),
		tuple.Of(3, 30), tuple.Of(1, 10), tuple.Of(1, 11), tuple.Of(4, 40)))
	cogroup := element.NewCoGroup("joined",
		[]tuple.Fields{tuple.NewFields("id"), tuple.NewFields("pid")}, joiner, nil)
	sink := element.NewTap("joined", tap.NewMemory("out", nil))

	g := element.NewGraph()
	for _, e := range []element.Element{people, scores, cogroup, sink} {
		g.AddVertex(e)
	}
	g.MustAddEdge(people, cogroup, element.NewScope("people", 0))
	g.MustAddEdge(scores, cogroup, element.NewScope("scores", 1))
	g.MustAddEdge(cogroup, sink, nil)
	return g, sink
}

func TestExecuteCoGroup(t *testing.T) {
	testCases := []struct {
		name   string
		joiner join.Joiner
		want   []tuple.Tuple
	}{
		{
			name:   "inner",
			joiner: join.Inner(),
			want: []tuple.Tuple{
				tuple.Of(1, "ann", 1, 10),
				tuple.Of(1, "ann", 1, 11),
				tuple.Of(3, "cid", 3, 30),
			},
		},
		{
			name:   "outer",
			joiner: join.Outer(),
			want: []tuple.Tuple{
				tuple.Of(1, "ann", 1, 10),
				tuple.Of(1, "ann", 1, 11),
				{int64(2), "bob", nil, nil},
				tuple.Of(3, "cid", 3, 30),
				{nil, nil, int64(4), int64(40)},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, sink := coGroupGraph(tc.joiner)
			h := newHarness(t, g, nil)
			require.NoError(t, h.run(t, Options{}))
			if diff := cmp.Diff(tc.want, h.sinks[sink].Records()); diff != "" {
				t.Errorf("joined records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecuteSelfJoin(t *testing.T) {
	testCases := []struct {
		name   string
		splice func(key, declared tuple.Fields) *element.Splice
	}{
		{
			name: "co-group",
			splice: func(key, declared tuple.Fields) *element.Splice {
				return element.NewSelfCoGroup("pairs", key, 1, join.Inner(), declared)
			},
		},
		{
			name: "hash join",
			splice: func(key, declared tuple.Fields) *element.Splice {
				return element.NewSelfHashJoin("pairs", key, 1, join.Inner(), declared)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			source := element.NewTap("pairs", tap.NewMemory("in", tuple.NewFields("k", "v"),
				tuple.Of("a", 1), tuple.Of("a", 2), tuple.Of("b", 3)))
			splice := tc.splice(tuple.NewFields("k"), tuple.NewFields("k1", "v1", "k2", "v2"))
			sink := element.NewTap("pairs", tap.NewMemory("out", nil))
			g := element.NewGraph()
			chain(g, source, splice, sink)
			h := newHarness(t, g, nil)

			require.NoError(t, h.run(t, Options{}))
			want := []tuple.Tuple{
				tuple.Of("a", 1, "a", 1),
				tuple.Of("a", 1, "a", 2),
				tuple.Of("a", 2, "a", 1),
				tuple.Of("a", 2, "a", 2),
				tuple.Of("b", 3, "b", 3),
			}
			if diff := cmp.Diff(want, h.sinks[sink].Records()); diff != "" {
				t.Errorf("self join mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func hashJoinGraph() (*element.Graph, *element.Tap, *element.Tap, *element.Tap) {
	orders := element.NewTap("orders", tap.NewMemory("orders", tuple.NewFields("oid", "cust"),
		tuple.Of(100, "x"), tuple.Of(101, "y"), tuple.Of(102, "x")))
	customers := element.NewTap("customers", tap.NewMemory("customers", tuple.NewFields("cid", "city"),
		tuple.Of("x", "oslo"), tuple.Of("z", "rome")))
	hj := element.NewHashJoin("enriched",
		[]tuple.Fields{tuple.NewFields("cust"), tuple.NewFields("cid")}, join.Left(), nil)
	sink := element.NewTap("enriched", tap.NewMemory("out", nil))

	g := element.NewGraph()
	for _, e := range []element.Element{orders, customers, hj, sink} {
		g.AddVertex(e)
	}
	g.MustAddEdge(orders, hj, element.NewScope("orders", 0))
	g.MustAddEdge(customers, hj, element.NewScope("customers", 1))
	g.MustAddEdge(hj, sink, nil)
	return g, orders, customers, sink
}

func TestExecuteHashJoinStreamsAgainstAccumulated(t *testing.T) {
	g, _, customers, sink := hashJoinGraph()
	h := newHarness(t, g, func(r *element.Graph) {
		r.Annotate(customers, element.AnnotationAccumulated)
	})

	var runs []element.Element
	err := h.run(t, Options{Observer: func(l Lifecycle, s Stage) {
		if l == LifecycleRun {
			runs = append(runs, s.Element())
		}
	}})
	require.NoError(t, err)

	assert.Equal(t, customers, runs[0], "accumulated source runs first")
	want := []tuple.Tuple{
		tuple.Of(100, "x", "x", "oslo"),
		{int64(101), "y", nil, nil},
		tuple.Of(102, "x", "x", "oslo"),
	}
	if diff := cmp.Diff(want, h.sinks[sink].Records()); diff != "" {
		t.Errorf("hash join mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteHashJoinRejectsEarlyStreamedRecords(t *testing.T) {
	g, _, _, _ := hashJoinGraph()
	h := newHarness(t, g, nil)

	err := h.run(t, Options{})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, element.KindHashJoin, stageErr.Element.Kind())
	assert.ErrorContains(t, err, "streamed record arrived before branch 1 completed")
}

func TestExecuteBufferSpills(t *testing.T) {
	source := element.NewTap("words", tap.NewMemory("in", tuple.NewFields("key", "word"),
		tuple.Of("k", "a"), tuple.Of("k", "b"), tuple.Of("k", "c"), tuple.Of("j", "d")))
	group := element.NewGroupBy("words", tuple.NewFields("key"))
	buffer, err := element.NewEvery("words", rankBuffer{}, element.WithArguments(tuple.NewFields("word")))
	require.NoError(t, err)
	sink := element.NewTap("words", tap.NewMemory("out", nil))
	g := element.NewGraph()
	chain(g, source, group, buffer, sink)
	h := newHarness(t, g, nil)

	counters := metrics.NewMemory()
	require.NoError(t, h.run(t, Options{SpillThreshold: 1, SpillDir: t.TempDir(), Counters: counters}))

	want := []tuple.Tuple{
		tuple.Of("j", "d", 1),
		tuple.Of("k", "a", 1),
		tuple.Of("k", "b", 2),
		tuple.Of("k", "c", 3),
	}
	if diff := cmp.Diff(want, h.sinks[sink].Records()); diff != "" {
		t.Errorf("buffer output mismatch (-want +got):\n%s", diff)
	}
	assert.Positive(t, counters.Get(metrics.GroupSpill, metrics.Spills))
	assert.Equal(t, int64(4), counters.Get(metrics.GroupStage, metrics.RecordsRead))
	assert.Equal(t, int64(4), counters.Get(metrics.GroupStage, metrics.RecordsWritten))
}

func filterGraph(t *testing.T) (*element.Graph, *element.Tap) {
	t.Helper()
	source := element.NewTap("values", tap.NewMemory("in", tuple.NewFields("v"), words("ok", "bad", "fine")...))
	filter, err := element.NewEach("values", rejectFilter{bad: "bad"})
	require.NoError(t, err)
	sink := element.NewTap("values", tap.NewMemory("out", nil))
	g := element.NewGraph()
	chain(g, source, filter, sink)
	return g, sink
}

func TestExecuteTrapsFailedRecords(t *testing.T) {
	g, sink := filterGraph(t)
	h := newHarness(t, g, nil)
	trap := h.trap(t, "values")

	counters := metrics.NewMemory()
	require.NoError(t, h.run(t, Options{Counters: counters}))

	assert.Equal(t, words("ok", "fine"), h.sinks[sink].Records())
	assert.Equal(t, words("bad"), trap.Records())
	assert.Equal(t, int64(1), counters.Get(metrics.GroupTrap, metrics.RecordsTrapped))
}

func TestExecuteFailsWithoutTrap(t *testing.T) {
	g, _ := filterGraph(t)
	h := newHarness(t, g, nil)

	err := h.run(t, Options{})
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, element.KindFilter, stageErr.Element.Kind())
	assert.ErrorContains(t, err, "rejected value")
}

// cancellingReader cancels the run after handing out its first record.
type cancellingReader struct {
	cancel context.CancelFunc
	reads  int
}

func (r *cancellingReader) Read(context.Context) (tuple.Tuple, error) {
	r.reads++
	if r.reads == 1 {
		r.cancel()
	}
	return tuple.Of(fmt.Sprintf("%d x", r.reads)), nil
}

func (r *cancellingReader) Close() error { return nil }

func TestExecuteCancellation(t *testing.T) {
	g, _ := wordCountGraph(t)
	h := newHarness(t, g, nil)

	ctx, cancel := context.WithCancel(testContext())
	defer cancel()
	for e := range h.handles.Sources {
		h.handles.Sources[e] = &cancellingReader{cancel: cancel}
	}

	var cleaned int
	sg, err := Build(ctx, h.node, h.handles, Options{Observer: func(l Lifecycle, _ Stage) {
		if l == LifecycleCleanup {
			cleaned++
		}
	}})
	require.NoError(t, err)

	err = sg.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "cancelled after 1 records")
	assert.Equal(t, len(sg.Stages()), cleaned, "cleanup runs for every stage")
}

func TestBuildRejectsUnsupportedElements(t *testing.T) {
	source := element.NewTap("lines", tap.NewMemory("in", tuple.NewFields("line")))
	pipe := element.NewPipe("lines")
	sink := element.NewTap("lines", tap.NewMemory("out", nil))
	g := element.NewGraph()
	chain(g, source, pipe, sink)
	h := newHarness(t, g, nil)

	_, err := Build(testContext(), h.node, h.handles, Options{})
	require.ErrorIs(t, err, ErrUnsupportedElement)
}

func TestBuildRequiresHandles(t *testing.T) {
	g, _ := wordCountGraph(t, "1 a")
	h := newHarness(t, g, nil)
	h.handles.Sinks = nil

	_, err := Build(testContext(), h.node, h.handles, Options{})
	assert.ErrorContains(t, err, "no writer bound")
}

package trace

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/planner"
	"github.com/specialistvlad/gridflow/internal/rules"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ planner.Tracer = (*Writer)(nil)

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

var _ operation.Aggregator = countAgg{}

func countGraph(t *testing.T) *element.Graph {
	t.Helper()
	src := element.NewTap("words", tap.NewMemory("in", tuple.NewFields("word")))
	group := element.NewGroupBy("words", tuple.NewFields("word"))
	count, err := element.NewEvery("words", countAgg{})
	require.NoError(t, err)
	out := element.NewTap("words", tap.NewMemory("out", nil))

	g := element.NewGraph()
	for _, e := range []element.Element{src, element.NewPipe("words"), group, count, out} {
		g.AddVertex(e)
	}
	g.MustAddEdge(src, g.Elements()[1], nil)
	g.MustAddEdge(g.Elements()[1], group, nil)
	g.MustAddEdge(group, count, nil)
	g.MustAddEdge(count, out, nil)
	g.Normalize()
	return g
}

func TestWriterProducesArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := New(Options{
		TransformPath: filepath.Join(dir, "transform"),
		StepPath:      filepath.Join(dir, "steps"),
		StatsPath:     filepath.Join(dir, "stats"),
	})
	reg, err := rules.Local()
	require.NoError(t, err)

	_, err = planner.New(reg, planner.WithTracer(w)).Plan(ctxlog.Discard(context.Background()),
		&element.Assembly{Name: "word count", Graph: countGraph(t)})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "transform"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "01-balance-00-flow-boundary-before-grouping-0.dot")
	assert.Contains(t, names, "03-pre-resolve-00-flow-remove-pipes-0.dot")
	assert.Contains(t, names, "04-resolve-00-flow-resolved.dot")

	steps, err := os.ReadFile(filepath.Join(dir, "steps", "word_count-steps.dot"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(steps), `digraph "word_count" {`))
	assert.Contains(t, string(steps), `label="node[1] pipelines=2";`)

	raw, err := os.ReadFile(filepath.Join(dir, "stats", "word_count-stats.json"))
	require.NoError(t, err)
	var doc struct {
		RunID string `json:"run_id"`
		Flow  string `json:"flow"`
		Stats struct {
			Registry string `json:"registry"`
			Steps    int    `json:"steps"`
			Nodes    int    `json:"nodes"`
		} `json:"stats"`
	}
	require.NoError(t, jsoniter.Unmarshal(raw, &doc))
	assert.Equal(t, w.RunID().String(), doc.RunID)
	assert.Equal(t, "word count", doc.Flow)
	assert.Equal(t, rules.LocalName, doc.Stats.Registry)
	assert.Equal(t, 1, doc.Stats.Steps)
	assert.Equal(t, 2, doc.Stats.Nodes)
}

func TestWriterDisabledPathsWriteNothing(t *testing.T) {
	w := New(Options{})
	assert.False(t, Options{}.Enabled())
	require.NoError(t, w.Transform(0, "pre-balance", 0, "x", element.NewGraph()))
	require.NoError(t, w.Stats("flow", map[string]int{}))
}

func TestWriteGraphMarksAnnotations(t *testing.T) {
	g := countGraph(t)
	src := g.Elements()[0]
	g.Annotate(src, element.AnnotationStreamed)

	var buf bytes.Buffer
	require.NoError(t, WriteGraph(&buf, "g", g))
	out := buf.String()
	assert.Contains(t, out, `shape=cylinder`)
	assert.Contains(t, out, `\nstreamed"`)
	assert.Contains(t, out, `shape=diamond`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

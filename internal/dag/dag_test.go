package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build returns a graph holding ids, in order, and the given edges.
func build(t *testing.T, ids []string, edges ...[2]string) *Graph {
	t.Helper()
	g := New()
	for _, id := range ids {
		g.AddNode(id)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestAddNodeIsIdempotent(t *testing.T) {
	g := New()
	g.AddNode("wc.step[0]")
	g.AddNode("wc.step[1]")
	g.AddNode("wc.step[0]")

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []string{"wc.step[0]", "wc.step[1]"}, g.Nodes())
}

func TestAddEdge(t *testing.T) {
	g := build(t, []string{"wc.step[0]", "wc.step[1]"}, [2]string{"wc.step[0]", "wc.step[1]"})

	deps, err := g.Dependencies("wc.step[1]")
	require.NoError(t, err)
	assert.Equal(t, []string{"wc.step[0]"}, deps)
	dependents, err := g.Dependents("wc.step[0]")
	require.NoError(t, err)
	assert.Equal(t, []string{"wc.step[1]"}, dependents)

	testCases := []struct {
		name     string
		from, to string
		wantErr  string
	}{
		{name: "unknown source", from: "wc.step[9]", to: "wc.step[0]", wantErr: "source node not found: wc.step[9]"},
		{name: "unknown destination", from: "wc.step[0]", to: "wc.step[9]", wantErr: "destination node not found: wc.step[9]"},
		{name: "self reference", from: "wc.step[0]", to: "wc.step[0]", wantErr: "self-referential edge"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorContains(t, g.AddEdge(tc.from, tc.to), tc.wantErr)
		})
	}

	_, err = g.Dependencies("wc.step[9]")
	assert.ErrorContains(t, err, "node not found")
}

func TestDetectCycles(t *testing.T) {
	testCases := []struct {
		name    string
		ids     []string
		edges   [][2]string
		wantErr bool
	}{
		{name: "empty graph"},
		{name: "no edges", ids: []string{"a", "b", "c"}},
		{
			name:  "diamond with transitive edge",
			ids:   []string{"a", "b", "c", "d"},
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}, {"c", "d"}},
		},
		{
			name:    "direct cycle",
			ids:     []string{"a", "b"},
			edges:   [][2]string{{"a", "b"}, {"b", "a"}},
			wantErr: true,
		},
		{
			name:    "long cycle",
			ids:     []string{"a", "b", "c", "d"},
			edges:   [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"}},
			wantErr: true,
		},
		{
			name:    "cycle in a disjoint component",
			ids:     []string{"a", "b", "x", "y", "z"},
			edges:   [][2]string{{"a", "b"}, {"x", "y"}, {"y", "z"}, {"z", "y"}},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := build(t, tc.ids, tc.edges...)
			err := g.DetectCycles()
			_, sortErr := g.TopologicalSort()
			if tc.wantErr {
				assert.ErrorContains(t, err, "cycle detected")
				assert.ErrorContains(t, sortErr, "cycle detected")
				return
			}
			assert.NoError(t, err)
			assert.NoError(t, sortErr)
		})
	}
}

func TestTopologicalSort(t *testing.T) {
	g := build(t, []string{"sink", "join", "left", "right"},
		[2]string{"left", "join"}, [2]string{"right", "join"}, [2]string{"join", "sink"})

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "right", "join", "sink"}, order)

	deps, err := g.Dependencies("join")
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "right"}, deps)
}

func TestTopologicalSortKeepsInsertionOrderAmongReadyNodes(t *testing.T) {
	g := build(t, []string{"wc.step[2]", "wc.step[0]", "wc.step[1]"})
	for range 3 {
		order, err := g.TopologicalSort()
		require.NoError(t, err)
		assert.Equal(t, []string{"wc.step[2]", "wc.step[0]", "wc.step[1]"}, order)
	}
}

package expression

import (
	"testing"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	v := func(name string) *ElementExpression { return Element(name, RoleNone, Any()) }

	testCases := []struct {
		name    string
		graph   *Graph
		wantErr string
	}{
		{name: "single vertex", graph: New(v("a"))},
		{name: "chain", graph: New(v("a"), v("b"), v("c")).Arc(0, 1, nil).Arc(1, 2, Path())},
		{name: "empty", graph: New(), wantErr: "empty"},
		{name: "disconnected", graph: New(v("a"), v("b")), wantErr: "not connected"},
		{name: "cycle", graph: New(v("a"), v("b")).Arc(0, 1, nil).Arc(1, 0, nil), wantErr: "cycle"},
		{name: "dangling arc", graph: New(v("a")).Arc(0, 3, nil), wantErr: "missing vertex"},
		{name: "self loop", graph: New(v("a")).Arc(0, 0, nil), wantErr: "self loop"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.graph.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestOrderIsBreadthFirst(t *testing.T) {
	g := New(
		Element("a", RoleNone, Any()),
		Element("b", RoleNone, Any()),
		Element("c", RoleNone, Any()),
		Element("d", RoleNone, Any()),
	).Arc(3, 0, nil).Arc(0, 1, nil).Arc(1, 2, nil)

	assert.Equal(t, []int{0, 3, 1, 2}, g.Order())
}

func TestElementExpressionSkipsSentinels(t *testing.T) {
	g := element.NewGraph()
	x := Element("x", RoleNone, Any())
	assert.False(t, x.Matches(g, element.Head))
	assert.True(t, Extent(element.Tail, RoleNone).Matches(g, element.Tail))
	assert.False(t, Extent(element.Tail, RoleNone).Matches(g, element.Head))
}

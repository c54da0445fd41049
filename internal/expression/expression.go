// Package expression describes patterns over element graphs: element
// predicates tagged with capture roles, joined by direct or path arcs.
package expression

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/gridflow/internal/element"
)

// Role tags what a rule does with a matched element.
type Role int

const (
	RoleNone Role = iota
	RolePrimary
	RoleSecondary
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return "none"
	}
}

// Predicate tests a candidate element within the graph being matched.
type Predicate func(g *element.Graph, e element.Element) bool

// ElementExpression is one pattern vertex.
type ElementExpression struct {
	Name string
	Role Role
	// Extents lets the expression bind the head and tail sentinels.
	Extents bool
	preds   []Predicate
}

// Element returns a pattern vertex that matches when every predicate holds.
func Element(name string, role Role, preds ...Predicate) *ElementExpression {
	return &ElementExpression{Name: name, Role: role, preds: preds}
}

// Extent returns a pattern vertex binding the head or the tail sentinel.
func Extent(ext *element.Extent, role Role) *ElementExpression {
	return &ElementExpression{
		Name:    ext.Name(),
		Role:    role,
		Extents: true,
		preds: []Predicate{func(_ *element.Graph, e element.Element) bool {
			return e == ext
		}},
	}
}

// Matches reports whether e satisfies the expression.
func (x *ElementExpression) Matches(g *element.Graph, e element.Element) bool {
	if element.IsExtent(e) && !x.Extents {
		return false
	}
	for _, p := range x.preds {
		if !p(g, e) {
			return false
		}
	}
	return true
}

func (x *ElementExpression) String() string {
	if x.Role == RoleNone {
		return x.Name
	}
	return fmt.Sprintf("%s<%s>", x.Name, x.Role)
}

// ArcKind distinguishes single-edge arcs from any-number-of-hops arcs.
type ArcKind int

const (
	ArcDirect ArcKind = iota
	ArcPath
)

// ScopeExpression constrains the edges an arc binds to.
type ScopeExpression struct {
	Kind ArcKind
	// MinEdges is the number of matching scopes a direct arc requires.
	MinEdges int
	// Match filters scopes of a direct arc; nil accepts every scope.
	Match func(*element.Scope) bool
}

// Direct returns an arc satisfied by at least one scope between the endpoints.
func Direct() *ScopeExpression {
	return &ScopeExpression{Kind: ArcDirect, MinEdges: 1}
}

// DirectN returns an arc satisfied by at least n matching scopes.
func DirectN(n int, match func(*element.Scope) bool) *ScopeExpression {
	return &ScopeExpression{Kind: ArcDirect, MinEdges: n, Match: match}
}

// Path returns an arc satisfied by a path of one or more edges.
func Path() *ScopeExpression {
	return &ScopeExpression{Kind: ArcPath}
}

// Satisfied reports whether the arc holds between from and to in g.
func (s *ScopeExpression) Satisfied(g *element.Graph, from, to element.Element) bool {
	if s.Kind == ArcPath {
		return g.Reachable(from, to)
	}
	min := s.MinEdges
	if min <= 0 {
		min = 1
	}
	n := 0
	for _, ed := range g.Outgoing(from) {
		if ed.To != to {
			continue
		}
		if s.Match == nil || s.Match(ed.Scope) {
			n++
		}
	}
	return n >= min
}

// Arc links two pattern vertices by index.
type Arc struct {
	From, To int
	Scope    *ScopeExpression
}

// Graph is a pattern: vertices plus arcs between them.
type Graph struct {
	Vertices []*ElementExpression
	Arcs     []Arc
}

// New returns a pattern over the given vertices, arcs added with Arc.
func New(vertices ...*ElementExpression) *Graph {
	return &Graph{Vertices: vertices}
}

// Arc adds an arc and returns the graph for chaining.
func (g *Graph) Arc(from, to int, scope *ScopeExpression) *Graph {
	if scope == nil {
		scope = Direct()
	}
	g.Arcs = append(g.Arcs, Arc{From: from, To: to, Scope: scope})
	return g
}

// Validate rejects patterns a matcher cannot search: empty, with dangling
// arcs, disconnected or cyclic.
func (g *Graph) Validate() error {
	n := len(g.Vertices)
	if n == 0 {
		return errors.New("expression graph is empty")
	}
	for i, v := range g.Vertices {
		if v == nil {
			return fmt.Errorf("expression vertex %d is nil", i)
		}
	}
	for _, a := range g.Arcs {
		if a.From < 0 || a.From >= n || a.To < 0 || a.To >= n {
			return fmt.Errorf("arc %d->%d references a missing vertex", a.From, a.To)
		}
		if a.From == a.To {
			return fmt.Errorf("arc %d->%d is a self loop", a.From, a.To)
		}
	}
	if len(g.Order()) != n {
		return errors.New("expression graph is not connected")
	}
	if g.cyclic() {
		return errors.New("expression graph contains a cycle")
	}
	return nil
}

// Order lists vertex indices breadth-first from vertex 0, following arcs in
// both directions. Vertices unreachable from 0 are omitted.
func (g *Graph) Order() []int {
	if len(g.Vertices) == 0 {
		return nil
	}
	seen := make([]bool, len(g.Vertices))
	order := []int{0}
	seen[0] = true
	for i := 0; i < len(order); i++ {
		v := order[i]
		for _, a := range g.Arcs {
			var next int
			switch v {
			case a.From:
				next = a.To
			case a.To:
				next = a.From
			default:
				continue
			}
			if next >= 0 && next < len(seen) && !seen[next] {
				seen[next] = true
				order = append(order, next)
			}
		}
	}
	return order
}

func (g *Graph) cyclic() bool {
	indegree := make([]int, len(g.Vertices))
	for _, a := range g.Arcs {
		indegree[a.To]++
	}
	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	visited := 0
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		visited++
		for _, a := range g.Arcs {
			if a.From == v {
				indegree[a.To]--
				if indegree[a.To] == 0 {
					ready = append(ready, a.To)
				}
			}
		}
	}
	return visited != len(g.Vertices)
}

// Indices returns the vertices carrying role, in vertex order.
func (g *Graph) Indices(role Role) []int {
	var out []int
	for i, v := range g.Vertices {
		if v.Role == role {
			out = append(out, i)
		}
	}
	return out
}

func (g *Graph) String() string {
	parts := make([]string, 0, len(g.Arcs)+1)
	if len(g.Arcs) == 0 {
		for _, v := range g.Vertices {
			parts = append(parts, v.String())
		}
		return strings.Join(parts, ", ")
	}
	for _, a := range g.Arcs {
		sep := "->"
		if a.Scope.Kind == ArcPath {
			sep = "~>"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", g.Vertices[a.From], sep, g.Vertices[a.To]))
	}
	return strings.Join(parts, ", ")
}

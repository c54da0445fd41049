// Package matcher finds occurrences of an expression graph inside an element
// graph.
package matcher

import (
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/expression"
)

// Mode selects how many matches Find returns.
type Mode int

const (
	// FirstMatch stops at the first occurrence.
	FirstMatch Mode = iota
	// AllMatches returns every occurrence.
	AllMatches
	// AllMatchesOnPrimary returns every occurrence sharing the primary
	// bindings of the first one.
	AllMatchesOnPrimary
)

func (m Mode) String() string {
	switch m {
	case FirstMatch:
		return "first"
	case AllMatches:
		return "all"
	default:
		return "all-on-primary"
	}
}

// Match binds every pattern vertex to a distinct element.
type Match struct {
	Pattern *expression.Graph
	// Bindings is indexed by pattern vertex.
	Bindings []element.Element
}

// Captured returns the elements bound to vertices with the given role, in
// pattern vertex order.
func (m *Match) Captured(role expression.Role) []element.Element {
	var out []element.Element
	for _, i := range m.Pattern.Indices(role) {
		out = append(out, m.Bindings[i])
	}
	return out
}

// Elements returns every bound element.
func (m *Match) Elements() []element.Element {
	return append([]element.Element(nil), m.Bindings...)
}

// Subgraph returns the matched elements and the edges between them.
func (m *Match) Subgraph(g *element.Graph) *element.Graph {
	return g.InducedSubgraph(m.Bindings)
}

// Find searches g for pattern. Candidates are tried in vertex insertion order
// and pattern vertices are bound breadth-first from vertex 0, so identical
// inputs always produce identical match lists. The pattern is assumed valid.
func Find(pattern *expression.Graph, g *element.Graph, mode Mode) []*Match {
	s := &search{
		pattern:    pattern,
		graph:      g,
		order:      pattern.Order(),
		candidates: g.Vertices(),
		bindings:   make([]element.Element, len(pattern.Vertices)),
		used:       make(map[element.Element]bool),
		fixed:      make(map[int]element.Element),
		limit:      -1,
	}

	switch mode {
	case FirstMatch:
		s.limit = 1
		s.run()
	case AllMatches:
		s.run()
	case AllMatchesOnPrimary:
		s.limit = 1
		s.run()
		if len(s.matches) == 0 {
			break
		}
		first := s.matches[0]
		for _, i := range pattern.Indices(expression.RolePrimary) {
			s.fixed[i] = first.Bindings[i]
		}
		s.matches = nil
		s.limit = -1
		s.run()
	}
	if s.matches == nil {
		return []*Match{}
	}
	return s.matches
}

type search struct {
	pattern    *expression.Graph
	graph      *element.Graph
	order      []int
	candidates []element.Element

	bindings []element.Element
	used     map[element.Element]bool
	fixed    map[int]element.Element

	limit   int
	matches []*Match
}

func (s *search) run() {
	s.bind(0)
}

func (s *search) done() bool {
	return s.limit >= 0 && len(s.matches) >= s.limit
}

// bind assigns the pattern vertex at position depth of the search order and
// recurses; it returns once the match limit is reached.
func (s *search) bind(depth int) {
	if s.done() {
		return
	}
	if depth == len(s.order) {
		s.matches = append(s.matches, &Match{
			Pattern:  s.pattern,
			Bindings: append([]element.Element(nil), s.bindings...),
		})
		return
	}

	v := s.order[depth]
	expr := s.pattern.Vertices[v]
	for _, c := range s.candidates {
		if s.used[c] {
			continue
		}
		if f, ok := s.fixed[v]; ok && f != c {
			continue
		}
		if !expr.Matches(s.graph, c) || !s.arcsHold(v, c) {
			continue
		}
		s.bindings[v] = c
		s.used[c] = true
		s.bind(depth + 1)
		s.used[c] = false
		s.bindings[v] = nil
		if s.done() {
			return
		}
	}
}

// arcsHold checks every arc between v and an already bound vertex.
func (s *search) arcsHold(v int, c element.Element) bool {
	for _, a := range s.pattern.Arcs {
		switch {
		case a.From == v && s.bindings[a.To] != nil:
			if !a.Scope.Satisfied(s.graph, c, s.bindings[a.To]) {
				return false
			}
		case a.To == v && s.bindings[a.From] != nil:
			if !a.Scope.Satisfied(s.graph, s.bindings[a.From], c) {
				return false
			}
		}
	}
	return true
}

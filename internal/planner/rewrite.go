package planner

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/expression"
	"github.com/specialistvlad/gridflow/internal/matcher"
)

// contract removes the secondary elements of every match sharing the first
// match's primaries. It reports false when the rule no longer matches.
func (e *Engine) contract(rule *Rule, g *element.Graph) (*element.Graph, bool, error) {
	matches := matcher.Find(rule.expr, g, matcher.AllMatchesOnPrimary)
	if len(matches) == 0 {
		return g, false, nil
	}

	var removed []element.Element
	seen := make(map[element.Element]bool)
	for _, m := range matches {
		for _, s := range m.Captured(expression.RoleSecondary) {
			if !seen[s] {
				seen[s] = true
				removed = append(removed, s)
			}
		}
	}
	if len(removed) == 0 {
		return nil, false, errors.New("contraction pattern captures no secondary element")
	}

	next := g.Copy()
	if rule.factory == "" {
		for _, s := range removed {
			bridge(next, s)
		}
	} else {
		factory, _ := e.registry.Factory(rule.factory)
		if err := replace(next, removed, factory(removed[0].Name())); err != nil {
			return nil, false, err
		}
	}
	next.Normalize()
	return next, true, nil
}

// bridge removes s and connects each of its predecessors to each of its
// successors. The downstream scope survives so ordinals into splices hold.
func bridge(g *element.Graph, s element.Element) {
	in := g.InnerIncoming(s)
	out := g.InnerOutgoing(s)
	g.RemoveVertex(s)
	for _, o := range out {
		for i, ed := range in {
			scope := o.Scope
			if i > 0 {
				c := *o.Scope
				scope = &c
			}
			g.MustAddEdge(ed.From, o.To, scope)
		}
	}
}

// replace swaps the group of removed elements for one placeholder that
// inherits every scope crossing the group boundary.
func replace(g *element.Graph, removed []element.Element, placeholder element.Element) error {
	if placeholder == nil {
		return errors.New("factory returned no element")
	}
	group := make(map[element.Element]bool, len(removed))
	for _, s := range removed {
		group[s] = true
	}

	var in, out []element.Edge
	for _, s := range removed {
		for _, ed := range g.InnerIncoming(s) {
			if !group[ed.From] {
				in = append(in, ed)
			}
		}
		for _, ed := range g.InnerOutgoing(s) {
			if !group[ed.To] {
				out = append(out, ed)
			}
		}
	}
	for _, s := range removed {
		g.RemoveVertex(s)
	}
	if !g.AddVertex(placeholder) {
		return fmt.Errorf("placeholder %s already in graph", placeholder)
	}
	for _, ed := range in {
		g.MustAddEdge(ed.From, placeholder, ed.Scope)
	}
	for _, ed := range out {
		g.MustAddEdge(placeholder, ed.To, ed.Scope)
	}
	return nil
}

// insert places one factory element after the first match's primary. The new
// element takes over every edge from the primary into the targets: the
// secondaries, or all inner successors when the pattern has none.
func (e *Engine) insert(rule *Rule, g *element.Graph) (*element.Graph, bool, error) {
	matches := matcher.Find(rule.expr, g, matcher.FirstMatch)
	if len(matches) == 0 {
		return g, false, nil
	}
	m := matches[0]
	primaries := m.Captured(expression.RolePrimary)
	if len(primaries) != 1 {
		return nil, false, fmt.Errorf("insertion needs exactly one primary element, got %d", len(primaries))
	}
	p := primaries[0]

	targets := make(map[element.Element]bool)
	secondaries := m.Captured(expression.RoleSecondary)
	if len(secondaries) == 0 {
		secondaries = g.Successors(p)
	}
	for _, s := range secondaries {
		if !element.IsExtent(s) {
			targets[s] = true
		}
	}

	var moved []element.Edge
	for _, ed := range g.InnerOutgoing(p) {
		if targets[ed.To] {
			moved = append(moved, ed)
		}
	}
	if len(moved) == 0 {
		return nil, false, fmt.Errorf("no edge from %s into the insertion targets", p)
	}

	factory, _ := e.registry.Factory(rule.factory)
	inserted := factory(p.Name())
	if inserted == nil {
		return nil, false, errors.New("factory returned no element")
	}

	next := g.Copy()
	if !next.AddVertex(inserted) {
		return nil, false, fmt.Errorf("inserted element %s already in graph", inserted)
	}
	next.MustAddEdge(p, inserted, element.NewScope(p.Name(), 0))
	for _, ed := range moved {
		next.RemoveEdge(ed)
		next.MustAddEdge(inserted, ed.To, ed.Scope)
	}
	next.Normalize()
	return next, true, nil
}

// annotate marks the primaries of every match. It reports whether any
// element gained the annotation.
func annotate(rule *Rule, g *element.Graph) (*element.Graph, bool) {
	var marked []element.Element
	for _, m := range matcher.Find(rule.expr, g, matcher.AllMatches) {
		for _, p := range m.Captured(expression.RolePrimary) {
			if !g.HasAnnotation(p, rule.annotation) {
				marked = append(marked, p)
			}
		}
	}
	if len(marked) == 0 {
		return g, false
	}
	next := g.Copy()
	for _, p := range marked {
		next.Annotate(p, rule.annotation)
	}
	return next, true
}

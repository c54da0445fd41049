package planner

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/gridflow/internal/element"
)

// Result is one node of the tree of graphs a phase produced. The root holds
// the phase input and has one child per rule. Below a rule node the rewrites
// form a chain: every rewrite holds the graph after rewriting its parent's.
type Result struct {
	// Path lists the rewrite ordinals leading from the root to this node.
	Path     []int
	Phase    Phase
	Rule     string
	Name     string
	Graph    *element.Graph
	Parent   *Result
	Children []*Result
}

func newRoot(phase Phase, name string, g *element.Graph) *Result {
	return &Result{Phase: phase, Name: name, Graph: g}
}

func (r *Result) child(rule, name string, g *element.Graph) *Result {
	c := &Result{
		Path:   append(append([]int(nil), r.Path...), len(r.Children)),
		Phase:  r.Phase,
		Rule:   rule,
		Name:   name,
		Graph:  g,
		Parent: r,
	}
	r.Children = append(r.Children, c)
	return c
}

// Ordinal returns the position of r among its siblings, or -1 for a root.
func (r *Result) Ordinal() int {
	if len(r.Path) == 0 {
		return -1
	}
	return r.Path[len(r.Path)-1]
}

// Final follows the last child down to the leaf, which holds the phase output.
func (r *Result) Final() *Result {
	for len(r.Children) > 0 {
		r = r.Children[len(r.Children)-1]
	}
	return r
}

// Walk visits r and its descendants depth first.
func (r *Result) Walk(fn func(*Result)) {
	fn(r)
	for _, c := range r.Children {
		c.Walk(fn)
	}
}

// Rewrites returns the rewrite chain below a rule node, oldest first.
func (r *Result) Rewrites() []*Result {
	var out []*Result
	for c := r; len(c.Children) > 0; {
		c = c.Children[len(c.Children)-1]
		out = append(out, c)
	}
	return out
}

// Len counts the rewrites recorded in the tree of r. Rule nodes sit at depth
// one; everything below them is a rewrite.
func (r *Result) Len() int {
	n := 0
	r.Walk(func(c *Result) {
		if len(c.Path) >= 2 {
			n++
		}
	})
	return n
}

func (r *Result) String() string {
	parts := make([]string, len(r.Path))
	for i, p := range r.Path {
		parts[i] = fmt.Sprint(p)
	}
	return fmt.Sprintf("%s[%s] %s", r.Phase, strings.Join(parts, "."), r.Name)
}

package element

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type edge struct {
	from, to int
	scope    *Scope
	alive    bool
}

// Graph is a directed multigraph of elements. Vertices and edges live in
// arenas addressed by stable indices; removal leaves a tombstone so indices
// never shift within a snapshot or its copies.
//
// A Graph handed to another phase must be treated as read-only: rewrites
// call Copy and mutate the copy.
type Graph struct {
	vertices    []Element
	alive       []bool
	index       map[Element]int
	edges       []edge
	out         [][]int
	in          [][]int
	annotations map[Element]Annotation
}

// NewGraph returns a graph holding only the head and tail sentinels.
func NewGraph() *Graph {
	g := &Graph{
		index:       make(map[Element]int),
		annotations: make(map[Element]Annotation),
	}
	g.AddVertex(Head)
	g.AddVertex(Tail)
	return g
}

// Copy returns an independent snapshot sharing the immutable elements and scopes.
func (g *Graph) Copy() *Graph {
	c := &Graph{
		vertices:    append([]Element(nil), g.vertices...),
		alive:       append([]bool(nil), g.alive...),
		index:       make(map[Element]int, len(g.index)),
		edges:       append([]edge(nil), g.edges...),
		out:         make([][]int, len(g.out)),
		in:          make([][]int, len(g.in)),
		annotations: make(map[Element]Annotation, len(g.annotations)),
	}
	for k, v := range g.index {
		c.index[k] = v
	}
	for i := range g.out {
		c.out[i] = append([]int(nil), g.out[i]...)
		c.in[i] = append([]int(nil), g.in[i]...)
	}
	for k, v := range g.annotations {
		c.annotations[k] = v
	}
	return c
}

// AddVertex adds e and reports whether it was new.
func (g *Graph) AddVertex(e Element) bool {
	if idx, ok := g.index[e]; ok {
		if g.alive[idx] {
			return false
		}
		g.alive[idx] = true
		return true
	}
	g.index[e] = len(g.vertices)
	g.vertices = append(g.vertices, e)
	g.alive = append(g.alive, true)
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return true
}

// AddEdge connects from to to with the given scope.
func (g *Graph) AddEdge(from, to Element, scope *Scope) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %s", from)
	}
	fi, ok := g.lookup(from)
	if !ok {
		return fmt.Errorf("source element not found: %s", from)
	}
	ti, ok := g.lookup(to)
	if !ok {
		return fmt.Errorf("destination element not found: %s", to)
	}
	if scope == nil {
		scope = NewScope(from.Name(), 0)
	}
	idx := len(g.edges)
	g.edges = append(g.edges, edge{from: fi, to: ti, scope: scope, alive: true})
	g.out[fi] = append(g.out[fi], idx)
	g.in[ti] = append(g.in[ti], idx)
	return nil
}

// MustAddEdge is AddEdge for graphs built in code where both ends are known to exist.
func (g *Graph) MustAddEdge(from, to Element, scope *Scope) {
	if err := g.AddEdge(from, to, scope); err != nil {
		panic(err)
	}
}

func (g *Graph) lookup(e Element) (int, bool) {
	idx, ok := g.index[e]
	if !ok || !g.alive[idx] {
		return 0, false
	}
	return idx, true
}

// RemoveVertex drops e together with every incident edge.
func (g *Graph) RemoveVertex(e Element) {
	idx, ok := g.lookup(e)
	if !ok {
		return
	}
	for _, ei := range g.out[idx] {
		g.killEdge(ei)
	}
	for _, ei := range g.in[idx] {
		g.killEdge(ei)
	}
	g.alive[idx] = false
	delete(g.annotations, e)
}

// RemoveEdge drops the edge carrying scope between from and to.
func (g *Graph) RemoveEdge(edge Edge) {
	fi, ok := g.lookup(edge.From)
	if !ok {
		return
	}
	for _, ei := range g.out[fi] {
		ed := g.edges[ei]
		if ed.alive && g.vertices[ed.to] == edge.To && ed.scope == edge.Scope {
			g.killEdge(ei)
			return
		}
	}
}

func (g *Graph) killEdge(ei int) {
	if !g.edges[ei].alive {
		return
	}
	g.edges[ei].alive = false
	ed := g.edges[ei]
	g.out[ed.from] = removeInt(g.out[ed.from], ei)
	g.in[ed.to] = removeInt(g.in[ed.to], ei)
}

func removeInt(s []int, v int) []int {
	out := s[:0:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Contains reports whether e is a live vertex.
func (g *Graph) Contains(e Element) bool {
	_, ok := g.lookup(e)
	return ok
}

// Index returns the arena index of e, or -1.
func (g *Graph) Index(e Element) int {
	idx, ok := g.lookup(e)
	if !ok {
		return -1
	}
	return idx
}

// Vertices returns every live vertex, sentinels included, in insertion order.
func (g *Graph) Vertices() []Element {
	out := make([]Element, 0, len(g.vertices))
	for i, v := range g.vertices {
		if g.alive[i] {
			out = append(out, v)
		}
	}
	return out
}

// Elements returns the live vertices without the sentinels.
func (g *Graph) Elements() []Element {
	out := make([]Element, 0, len(g.vertices))
	for i, v := range g.vertices {
		if g.alive[i] && !IsExtent(v) {
			out = append(out, v)
		}
	}
	return out
}

// Edges returns every live edge in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, ed := range g.edges {
		if ed.alive {
			out = append(out, g.toEdge(ed))
		}
	}
	return out
}

func (g *Graph) toEdge(ed edge) Edge {
	return Edge{From: g.vertices[ed.from], To: g.vertices[ed.to], Scope: ed.scope}
}

// Outgoing returns the edges leaving e.
func (g *Graph) Outgoing(e Element) []Edge {
	idx, ok := g.lookup(e)
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(g.out[idx]))
	for _, ei := range g.out[idx] {
		out = append(out, g.toEdge(g.edges[ei]))
	}
	return out
}

// Incoming returns the edges entering e.
func (g *Graph) Incoming(e Element) []Edge {
	idx, ok := g.lookup(e)
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(g.in[idx]))
	for _, ei := range g.in[idx] {
		out = append(out, g.toEdge(g.edges[ei]))
	}
	return out
}

// Successors returns the distinct targets of e's outgoing edges.
func (g *Graph) Successors(e Element) []Element {
	var out []Element
	seen := make(map[Element]bool)
	for _, ed := range g.Outgoing(e) {
		if !seen[ed.To] {
			seen[ed.To] = true
			out = append(out, ed.To)
		}
	}
	return out
}

// Predecessors returns the distinct sources of e's incoming edges.
func (g *Graph) Predecessors(e Element) []Element {
	var out []Element
	seen := make(map[Element]bool)
	for _, ed := range g.Incoming(e) {
		if !seen[ed.From] {
			seen[ed.From] = true
			out = append(out, ed.From)
		}
	}
	return out
}

// InDegree counts the edges entering e, sentinel edges included.
func (g *Graph) InDegree(e Element) int { return len(g.Incoming(e)) }

// OutDegree counts the edges leaving e, sentinel edges included.
func (g *Graph) OutDegree(e Element) int { return len(g.Outgoing(e)) }

// InnerIncoming returns the incoming edges that do not start at the head.
func (g *Graph) InnerIncoming(e Element) []Edge {
	var out []Edge
	for _, ed := range g.Incoming(e) {
		if !IsExtent(ed.From) {
			out = append(out, ed)
		}
	}
	return out
}

// InnerOutgoing returns the outgoing edges that do not end at the tail.
func (g *Graph) InnerOutgoing(e Element) []Edge {
	var out []Edge
	for _, ed := range g.Outgoing(e) {
		if !IsExtent(ed.To) {
			out = append(out, ed)
		}
	}
	return out
}

// Annotate adds a to e's annotations.
func (g *Graph) Annotate(e Element, a Annotation) {
	if g.Contains(e) {
		g.annotations[e] |= a
	}
}

// HasAnnotation reports whether e carries a.
func (g *Graph) HasAnnotation(e Element, a Annotation) bool {
	return g.annotations[e]&a != 0
}

// Annotations returns every annotation of e.
func (g *Graph) Annotations(e Element) Annotation {
	return g.annotations[e]
}

// ErrCycle is returned when a graph is not acyclic.
var ErrCycle = errors.New("element graph contains a cycle")

// TopologicalOrder lists the live vertices so that every edge points forward.
// Ties are broken by arena index, which keeps the order deterministic.
func (g *Graph) TopologicalOrder() ([]Element, error) {
	indegree := make(map[int]int)
	var ready []int
	count := 0
	for i := range g.vertices {
		if !g.alive[i] {
			continue
		}
		count++
		indegree[i] = len(g.in[i])
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]Element, 0, count)
	for len(ready) > 0 {
		sort.Ints(ready)
		v := ready[0]
		ready = ready[1:]
		order = append(order, g.vertices[v])
		for _, ei := range g.out[v] {
			to := g.edges[ei].to
			indegree[to]--
			if indegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(order) != count {
		return nil, ErrCycle
	}
	return order, nil
}

// Reachable reports whether a path of one or more edges leads from a to b.
func (g *Graph) Reachable(a, b Element) bool {
	start, ok := g.lookup(a)
	if !ok {
		return false
	}
	target, ok := g.lookup(b)
	if !ok {
		return false
	}
	seen := make(map[int]bool)
	stack := []int{start}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ei := range g.out[v] {
			to := g.edges[ei].to
			if to == target {
				return true
			}
			if !seen[to] {
				seen[to] = true
				stack = append(stack, to)
			}
		}
	}
	return false
}

// Normalize rebuilds the sentinel edges: every element without inner
// incoming edges hangs off the head and every element without inner
// outgoing edges feeds the tail.
func (g *Graph) Normalize() {
	for _, ext := range []Element{Head, Tail} {
		if !g.Contains(ext) {
			g.AddVertex(ext)
		}
	}
	for _, ed := range g.Outgoing(Head) {
		g.RemoveEdge(ed)
	}
	for _, ed := range g.Incoming(Tail) {
		g.RemoveEdge(ed)
	}
	for _, e := range g.Elements() {
		if len(g.InnerIncoming(e)) == 0 {
			g.MustAddEdge(Head, e, NewScope(e.Name(), 0))
		}
		if len(g.InnerOutgoing(e)) == 0 {
			g.MustAddEdge(e, Tail, NewScope(e.Name(), 0))
		}
	}
}

// Validate checks that the graph is acyclic and that every element is
// reachable from the head and reaches the tail.
func (g *Graph) Validate() error {
	if _, err := g.TopologicalOrder(); err != nil {
		return err
	}
	for _, e := range g.Elements() {
		if !g.Reachable(Head, e) {
			return fmt.Errorf("element %s is not reachable from head", e)
		}
		if !g.Reachable(e, Tail) {
			return fmt.Errorf("element %s does not reach tail", e)
		}
	}
	return nil
}

// Subgraph returns a new graph holding the given elements and the inner
// edges among them, with sentinel edges rebuilt. Annotations are carried over.
func (g *Graph) Subgraph(elements []Element, edges []Edge) *Graph {
	sub := NewGraph()
	members := make(map[Element]bool, len(elements))
	for _, e := range elements {
		members[e] = true
	}
	for _, v := range g.Vertices() {
		if members[v] && !IsExtent(v) {
			sub.AddVertex(v)
			if a := g.annotations[v]; a != 0 {
				sub.annotations[v] = a
			}
		}
	}
	for _, ed := range edges {
		if sub.Contains(ed.From) && sub.Contains(ed.To) {
			sub.MustAddEdge(ed.From, ed.To, ed.Scope)
		}
	}
	sub.Normalize()
	return sub
}

// InducedSubgraph returns the elements plus every inner edge of g between them.
func (g *Graph) InducedSubgraph(elements []Element) *Graph {
	members := make(map[Element]bool, len(elements))
	for _, e := range elements {
		members[e] = true
	}
	var edges []Edge
	for _, ed := range g.Edges() {
		if members[ed.From] && members[ed.To] {
			edges = append(edges, ed)
		}
	}
	return g.Subgraph(elements, edges)
}

func (g *Graph) String() string {
	var sb strings.Builder
	for _, ed := range g.Edges() {
		sb.WriteString(ed.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

package planner

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/dag"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/expression"
	"github.com/specialistvlad/gridflow/internal/matcher"
)

// Boundaries returns the elements the partition rules of phase cut g at: the
// primaries of every match, or every bound element when a pattern declares
// no primary vertex.
func (r *Registry) Boundaries(phase Phase, g *element.Graph) []element.Element {
	var out []element.Element
	seen := make(map[element.Element]bool)
	for _, rule := range r.Rules(phase) {
		if rule.kind != RulePartition {
			continue
		}
		for _, m := range matcher.Find(rule.expr, g, matcher.AllMatches) {
			picked := m.Captured(expression.RolePrimary)
			if len(picked) == 0 {
				picked = m.Elements()
			}
			for _, e := range picked {
				if !seen[e] && !element.IsExtent(e) {
					seen[e] = true
					out = append(out, e)
				}
			}
		}
	}
	return out
}

// half identifies one side of a vertex. Boundary vertices are split in two:
// the sink half joins the upstream partition and the source half joins the
// downstream one.
type half struct {
	v    int
	sink bool
}

type unionFind map[half]half

func (u unionFind) find(h half) half {
	p, ok := u[h]
	if !ok {
		u[h] = h
		return h
	}
	if p == h {
		return h
	}
	root := u.find(p)
	u[h] = root
	return root
}

func (u unionFind) union(a, b half) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u[rb] = ra
	}
}

// SplitAt cuts g at the boundary elements. Every other element lands in
// exactly one partition; a boundary appears as the sink of the partition
// feeding it and the source of every partition it feeds. Partitions are
// returned in topological order.
func SplitAt(g *element.Graph, boundaries []element.Element) ([]*element.Graph, error) {
	isBoundary := make(map[element.Element]bool, len(boundaries))
	for _, b := range boundaries {
		isBoundary[b] = true
	}

	vertices := g.Elements()
	index := make(map[element.Element]int, len(vertices))
	for i, v := range vertices {
		index[v] = i
	}
	side := func(e element.Element, asSink bool) half {
		if isBoundary[e] {
			return half{v: index[e], sink: asSink}
		}
		return half{v: index[e]}
	}

	uf := make(unionFind)
	var edges []element.Edge
	used := make(map[half]bool)
	for _, ed := range g.Edges() {
		if element.IsExtent(ed.From) || element.IsExtent(ed.To) {
			continue
		}
		from, to := side(ed.From, false), side(ed.To, true)
		uf.union(from, to)
		used[from], used[to] = true, true
		edges = append(edges, ed)
	}

	// Lone boundary halves without edges hold nothing and are dropped; a
	// boundary with no inner edges at all keeps its sink half.
	var halves []half
	for i, v := range vertices {
		if !isBoundary[v] {
			halves = append(halves, half{v: i})
			continue
		}
		sink, source := half{v: i, sink: true}, half{v: i}
		if used[sink] || !used[source] {
			halves = append(halves, sink)
		}
		if used[source] {
			halves = append(halves, source)
		}
	}

	// Partitions are numbered by the first vertex they hold.
	ids := make(map[half]string)
	members := make(map[string][]element.Element)
	var order []string
	for _, h := range halves {
		root := uf.find(h)
		id, ok := ids[root]
		if !ok {
			id = fmt.Sprintf("p%d", len(order))
			ids[root] = id
			order = append(order, id)
		}
		members[id] = append(members[id], vertices[h.v])
	}

	deps := dag.New()
	for _, id := range order {
		deps.AddNode(id)
	}
	for _, b := range boundaries {
		i, ok := index[b]
		if !ok {
			continue
		}
		sink, source := half{v: i, sink: true}, half{v: i}
		if !used[sink] || !used[source] {
			continue
		}
		from, to := ids[uf.find(sink)], ids[uf.find(source)]
		if from == to {
			return nil, fmt.Errorf("boundary %s feeds its own partition", b)
		}
		if err := deps.AddEdge(from, to); err != nil {
			return nil, fmt.Errorf("linking partitions at %s: %w", b, err)
		}
	}
	sorted, err := deps.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("ordering partitions: %w", err)
	}

	byPartition := make(map[string][]element.Edge)
	for _, ed := range edges {
		id := ids[uf.find(side(ed.From, false))]
		byPartition[id] = append(byPartition[id], ed)
	}

	out := make([]*element.Graph, 0, len(sorted))
	for _, id := range sorted {
		out = append(out, g.Subgraph(members[id], byPartition[id]))
	}
	return out, nil
}

package dag

import (
	"fmt"
	"sort"
)

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds id to the graph. Adding an existing id does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.order = append(g.order, id)
	g.nodes[id] = &node{id: id, deps: make(map[string]*node), dependents: make(map[string]*node)}
}

// AddEdge records that toID depends on fromID. Both nodes must exist.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, toID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	to.deps[fromID] = from
	from.dependents[toID] = to
	return nil
}

// Dependencies returns the sorted IDs id depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	return g.neighbours(id, func(n *node) map[string]*node { return n.deps })
}

// Dependents returns the sorted IDs depending on id.
func (g *Graph) Dependents(id string) ([]string, error) {
	return g.neighbours(id, func(n *node) map[string]*node { return n.dependents })
}

func (g *Graph) neighbours(id string, pick func(*node) map[string]*node) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	ids := make([]string, 0, len(pick(n)))
	for other := range pick(n) {
		ids = append(ids, other)
	}
	sort.Strings(ids)
	return ids, nil
}

// DetectCycles returns an error when some nodes can never become ready.
func (g *Graph) DetectCycles() error {
	_, err := g.TopologicalSort()
	return err
}

// Nodes returns every node ID in insertion order.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]string(nil), g.order...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// TopologicalSort returns every node ID with dependencies first. Among ready
// nodes the one inserted first wins, so the order is stable across runs.
func (g *Graph) TopologicalSort() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	rank := make(map[string]int, len(g.order))
	pending := make(map[string]int, len(g.order))
	var ready []string
	for i, id := range g.order {
		rank[id] = i
		pending[id] = len(g.nodes[id].deps)
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return rank[ready[i]] < rank[ready[j]] })
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for depID := range g.nodes[id].dependents {
			pending[depID]--
			if pending[depID] == 0 {
				ready = append(ready, depID)
			}
		}
	}

	if len(out) != len(g.order) {
		var stuck []string
		for _, id := range g.order {
			if pending[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("cycle detected among %d nodes: %v", len(stuck), stuck)
	}
	return out, nil
}

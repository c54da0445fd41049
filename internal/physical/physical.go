// Package physical holds the planner output: steps scheduled by the
// substrate, the nodes executed within a step and the pipelines streamed
// within a node.
package physical

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/dag"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/nodeid"
)

// Pipeline is a streamed portion of a node between gates.
type Pipeline struct {
	ID      *nodeid.Address
	Ordinal int
	Graph   *element.Graph
}

// Node is an execution unit within a step.
type Node struct {
	ID        *nodeid.Address
	Ordinal   int
	Graph     *element.Graph
	Pipelines []*Pipeline
	// Traps maps branch names to failure connectors.
	Traps map[string]*element.Tap
}

// Sources returns the connectors without inner incoming edges, in graph order.
func (n *Node) Sources() []element.Element {
	return connectors(n.Graph, true)
}

// Sinks returns the connectors without inner outgoing edges, in graph order.
func (n *Node) Sinks() []element.Element {
	return connectors(n.Graph, false)
}

func connectors(g *element.Graph, sources bool) []element.Element {
	var out []element.Element
	for _, e := range g.Elements() {
		if !element.IsConnector(e) {
			continue
		}
		if sources && len(g.InnerIncoming(e)) == 0 {
			out = append(out, e)
		}
		if !sources && len(g.InnerOutgoing(e)) == 0 {
			out = append(out, e)
		}
	}
	return out
}

func (n *Node) String() string {
	return n.ID.String()
}

// Step is the unit the substrate schedules.
type Step struct {
	ID      *nodeid.Address
	Ordinal int
	Graph   *element.Graph
	Nodes   []*Node
	// NodeDeps orders nodes: an edge a -> b means b reads what a writes.
	NodeDeps *dag.Graph
}

// Node returns the node with the given address string.
func (s *Step) Node(id string) (*Node, bool) {
	for _, n := range s.Nodes {
		if n.ID.String() == id {
			return n, true
		}
	}
	return nil, false
}

func (s *Step) String() string {
	return s.ID.String()
}

// StepGraph is the ordered list of steps plus their dependencies.
type StepGraph struct {
	Flow  *nodeid.Address
	Steps []*Step
	deps  *dag.Graph
}

// NewStepGraph returns an empty step graph for flow.
func NewStepGraph(flow string) *StepGraph {
	return &StepGraph{Flow: nodeid.Flow(flow), deps: dag.New()}
}

// AddStep appends s.
func (sg *StepGraph) AddStep(s *Step) {
	sg.Steps = append(sg.Steps, s)
	sg.deps.AddNode(s.ID.String())
}

// AddDependency records that to reads what from writes.
func (sg *StepGraph) AddDependency(from, to *Step) error {
	return sg.deps.AddEdge(from.ID.String(), to.ID.String())
}

// Deps exposes the dependency graph keyed by step address.
func (sg *StepGraph) Deps() *dag.Graph {
	return sg.deps
}

// Step returns the step with the given address string.
func (sg *StepGraph) Step(id string) (*Step, bool) {
	for _, s := range sg.Steps {
		if s.ID.String() == id {
			return s, true
		}
	}
	return nil, false
}

// Predecessors returns the steps s depends on.
func (sg *StepGraph) Predecessors(s *Step) ([]*Step, error) {
	ids, err := sg.deps.Dependencies(s.ID.String())
	if err != nil {
		return nil, err
	}
	out := make([]*Step, 0, len(ids))
	for _, id := range ids {
		dep, ok := sg.Step(id)
		if !ok {
			return nil, fmt.Errorf("unknown step %s", id)
		}
		out = append(out, dep)
	}
	return out, nil
}

// Nodes returns every node of every step, in step order.
func (sg *StepGraph) Nodes() []*Node {
	var out []*Node
	for _, s := range sg.Steps {
		out = append(out, s.Nodes...)
	}
	return out
}

// Pipelines returns every pipeline, in step then node order.
func (sg *StepGraph) Pipelines() []*Pipeline {
	var out []*Pipeline
	for _, n := range sg.Nodes() {
		out = append(out, n.Pipelines...)
	}
	return out
}

// Link derives the dependencies among ordered partitions: a partition that
// holds a shared connector as a source depends on the partition holding it
// as a sink. It returns pairs of partition indices.
func Link(graphs []*element.Graph) [][2]int {
	writers := make(map[element.Element]int)
	for i, g := range graphs {
		for _, e := range g.Elements() {
			if len(g.InnerIncoming(e)) > 0 && len(g.InnerOutgoing(e)) == 0 {
				writers[e] = i
			}
		}
	}

	var links [][2]int
	seen := make(map[[2]int]bool)
	for i, g := range graphs {
		for _, e := range g.Elements() {
			if len(g.InnerIncoming(e)) != 0 {
				continue
			}
			w, ok := writers[e]
			if !ok || w == i {
				continue
			}
			pair := [2]int{w, i}
			if !seen[pair] {
				seen[pair] = true
				links = append(links, pair)
			}
		}
	}
	return links
}

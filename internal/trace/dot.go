package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/physical"
)

// WriteGraph renders g in the DOT language.
func WriteGraph(w io.Writer, name string, g *element.Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(name))
	bw.WriteString("  rankdir=TB;\n")
	writeElements(bw, "  ", "", g)
	bw.WriteString("}\n")
	return bw.Flush()
}

func writeElements(bw *bufio.Writer, indent, prefix string, g *element.Graph) {
	id := func(e element.Element) string {
		return strconv.Quote(fmt.Sprintf("%s%d", prefix, g.Index(e)))
	}
	for _, v := range g.Vertices() {
		label := v.String()
		if a := annotations(g, v); a != "" {
			label += "\n" + a
		}
		shape := "box"
		switch {
		case element.IsExtent(v):
			shape = "point"
		case element.IsConnector(v):
			shape = "cylinder"
		case element.IsSplice(v):
			shape = "diamond"
		}
		fmt.Fprintf(bw, "%s%s [label=%s, shape=%s];\n", indent, id(v), strconv.Quote(label), shape)
	}
	for _, ed := range g.Edges() {
		fmt.Fprintf(bw, "%s%s -> %s [label=%s];\n", indent, id(ed.From), id(ed.To), strconv.Quote(ed.Scope.String()))
	}
}

func annotations(g *element.Graph, e element.Element) string {
	var out []string
	for _, a := range []element.Annotation{element.AnnotationBlocking, element.AnnotationAccumulated, element.AnnotationStreamed} {
		if g.HasAnnotation(e, a) {
			out = append(out, a.String())
		}
	}
	return strings.Join(out, ",")
}

// WriteSteps renders a step graph with one cluster per node and one edge per
// step dependency.
func WriteSteps(w io.Writer, sg *physical.StepGraph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(sg.Flow.String()))
	bw.WriteString("  compound=true;\n")
	for i, step := range sg.Steps {
		fmt.Fprintf(bw, "  subgraph %s {\n", strconv.Quote(fmt.Sprintf("cluster_s%d", i)))
		fmt.Fprintf(bw, "    label=%s;\n", strconv.Quote(step.ID.String()))
		for j, node := range step.Nodes {
			fmt.Fprintf(bw, "    subgraph %s {\n", strconv.Quote(fmt.Sprintf("cluster_s%dn%d", i, j)))
			fmt.Fprintf(bw, "      label=%s;\n", strconv.Quote(fmt.Sprintf("node[%d] pipelines=%d", j, len(node.Pipelines))))
			writeElements(bw, "      ", fmt.Sprintf("s%dn%d_", i, j), node.Graph)
			bw.WriteString("    }\n")
		}
		fmt.Fprintf(bw, "    %s [shape=plaintext, label=%s];\n", strconv.Quote(fmt.Sprintf("s%d", i)), strconv.Quote(step.ID.String()))
		bw.WriteString("  }\n")
	}
	for i, step := range sg.Steps {
		deps, err := sg.Predecessors(step)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			fmt.Fprintf(bw, "  %s -> %s;\n", strconv.Quote(fmt.Sprintf("s%d", dep.Ordinal)), strconv.Quote(fmt.Sprintf("s%d", i)))
		}
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

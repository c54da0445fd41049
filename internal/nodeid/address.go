package nodeid

import (
	"fmt"
	"strings"
)

// Flow returns the root address of a flow. Characters that cannot appear in
// a segment name are replaced by underscores.
func Flow(name string) *Address {
	return &Address{Path: []Segment{NewSegment(Sanitize(name))}}
}

// Sanitize maps name onto the segment alphabet.
func Sanitize(name string) string {
	if name == "" {
		return "flow"
	}
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if !isValidSegmentName(out) {
		return "_"
	}
	return out
}

// Child returns a new address extending a with an indexed segment.
func (a *Address) Child(name string, index int) *Address {
	path := make([]Segment, len(a.Path), len(a.Path)+1)
	copy(path, a.Path)
	return &Address{Path: append(path, NewIndexedSegment(name, index))}
}

// Step returns the address of step i of a flow.
func (a *Address) Step(i int) *Address { return a.Child(stepSegment, i) }

// Node returns the address of node i of a step.
func (a *Address) Node(i int) *Address { return a.Child(nodeSegment, i) }

// Pipeline returns the address of pipeline i of a node.
func (a *Address) Pipeline(i int) *Address { return a.Child(pipelineSegment, i) }

// Parent returns the address without its last segment, or nil for a root.
func (a *Address) Parent() *Address {
	if a == nil || len(a.Path) <= 1 {
		return nil
	}
	return &Address{Path: append([]Segment(nil), a.Path[:len(a.Path)-1]...)}
}

// Last returns the final segment.
func (a *Address) Last() Segment {
	if a == nil || len(a.Path) == 0 {
		return NewSegment("")
	}
	return a.Path[len(a.Path)-1]
}

// String renders the canonical path form.
func (a *Address) String() string {
	if a == nil {
		return ""
	}

	var sb strings.Builder
	for i, segment := range a.Path {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.HasIndex() {
			fmt.Fprintf(&sb, "[%d]", segment.Index)
		}
	}
	return sb.String()
}

// Equal compares two addresses segment by segment.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	if len(a.Path) != len(other.Path) {
		return false
	}
	for i := range a.Path {
		if a.Path[i] != other.Path[i] {
			return false
		}
	}
	return true
}

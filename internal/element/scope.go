package element

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Scope describes an edge: the branch name, the ordinal a multi-input
// element uses to tell branches apart, and the resolved fields. Scopes are
// immutable once attached to a graph.
type Scope struct {
	Name    string
	Ordinal int
	// Fields describes the records flowing on the edge.
	Fields tuple.Fields
	// Grouped is set on edges entering an every; Key and Values then describe
	// the group handed to the reducer.
	Grouped bool
	Key     tuple.Fields
	Values  tuple.Fields
}

// NewScope returns an unresolved scope.
func NewScope(name string, ordinal int) *Scope {
	return &Scope{Name: name, Ordinal: ordinal}
}

func (s *Scope) clone() *Scope {
	c := *s
	return &c
}

func (s *Scope) String() string {
	if s.Grouped {
		return fmt.Sprintf("%s#%d key=%s values=%s", s.Name, s.Ordinal, s.Key, s.Values)
	}
	if s.Fields != nil {
		return fmt.Sprintf("%s#%d %s", s.Name, s.Ordinal, s.Fields)
	}
	return fmt.Sprintf("%s#%d", s.Name, s.Ordinal)
}

// Edge is one scope between two elements.
type Edge struct {
	From  Element
	To    Element
	Scope *Scope
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s {%s}", e.From, e.To, e.Scope)
}

// Annotation marks an element inside one graph snapshot.
type Annotation uint8

const (
	// AnnotationBlocking marks a hash join that must materialize every branch.
	AnnotationBlocking Annotation = 1 << iota
	// AnnotationAccumulated marks a source drained before streamed sources.
	AnnotationAccumulated
	// AnnotationStreamed marks a source feeding the streamed side of a join.
	AnnotationStreamed
)

func (a Annotation) String() string {
	switch a {
	case AnnotationBlocking:
		return "blocking"
	case AnnotationAccumulated:
		return "accumulated"
	case AnnotationStreamed:
		return "streamed"
	default:
		return fmt.Sprintf("annotation(%d)", uint8(a))
	}
}

package planner

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/expression"
)

// RuleKind is the kind of work a rule does with its matches.
type RuleKind int

const (
	RuleAssertion RuleKind = iota
	RuleTransform
	RulePartition
)

func (k RuleKind) String() string {
	switch k {
	case RuleAssertion:
		return "assertion"
	case RuleTransform:
		return "transform"
	case RulePartition:
		return "partition"
	default:
		return fmt.Sprintf("rule-kind(%d)", int(k))
	}
}

// Rewrite is the graph change a transform applies to a match.
type Rewrite int

const (
	// RewriteContract removes the secondary elements, bridging their scopes
	// or replacing them with one factory element.
	RewriteContract Rewrite = iota
	// RewriteInsert splices a factory element after the primary element.
	RewriteInsert
	// RewriteAnnotate marks the primary elements.
	RewriteAnnotate
)

func (r Rewrite) String() string {
	switch r {
	case RewriteContract:
		return "contract"
	case RewriteInsert:
		return "insert"
	default:
		return "annotate"
	}
}

// Rule is one assertion, transform or partitioner bound to a phase.
type Rule struct {
	name    string
	phase   Phase
	kind    RuleKind
	expr    *expression.Graph
	message string

	rewrite    Rewrite
	factory    string
	annotation element.Annotation
}

// Assert returns a rule that fails planning with message when expr matches.
func Assert(name string, phase Phase, expr *expression.Graph, message string) *Rule {
	return &Rule{name: name, phase: phase, kind: RuleAssertion, expr: expr, message: message}
}

// Contract returns a transform removing the secondary elements of every
// match. With an empty factory the scopes are bridged; otherwise the
// secondaries are replaced by one element from the named factory.
func Contract(name string, phase Phase, expr *expression.Graph, factory string) *Rule {
	return &Rule{name: name, phase: phase, kind: RuleTransform, expr: expr, rewrite: RewriteContract, factory: factory}
}

// Insert returns a transform placing one factory element between the primary
// element and its secondary successors, or all successors when the pattern
// has no secondary vertex.
func Insert(name string, phase Phase, expr *expression.Graph, factory string) *Rule {
	return &Rule{name: name, phase: phase, kind: RuleTransform, expr: expr, rewrite: RewriteInsert, factory: factory}
}

// Annotate returns a transform marking the primary elements of every match.
func Annotate(name string, phase Phase, expr *expression.Graph, a element.Annotation) *Rule {
	return &Rule{name: name, phase: phase, kind: RuleTransform, expr: expr, rewrite: RewriteAnnotate, annotation: a}
}

// Partition returns a partitioner cutting the graph at the primary elements
// of every match.
func Partition(name string, phase Phase, expr *expression.Graph) *Rule {
	return &Rule{name: name, phase: phase, kind: RulePartition, expr: expr}
}

func (r *Rule) Name() string                   { return r.name }
func (r *Rule) Phase() Phase                   { return r.phase }
func (r *Rule) Kind() RuleKind                 { return r.kind }
func (r *Rule) Expression() *expression.Graph  { return r.expr }
func (r *Rule) Message() string                { return r.message }
func (r *Rule) Rewrite() Rewrite               { return r.rewrite }
func (r *Rule) Factory() string                { return r.factory }
func (r *Rule) Annotation() element.Annotation { return r.annotation }

func (r *Rule) String() string {
	if r.kind == RuleTransform {
		return fmt.Sprintf("%s(%s %s)", r.name, r.kind, r.rewrite)
	}
	return fmt.Sprintf("%s(%s)", r.name, r.kind)
}

package element

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/join"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Kind discriminates the closed set of element variants.
type Kind int

const (
	KindHead Kind = iota
	KindTail
	KindPipe
	KindFunction
	KindFilter
	KindValueAssertion
	KindAggregator
	KindBuffer
	KindGroupAssertion
	KindGroupBy
	KindCoGroup
	KindHashJoin
	KindMerge
	KindTap
	KindBoundary
	KindCheckpoint
)

var kindNames = map[Kind]string{
	KindHead:           "head",
	KindTail:           "tail",
	KindPipe:           "pipe",
	KindFunction:       "function",
	KindFilter:         "filter",
	KindValueAssertion: "value-assertion",
	KindAggregator:     "aggregator",
	KindBuffer:         "buffer",
	KindGroupAssertion: "group-assertion",
	KindGroupBy:        "group-by",
	KindCoGroup:        "co-group",
	KindHashJoin:       "hash-join",
	KindMerge:          "merge",
	KindTap:            "tap",
	KindBoundary:       "boundary",
	KindCheckpoint:     "checkpoint",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Element is a vertex of an element graph. The set of implementations is
// closed: Extent, Pipe, Operator, Splice, Tap, Boundary and Checkpoint.
type Element interface {
	Kind() Kind
	// Name is the branch name the element belongs to.
	Name() string
	String() string
	sealed()
}

// Extent is the head or tail sentinel.
type Extent struct {
	kind Kind
}

var (
	// Head marks the global start of every element graph.
	Head = &Extent{kind: KindHead}
	// Tail marks the global end of every element graph.
	Tail = &Extent{kind: KindTail}
)

func (e *Extent) Kind() Kind     { return e.kind }
func (e *Extent) Name() string   { return e.kind.String() }
func (e *Extent) String() string { return "[" + e.kind.String() + "]" }
func (e *Extent) sealed()        {}

// IsExtent reports whether e is the head or tail sentinel.
func IsExtent(e Element) bool {
	_, ok := e.(*Extent)
	return ok
}

// Pipe names a branch. Pipe markers carry no behavior and are removed during planning.
type Pipe struct {
	name string
}

// NewPipe returns a branch marker.
func NewPipe(name string) *Pipe {
	return &Pipe{name: name}
}

func (p *Pipe) Kind() Kind     { return KindPipe }
func (p *Pipe) Name() string   { return p.name }
func (p *Pipe) String() string { return fmt.Sprintf("Pipe(%s)", p.name) }
func (p *Pipe) sealed()        {}

// OutputMode selects how an operator's results are combined with its input.
type OutputMode int

const (
	// OutputResults keeps only the operation results.
	OutputResults OutputMode = iota
	// OutputAll appends the results to the input.
	OutputAll
	// OutputSwap replaces the argument fields of the input with the results.
	OutputSwap
)

// ParseOutputMode maps "results", "all" and "swap" onto an OutputMode.
func ParseOutputMode(s string) (OutputMode, error) {
	switch s {
	case "", "results":
		return OutputResults, nil
	case "all":
		return OutputAll, nil
	case "swap":
		return OutputSwap, nil
	default:
		return 0, fmt.Errorf("unknown output mode %q", s)
	}
}

// Operator applies an operation per record (each) or per group (every).
type Operator struct {
	name         string
	kind         Kind
	operation    operation.Operation
	arguments    tuple.Fields
	output       OutputMode
	outputFields tuple.Fields
}

// OperatorOption customizes an Operator.
type OperatorOption func(*Operator)

// WithArguments restricts the fields handed to the operation.
func WithArguments(fields tuple.Fields) OperatorOption {
	return func(o *Operator) { o.arguments = fields }
}

// WithOutput selects the output mode.
func WithOutput(mode OutputMode) OperatorOption {
	return func(o *Operator) { o.output = mode }
}

// WithOutputFields selects an explicit subset of input and result fields.
func WithOutputFields(fields tuple.Fields) OperatorOption {
	return func(o *Operator) { o.outputFields = fields }
}

// NewEach wraps a per-record operation.
func NewEach(name string, op operation.Operation, opts ...OperatorOption) (*Operator, error) {
	var kind Kind
	switch op.(type) {
	case operation.Function:
		kind = KindFunction
	case operation.Filter:
		kind = KindFilter
	case operation.ValueAssertion:
		kind = KindValueAssertion
	default:
		return nil, fmt.Errorf("operation %s (%T) cannot be used in an each", op.Name(), op)
	}
	return newOperator(name, kind, op, opts), nil
}

// NewEvery wraps a per-group operation.
func NewEvery(name string, op operation.Operation, opts ...OperatorOption) (*Operator, error) {
	var kind Kind
	switch op.(type) {
	case operation.Aggregator:
		kind = KindAggregator
	case operation.Buffer:
		kind = KindBuffer
	case operation.GroupAssertion:
		kind = KindGroupAssertion
	default:
		return nil, fmt.Errorf("operation %s (%T) cannot be used in an every", op.Name(), op)
	}
	return newOperator(name, kind, op, opts), nil
}

func newOperator(name string, kind Kind, op operation.Operation, opts []OperatorOption) *Operator {
	o := &Operator{name: name, kind: kind, operation: op}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Operator) Kind() Kind                     { return o.kind }
func (o *Operator) Name() string                   { return o.name }
func (o *Operator) Operation() operation.Operation { return o.operation }
func (o *Operator) Arguments() tuple.Fields        { return o.arguments }
func (o *Operator) Output() OutputMode             { return o.output }
func (o *Operator) OutputFields() tuple.Fields     { return o.outputFields }
func (o *Operator) sealed()                        {}

func (o *Operator) String() string {
	if IsEvery(o) {
		return fmt.Sprintf("Every(%s)[%s]", o.name, o.operation.Name())
	}
	return fmt.Sprintf("Each(%s)[%s]", o.name, o.operation.Name())
}

// IsEach reports whether e is a per-record operator.
func IsEach(e Element) bool {
	switch e.Kind() {
	case KindFunction, KindFilter, KindValueAssertion:
		return true
	}
	return false
}

// IsEvery reports whether e is a per-group operator.
func IsEvery(e Element) bool {
	switch e.Kind() {
	case KindAggregator, KindBuffer, KindGroupAssertion:
		return true
	}
	return false
}

// Splice groups, joins or merges several branches.
type Splice struct {
	name      string
	kind      Kind
	keys      []tuple.Fields
	declared  tuple.Fields
	joiner    join.Joiner
	selfJoins int
}

// NewGroupBy groups one or more branches with identical fields on key.
func NewGroupBy(name string, key tuple.Fields) *Splice {
	return &Splice{name: name, kind: KindGroupBy, keys: []tuple.Fields{key}}
}

// NewCoGroup groups branches on per-branch keys and joins the groups.
func NewCoGroup(name string, keys []tuple.Fields, joiner join.Joiner, declared tuple.Fields) *Splice {
	return &Splice{name: name, kind: KindCoGroup, keys: keys, joiner: defaultJoiner(joiner), declared: declared}
}

// NewSelfCoGroup joins a single branch with itself selfJoins additional times.
func NewSelfCoGroup(name string, key tuple.Fields, selfJoins int, joiner join.Joiner, declared tuple.Fields) *Splice {
	s := NewCoGroup(name, []tuple.Fields{key}, joiner, declared)
	s.selfJoins = selfJoins
	return s
}

// NewHashJoin joins streamed branch 0 against accumulated branches held in memory.
func NewHashJoin(name string, keys []tuple.Fields, joiner join.Joiner, declared tuple.Fields) *Splice {
	return &Splice{name: name, kind: KindHashJoin, keys: keys, joiner: defaultJoiner(joiner), declared: declared}
}

// NewSelfHashJoin joins a single branch with itself.
func NewSelfHashJoin(name string, key tuple.Fields, selfJoins int, joiner join.Joiner, declared tuple.Fields) *Splice {
	s := NewHashJoin(name, []tuple.Fields{key}, joiner, declared)
	s.selfJoins = selfJoins
	return s
}

// NewMerge interleaves branches with identical fields.
func NewMerge(name string) *Splice {
	return &Splice{name: name, kind: KindMerge}
}

func defaultJoiner(j join.Joiner) join.Joiner {
	if j == nil {
		return join.Inner()
	}
	return j
}

func (s *Splice) Kind() Kind             { return s.kind }
func (s *Splice) Name() string           { return s.name }
func (s *Splice) Declared() tuple.Fields { return s.declared }
func (s *Splice) Joiner() join.Joiner    { return s.joiner }
func (s *Splice) SelfJoins() int         { return s.selfJoins }
func (s *Splice) IsSelfJoin() bool       { return s.selfJoins > 0 }
func (s *Splice) sealed()                {}

// Key returns the grouping key of the branch with the given ordinal. A single
// declared key applies to every branch.
func (s *Splice) Key(ordinal int) tuple.Fields {
	if len(s.keys) == 0 {
		return nil
	}
	if len(s.keys) == 1 || ordinal >= len(s.keys) {
		return s.keys[0]
	}
	return s.keys[ordinal]
}

// KeyCount returns the number of declared keys.
func (s *Splice) KeyCount() int {
	return len(s.keys)
}

// Branches returns the number of logical join branches.
func (s *Splice) Branches(incoming int) int {
	if s.selfJoins > 0 {
		return s.selfJoins + 1
	}
	return incoming
}

func (s *Splice) String() string {
	switch s.kind {
	case KindGroupBy:
		return fmt.Sprintf("GroupBy(%s)%s", s.name, s.Key(0))
	case KindCoGroup:
		return fmt.Sprintf("CoGroup(%s)%v", s.name, s.keys)
	case KindHashJoin:
		return fmt.Sprintf("HashJoin(%s)%v", s.name, s.keys)
	default:
		return fmt.Sprintf("Merge(%s)", s.name)
	}
}

// IsGrouping reports whether e is a group-by or co-group.
func IsGrouping(e Element) bool {
	return e.Kind() == KindGroupBy || e.Kind() == KindCoGroup
}

// IsSplice reports whether e is any splice.
func IsSplice(e Element) bool {
	switch e.Kind() {
	case KindGroupBy, KindCoGroup, KindHashJoin, KindMerge:
		return true
	}
	return false
}

// Tap is an external connector. Whether it acts as a source, a sink or both
// follows from its position in the graph.
type Tap struct {
	name string
	tap  tap.Tap
}

// NewTap wraps a connector.
func NewTap(name string, t tap.Tap) *Tap {
	return &Tap{name: name, tap: t}
}

func (t *Tap) Kind() Kind     { return KindTap }
func (t *Tap) Name() string   { return t.name }
func (t *Tap) Tap() tap.Tap   { return t.tap }
func (t *Tap) String() string { return fmt.Sprintf("Tap(%s)[%s]", t.name, t.tap.Identifier()) }
func (t *Tap) sealed()        {}

// Boundary is a synthetic connector separating two execution nodes.
type Boundary struct {
	name string
}

// NewBoundary returns a boundary named after the branch it cuts.
func NewBoundary(name string) *Boundary {
	return &Boundary{name: name}
}

func (b *Boundary) Kind() Kind     { return KindBoundary }
func (b *Boundary) Name() string   { return b.name }
func (b *Boundary) String() string { return fmt.Sprintf("Boundary(%s)", b.name) }
func (b *Boundary) sealed()        {}

// Checkpoint is a user-declared connector separating two steps.
type Checkpoint struct {
	name string
}

// NewCheckpoint returns a checkpoint on the named branch.
func NewCheckpoint(name string) *Checkpoint {
	return &Checkpoint{name: name}
}

func (c *Checkpoint) Kind() Kind     { return KindCheckpoint }
func (c *Checkpoint) Name() string   { return c.name }
func (c *Checkpoint) String() string { return fmt.Sprintf("Checkpoint(%s)", c.name) }
func (c *Checkpoint) sealed()        {}

// IsConnector reports whether e moves records in or out of a graph.
func IsConnector(e Element) bool {
	switch e.Kind() {
	case KindTap, KindBoundary, KindCheckpoint:
		return true
	}
	return false
}

// Assembly is the planner input: a logical element graph plus the trap
// connectors declared per branch name.
type Assembly struct {
	Name  string
	Graph *Graph
	Traps map[string]*Tap
}

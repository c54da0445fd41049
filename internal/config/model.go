package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of the loaded
// configuration: the operation manifests and the flow description.
type Model struct {
	Operations map[string]*OperationDefinition
	Flow       *Flow
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		Operations: make(map[string]*OperationDefinition),
		Flow:       &Flow{},
	}
}

// Merge adds everything declared in other to m. Operations and flow elements
// must be declared once.
func (m *Model) Merge(other *Model) error {
	for name, def := range other.Operations {
		if _, exists := m.Operations[name]; exists {
			return fmt.Errorf("operation %q declared more than once", name)
		}
		m.Operations[name] = def
	}
	if other.Flow == nil {
		return nil
	}
	if other.Flow.Name != "" {
		if m.Flow.Name != "" && m.Flow.Name != other.Flow.Name {
			return fmt.Errorf("flow declared as both %q and %q", m.Flow.Name, other.Flow.Name)
		}
		m.Flow.Name = other.Flow.Name
		m.Flow.Description = other.Flow.Description
	}
	m.Flow.Sources = append(m.Flow.Sources, other.Flow.Sources...)
	m.Flow.Sinks = append(m.Flow.Sinks, other.Flow.Sinks...)
	m.Flow.Traps = append(m.Flow.Traps, other.Flow.Traps...)
	m.Flow.Pipes = append(m.Flow.Pipes, other.Flow.Pipes...)
	return nil
}

// Flow is the format-agnostic representation of a flow description.
type Flow struct {
	Name        string
	Description string
	Sources     []*Tap
	Sinks       []*Tap
	Traps       []*Tap
	Pipes       []*Pipe
}

// Empty reports whether the flow declares nothing to run.
func (f *Flow) Empty() bool {
	return f == nil || len(f.Sources)+len(f.Sinks)+len(f.Pipes) == 0
}

// Tap is the representation of a `source`, `sink` or `trap` block. For
// sources and traps From is empty. For traps, Name is the branch whose
// failures the tap receives.
type Tap struct {
	Name       string
	Scheme     string
	Path       string
	Fields     []string
	SinkFields []string
	Delimiter  string
	Header     bool
	From       string
}

// Pipe is the representation of a `pipe` block: a named branch reading from
// one or more upstream branches and applying its blocks in order.
type Pipe struct {
	Name   string
	From   []string
	Blocks []*Block
	Range  hcl.Range
}

// BlockKind names the sub-blocks of a pipe.
type BlockKind string

const (
	BlockEach       BlockKind = "each"
	BlockEvery      BlockKind = "every"
	BlockGroupBy    BlockKind = "group_by"
	BlockCoGroup    BlockKind = "co_group"
	BlockHashJoin   BlockKind = "hash_join"
	BlockMerge      BlockKind = "merge"
	BlockCheckpoint BlockKind = "checkpoint"
)

// IsSplice reports whether blocks of kind k join or group branches.
func (k BlockKind) IsSplice() bool {
	switch k {
	case BlockGroupBy, BlockCoGroup, BlockHashJoin, BlockMerge:
		return true
	}
	return false
}

// Block is one ordered sub-block of a pipe.
type Block struct {
	Kind BlockKind
	// Operation is the operation type of each and every blocks.
	Operation    string
	Arguments    []string
	Output       string
	OutputFields []string
	Params       map[string]hcl.Expression

	// Splice settings.
	Keys      [][]string
	Joiner    string
	Inner     []bool
	Declared  []string
	SelfJoins int

	Range hcl.Range
}

// --- Operation Manifest Models ---

// OperationDefinition is the format-agnostic representation of an operation
// manifest.
type OperationDefinition struct {
	Type        string
	Kind        string
	Description string
	Lifecycle   *Lifecycle
	Inputs      map[string]*InputDefinition
}

// Lifecycle maps an operation's events to Go handler names.
type Lifecycle struct {
	OnCreate string
}

// InputDefinition defines a single parameter of an operation.
type InputDefinition struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Optional    bool
}

package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Operations []*OperationDefinition `hcl:"operation,block"`
	Flows      []*FlowBlock           `hcl:"flow,block"`
	Sources    []*TapBlock            `hcl:"source,block"`
	Sinks      []*TapBlock            `hcl:"sink,block"`
	Traps      []*TapBlock            `hcl:"trap,block"`
	Pipes      []*PipeBlock           `hcl:"pipe,block"`
	Remain     hcl.Body               `hcl:",remain"`
}

// --- Flow Description Schemas ---

// FlowBlock names the flow. It is optional and may appear once.
type FlowBlock struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
}

// TapBlock represents a `source`, `sink` or `trap` block.
type TapBlock struct {
	Name       string   `hcl:"name,label"`
	Scheme     string   `hcl:"scheme,optional"`
	Path       string   `hcl:"path,optional"`
	Fields     []string `hcl:"fields,optional"`
	SinkFields []string `hcl:"sink_fields,optional"`
	Delimiter  string   `hcl:"delimiter,optional"`
	Header     bool     `hcl:"header,optional"`
	From       string   `hcl:"from,optional"`
}

// PipeBlock represents a `pipe` block. Its body is walked by hand because the
// order of its sub-blocks is significant.
type PipeBlock struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// OperatorBlock is the body of an `each` or `every` block. Every attribute
// not listed here is a parameter of the operation.
type OperatorBlock struct {
	Arguments    []string `hcl:"arguments,optional"`
	Output       string   `hcl:"output,optional"`
	OutputFields []string `hcl:"output_fields,optional"`
	Params       hcl.Body `hcl:",remain"`
}

// SpliceBlock is the body of a `group_by`, `co_group`, `hash_join` or `merge`
// block.
type SpliceBlock struct {
	Key       []string   `hcl:"key,optional"`
	Keys      [][]string `hcl:"keys,optional"`
	Joiner    string     `hcl:"joiner,optional"`
	Inner     []bool     `hcl:"inner,optional"`
	Declared  []string   `hcl:"declared,optional"`
	SelfJoins int        `hcl:"self_joins,optional"`
}

// CheckpointBlock is the body of a `checkpoint` block.
type CheckpointBlock struct{}

// --- Operation Manifest Schemas ---

// Lifecycle maps an operation's events to registered Go handlers.
type Lifecycle struct {
	OnCreate string `hcl:"on_create"`
}

// InputDefinition defines a single parameter of an operation.
type InputDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
}

// OperationDefinition represents the HCL manifest of an operation.
type OperationDefinition struct {
	Type        string             `hcl:"type,label"`
	Kind        string             `hcl:"kind"`
	Description string             `hcl:"description,optional"`
	Lifecycle   *Lifecycle         `hcl:"lifecycle,block"`
	Inputs      []*InputDefinition `hcl:"input,block"`
}

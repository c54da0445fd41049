package planner

import "fmt"

// Phase is one ordered planning stage.
type Phase int

const (
	PhasePreBalance Phase = iota
	PhaseBalance
	PhasePostBalance
	PhasePreResolve
	PhaseResolve
	PhasePostResolve
	PhasePartitionSteps
	PhasePostSteps
	PhasePartitionNodes
	PhasePostNodes
	PhasePartitionPipelines
	PhasePostPipelines
)

var phaseNames = [...]string{
	PhasePreBalance:         "pre-balance",
	PhaseBalance:            "balance",
	PhasePostBalance:        "post-balance",
	PhasePreResolve:         "pre-resolve",
	PhaseResolve:            "resolve",
	PhasePostResolve:        "post-resolve",
	PhasePartitionSteps:     "partition-steps",
	PhasePostSteps:          "post-steps",
	PhasePartitionNodes:     "partition-nodes",
	PhasePostNodes:          "post-nodes",
	PhasePartitionPipelines: "partition-pipelines",
	PhasePostPipelines:      "post-pipelines",
}

// Phases returns every phase in execution order.
func Phases() []Phase {
	out := make([]Phase, len(phaseNames))
	for i := range phaseNames {
		out[i] = Phase(i)
	}
	return out
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// IsPartition reports whether p splits graphs.
func (p Phase) IsPartition() bool {
	switch p {
	case PhasePartitionSteps, PhasePartitionNodes, PhasePartitionPipelines:
		return true
	}
	return false
}

// accepts reports whether rules of kind k may be registered to p. The
// resolve phase is built in and takes no rules.
func (p Phase) accepts(k RuleKind) bool {
	switch {
	case p == PhaseResolve:
		return false
	case p.IsPartition():
		return k == RulePartition
	default:
		return k != RulePartition
	}
}

func (p Phase) valid() bool {
	return p >= 0 && int(p) < len(phaseNames)
}

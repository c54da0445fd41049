// Package node holds the schedulable unit of the step executor: one planned
// step plus the bookkeeping the worker pool needs to release dependents.
package node

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/gridflow/internal/nodeid"
	"github.com/specialistvlad/gridflow/internal/physical"
)

// Status is the execution state of a step or of a node within a step.
type Status int32

const (
	// StatusPending indicates the unit is waiting for its dependencies.
	StatusPending Status = iota
	// StatusRunning indicates a worker is executing the unit.
	StatusRunning
	// StatusCompleted indicates the unit finished successfully.
	StatusCompleted
	// StatusFailed indicates the unit returned an error.
	StatusFailed
	// StatusSkipped indicates the unit never ran because an upstream unit
	// failed or the run was cancelled.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Terminal reports whether no further transition follows s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Node is a single vertex of the executor graph.
type Node struct {
	// id is the structured address of the step.
	id *nodeid.Address
	// Step is the planned work the node executes.
	Step *physical.Step

	// Error stores the failure of the node, or the reason it was skipped.
	Error error

	// depCount is an atomic counter for unmet dependencies.
	depCount atomic.Int32
	// status is managed atomically.
	status atomic.Int32
	// skipOnce ensures a node is marked as skipped and processed exactly once.
	skipOnce sync.Once
}

// New returns a pending node for step.
func New(step *physical.Step) *Node {
	return &Node{id: step.ID, Step: step}
}

// ID returns the canonical string representation of the node's address.
func (n *Node) ID() string {
	return n.id.String()
}

// Address returns the structured address of the node.
func (n *Node) Address() *nodeid.Address {
	return n.id
}

func (n *Node) SetDepCount(count int32) {
	n.depCount.Store(count)
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// SetStatus atomically sets the node's execution status.
func (n *Node) SetStatus(s Status) {
	n.status.Store(int32(s))
}

// Status atomically retrieves the node's execution status.
func (n *Node) Status() Status {
	return Status(n.status.Load())
}

// Skip marks a node as skipped and decrements its WaitGroup counter. It uses a
// sync.Once to guarantee this happens only once, returning true if it was the
// first time this node was skipped.
func (n *Node) Skip(err error, wg *sync.WaitGroup) bool {
	var wasSkipped bool
	n.skipOnce.Do(func() {
		n.SetStatus(StatusSkipped)
		n.Error = err
		wg.Done()
		wasSkipped = true
	})
	return wasSkipped
}

// Finish records the outcome of a run. It returns false when the node was
// already skipped, in which case the outcome is dropped.
func (n *Node) Finish(err error) bool {
	var first bool
	n.skipOnce.Do(func() {
		first = true
		n.Error = err
		if err != nil {
			n.SetStatus(StatusFailed)
			return
		}
		n.SetStatus(StatusCompleted)
	})
	return first
}

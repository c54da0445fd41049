package planner

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
)

// ErrNoConvergence is returned when a transform keeps matching past the
// rewrite limit. It points at a rule whose rewrite recreates its own pattern.
var ErrNoConvergence = errors.New("transform did not converge")

// PlanningError reports an assertion that matched, or a graph the built-in
// resolve phase rejected.
type PlanningError struct {
	Phase   Phase
	Rule    string
	Message string
	// Subgraph holds the matched elements and the edges between them.
	Subgraph *element.Graph
	Err      error
}

func (e *PlanningError) Error() string {
	msg := fmt.Sprintf("planning failed in phase %s, rule %s: %s", e.Phase, e.Rule, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PlanningError) Unwrap() error { return e.Err }

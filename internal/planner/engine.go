package planner

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/matcher"
)

// DefaultMaxRewrites bounds the rewrites one transform may apply in a phase.
const DefaultMaxRewrites = 1000

// Engine runs the assertion and transform rules of one phase.
type Engine struct {
	registry    *Registry
	maxRewrites int
}

// NewEngine returns an engine over reg. A non-positive maxRewrites selects
// DefaultMaxRewrites.
func NewEngine(reg *Registry, maxRewrites int) *Engine {
	if maxRewrites <= 0 {
		maxRewrites = DefaultMaxRewrites
	}
	return &Engine{registry: reg, maxRewrites: maxRewrites}
}

// ExecutePhase applies every rule registered to phase, in registration order,
// and returns the rewritten graph with its result tree. The input graph is
// never modified. Partition phases are driven by the planner, not here.
func (e *Engine) ExecutePhase(ctx context.Context, phase Phase, g *element.Graph) (*element.Graph, *Result, error) {
	logger := ctxlog.FromContext(ctx).With("phase", phase.String())
	root := newRoot(phase, phase.String(), g)
	current := g

	for _, rule := range e.registry.Rules(phase) {
		if err := ctx.Err(); err != nil {
			return nil, root, err
		}
		node := root.child(rule.name, rule.name, current)

		var err error
		switch rule.kind {
		case RuleAssertion:
			err = e.assert(phase, rule, current)
		case RuleTransform:
			current, err = e.transform(rule, node, current)
		default:
			err = fmt.Errorf("rule %q: %s rules cannot run in phase %s", rule.name, rule.kind, phase)
		}
		if err != nil {
			return nil, root, err
		}
		if n := len(node.Rewrites()); n > 0 {
			logger.Debug("Transform applied.", "rule", rule.name, "rewrites", n)
		}
	}
	return current, root, nil
}

func (e *Engine) assert(phase Phase, rule *Rule, g *element.Graph) error {
	matches := matcher.Find(rule.expr, g, matcher.FirstMatch)
	if len(matches) == 0 {
		return nil
	}
	return &PlanningError{
		Phase:    phase,
		Rule:     rule.name,
		Message:  rule.message,
		Subgraph: matches[0].Subgraph(g),
	}
}

func (e *Engine) transform(rule *Rule, node *Result, g *element.Graph) (*element.Graph, error) {
	if rule.rewrite == RewriteAnnotate {
		next, changed := annotate(rule, g)
		if changed {
			node.child(rule.name, fmt.Sprintf("%s-0", rule.name), next)
		}
		return next, nil
	}

	current, parent := g, node
	for i := 0; ; i++ {
		if i == e.maxRewrites {
			return nil, fmt.Errorf("rule %q after %d rewrites: %w", rule.name, i, ErrNoConvergence)
		}

		var (
			next *element.Graph
			err  error
			ok   bool
		)
		switch rule.rewrite {
		case RewriteContract:
			next, ok, err = e.contract(rule, current)
		case RewriteInsert:
			next, ok, err = e.insert(rule, current)
		}
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rule.name, err)
		}
		if !ok {
			return current, nil
		}
		parent = parent.child(rule.name, fmt.Sprintf("%s-%d", rule.name, i), next)
		current = next
	}
}

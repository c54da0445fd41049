package planner

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
)

var (
	// ErrInvalidRegistry wraps every registry construction failure.
	ErrInvalidRegistry = errors.New("invalid rule registry")
	// ErrMissingFactory is returned when a transform names an unknown factory.
	ErrMissingFactory = errors.New("missing element factory")
)

// Factory creates the element a transform inserts. name is the branch name
// of the element it is placed next to.
type Factory func(name string) element.Element

// Registry is the validated, immutable rule configuration of a planner.
type Registry struct {
	name      string
	rules     map[Phase][]*Rule
	factories map[string]Factory
}

// NewRegistry validates rules and factories and returns a registry. Every
// problem is reported at once.
func NewRegistry(name string, factories map[string]Factory, rules ...*Rule) (*Registry, error) {
	r := &Registry{
		name:      name,
		rules:     make(map[Phase][]*Rule),
		factories: make(map[string]Factory, len(factories)),
	}
	for k, f := range factories {
		r.factories[k] = f
	}

	var errs []error
	seen := make(map[string]bool)
	for i, rule := range rules {
		if rule == nil {
			errs = append(errs, fmt.Errorf("rule %d is nil", i))
			continue
		}
		if rule.name == "" {
			errs = append(errs, fmt.Errorf("rule %d has no name", i))
		} else if seen[rule.name] {
			errs = append(errs, fmt.Errorf("duplicate rule %q", rule.name))
		}
		seen[rule.name] = true

		if !rule.phase.valid() {
			errs = append(errs, fmt.Errorf("rule %q: unknown phase %d", rule.name, int(rule.phase)))
			continue
		}
		if !rule.phase.accepts(rule.kind) {
			errs = append(errs, fmt.Errorf("rule %q: a %s rule cannot run in phase %s", rule.name, rule.kind, rule.phase))
		}
		if rule.expr == nil {
			errs = append(errs, fmt.Errorf("rule %q has no expression", rule.name))
		} else if err := rule.expr.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %q: %w", rule.name, err))
		}
		if err := r.checkFactory(rule); err != nil {
			errs = append(errs, err)
		}
		r.rules[rule.phase] = append(r.rules[rule.phase], rule)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidRegistry, name, errors.Join(errs...))
	}
	return r, nil
}

func (r *Registry) checkFactory(rule *Rule) error {
	if rule.kind != RuleTransform {
		return nil
	}
	switch rule.rewrite {
	case RewriteInsert:
		if rule.factory == "" {
			return fmt.Errorf("rule %q: insert requires a factory: %w", rule.name, ErrMissingFactory)
		}
	case RewriteContract:
		if rule.factory == "" {
			return nil
		}
	default:
		return nil
	}
	if _, ok := r.factories[rule.factory]; !ok {
		return fmt.Errorf("rule %q: factory %q: %w", rule.name, rule.factory, ErrMissingFactory)
	}
	return nil
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Rules returns the rules of phase p in registration order.
func (r *Registry) Rules(p Phase) []*Rule {
	return append([]*Rule(nil), r.rules[p]...)
}

// Factory returns the named factory.
func (r *Registry) Factory(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

package element

import (
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// ErrFieldResolution is wrapped by every field resolution failure.
var ErrFieldResolution = errors.New("field resolution failed")

// Resolve returns a copy of g whose scopes carry the fields flowing on every
// edge. Vertices are visited in topological order, so an element always sees
// the resolved scopes of its inputs.
func Resolve(g *Graph) (*Graph, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFieldResolution, err)
	}

	r := g.Copy()
	for _, v := range order {
		if IsExtent(v) {
			continue
		}
		if err := r.resolveVertex(v); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFieldResolution, v, err)
		}
	}
	return r, nil
}

func (g *Graph) resolveVertex(v Element) error {
	in := g.InnerIncoming(v)
	sort.SliceStable(in, func(i, j int) bool { return in[i].Scope.Ordinal < in[j].Scope.Ordinal })

	switch e := v.(type) {
	case *Tap:
		return g.resolveTap(e, in)
	case *Pipe, *Boundary, *Checkpoint:
		fields, err := commonFields(in)
		if err != nil {
			return err
		}
		g.setFlat(v, fields)
		return nil
	case *Operator:
		if IsEvery(e) {
			return g.resolveEvery(e, in)
		}
		return g.resolveEach(e, in)
	case *Splice:
		return g.resolveSplice(e, in)
	default:
		return fmt.Errorf("unsupported element %T", v)
	}
}

func (g *Graph) resolveTap(t *Tap, in []Edge) error {
	source := t.tap.SourceFields()
	if len(in) == 0 {
		if len(source) == 0 {
			return errors.New("source tap declares no fields")
		}
		g.setFlat(t, source)
		return nil
	}

	fields, err := commonFields(in)
	if err != nil {
		return err
	}
	sink := t.tap.SinkFields()
	if _, err := fields.Positions(sink); err != nil {
		return fmt.Errorf("sink fields: %w", err)
	}
	switch {
	case len(source) > 0:
		g.setFlat(t, source)
	case len(sink) > 0:
		g.setFlat(t, sink)
	default:
		g.setFlat(t, fields)
	}
	return nil
}

func (g *Graph) resolveEach(o *Operator, in []Edge) error {
	if len(in) != 1 {
		return fmt.Errorf("each accepts exactly one input, got %d", len(in))
	}
	if in[0].Scope.Grouped {
		return errors.New("each cannot consume a grouped scope")
	}
	_, plan, err := o.Plan(in[0].Scope.Fields)
	if err != nil {
		return err
	}
	g.setFlat(o, plan.Fields)
	return nil
}

func (g *Graph) resolveEvery(o *Operator, in []Edge) error {
	if len(in) != 1 || !in[0].Scope.Grouped {
		return errors.New("every must follow a grouping splice or another every")
	}
	scope := in[0].Scope
	args := o.arguments
	if len(args) == 0 {
		args = scope.Values
	}
	if _, err := scope.Values.Positions(args); err != nil {
		return fmt.Errorf("arguments: %w", err)
	}

	var out tuple.Fields
	switch o.kind {
	case KindAggregator:
		out = scope.Fields.Append(o.Declared(args))
	case KindBuffer:
		out = scope.Key.Append(o.Declared(args))
	default:
		out = scope.Fields
	}
	if out.HasDuplicates() {
		return fmt.Errorf("result fields %s contain duplicates", out)
	}
	g.setGrouped(o, scope.Key, scope.Values, out)
	return nil
}

func (g *Graph) resolveSplice(s *Splice, in []Edge) error {
	if len(in) == 0 {
		return errors.New("splice has no input")
	}

	switch s.kind {
	case KindMerge:
		fields, err := commonFields(in)
		if err != nil {
			return err
		}
		g.setFlat(s, fields)
		return nil

	case KindGroupBy:
		fields, err := commonFields(in)
		if err != nil {
			return err
		}
		key := s.Key(0)
		if len(key) == 0 {
			return errors.New("group by declares no key")
		}
		if _, err := fields.Positions(key); err != nil {
			return fmt.Errorf("group key: %w", err)
		}
		g.setGrouped(s, key, fields, key)
		return nil
	}

	var branches []tuple.Fields
	if s.IsSelfJoin() {
		if len(in) != 1 {
			return fmt.Errorf("self join expects one input, got %d", len(in))
		}
		for i := 0; i <= s.selfJoins; i++ {
			branches = append(branches, in[0].Scope.Fields)
		}
	} else {
		for _, ed := range in {
			branches = append(branches, ed.Scope.Fields)
		}
	}

	var values tuple.Fields
	keyLen := -1
	for i, fields := range branches {
		key := s.Key(i)
		if len(key) == 0 {
			return fmt.Errorf("branch %d declares no key", i)
		}
		if keyLen >= 0 && len(key) != keyLen {
			return errors.New("join keys differ in size")
		}
		keyLen = len(key)
		if _, err := fields.Positions(key); err != nil {
			return fmt.Errorf("branch %d key: %w", i, err)
		}
		values = values.Append(fields)
	}

	if len(s.declared) > 0 {
		if len(s.declared) != len(values) {
			return fmt.Errorf("declared fields %s do not match joined width %d", s.declared, len(values))
		}
		values = s.declared
	} else if values.HasDuplicates() {
		return fmt.Errorf("joined fields %s collide, declare output fields", values)
	}

	if s.kind == KindHashJoin {
		g.setFlat(s, values)
		return nil
	}
	g.setGrouped(s, s.Key(0), values, s.Key(0))
	return nil
}

func commonFields(in []Edge) (tuple.Fields, error) {
	if len(in) == 0 {
		return nil, errors.New("element has no input")
	}
	fields := in[0].Scope.Fields
	for _, ed := range in[1:] {
		if !ed.Scope.Fields.Equal(fields) {
			return nil, fmt.Errorf("incoming branches disagree on fields: %s vs %s", fields, ed.Scope.Fields)
		}
	}
	return fields, nil
}

// setFlat assigns fields to every outgoing scope of v.
func (g *Graph) setFlat(v Element, fields tuple.Fields) {
	idx := g.index[v]
	for _, ei := range g.out[idx] {
		s := g.edges[ei].scope.clone()
		s.Fields = fields
		s.Grouped, s.Key, s.Values = false, nil, nil
		g.edges[ei].scope = s
	}
}

// setGrouped assigns grouped scopes to edges entering an every and the
// current results (or the values, for grouping splices) to every other edge.
func (g *Graph) setGrouped(v Element, key, values, results tuple.Fields) {
	idx := g.index[v]
	for _, ei := range g.out[idx] {
		s := g.edges[ei].scope.clone()
		to := g.vertices[g.edges[ei].to]
		if IsEvery(to) {
			s.Grouped, s.Key, s.Values, s.Fields = true, key, values, results
		} else {
			s.Grouped, s.Key, s.Values = false, nil, nil
			s.Fields = results
			if IsGrouping(v) {
				s.Fields = values
			}
		}
		g.edges[ei].scope = s
	}
}

package stream

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// eachStage applies a function, filter or value assertion to every record.
type eachStage struct {
	stageBase
	op        *element.Operator
	argFields tuple.Fields
	argPos    []int
	plan      *element.OutputPlan
	declared  int

	function  operation.Function
	filter    operation.Filter
	assertion operation.ValueAssertion
}

func newEachStage(op *element.Operator) (*eachStage, error) {
	s := &eachStage{stageBase: newBase(op, "each"), op: op}
	var ok bool
	switch op.Kind() {
	case element.KindFunction:
		s.function, ok = op.Operation().(operation.Function)
	case element.KindFilter:
		s.filter, ok = op.Operation().(operation.Filter)
	case element.KindValueAssertion:
		s.assertion, ok = op.Operation().(operation.ValueAssertion)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s does not implement a %s", ErrUnsupportedElement, op, op.Kind())
	}
	return s, nil
}

func (s *eachStage) bind(context.Context) error {
	in := s.inFields()
	args, plan, err := s.op.Plan(in)
	if err != nil {
		return s.fail(err)
	}
	pos, err := in.Positions(args)
	if err != nil {
		return s.fail(err)
	}
	s.argFields, s.argPos, s.plan = args, pos, plan
	s.declared = len(s.op.Declared(args))
	return nil
}

func (s *eachStage) receive(ctx context.Context, _ int, t tuple.Tuple) error {
	args := tuple.Entry{Fields: s.argFields, Tuple: t.Select(s.argPos)}

	switch {
	case s.filter != nil:
		remove, err := s.filter.Remove(ctx, args)
		if err != nil {
			return s.trap.handle(ctx, s.elem, t, err)
		}
		if remove {
			return nil
		}
		return s.emit(ctx, t)

	case s.assertion != nil:
		if err := s.assertion.Check(ctx, args); err != nil {
			return s.trap.handle(ctx, s.elem, t, err)
		}
		return s.emit(ctx, t)
	}

	out := &collector{emit: func(result tuple.Tuple) error {
		if len(result) != s.declared {
			return s.fail(fmt.Errorf("function emitted %d values, declared %d", len(result), s.declared))
		}
		return s.emit(ctx, s.plan.Apply(t, tuple.Of(result...)))
	}}
	err := s.function.Operate(ctx, args, out)
	if out.err != nil {
		return out.err
	}
	if err != nil {
		return s.trap.handle(ctx, s.elem, t, err)
	}
	return nil
}

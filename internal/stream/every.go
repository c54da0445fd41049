package stream

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/spill"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// windowOpen sits between a grouping gate and the first every of a chain
// and frames the values of each key.
type windowOpen struct {
	stageBase
	groups int
}

func (w *windowOpen) receive(ctx context.Context, _ int, t tuple.Tuple) error {
	return w.emit(ctx, t)
}

func (w *windowOpen) openGroup(ctx context.Context, key tuple.Entry) error {
	w.groups++
	return w.emitOpen(ctx, key)
}

func (w *windowOpen) closeGroup(ctx context.Context, acc tuple.Tuple) error {
	return w.emitClose(ctx, acc)
}

// windowClose turns the accumulated result of an every chain back into a
// flat record.
type windowClose struct {
	stageBase
}

func (w *windowClose) receive(context.Context, int, tuple.Tuple) error { return nil }

func (w *windowClose) closeGroup(ctx context.Context, acc tuple.Tuple) error {
	return w.emit(ctx, acc)
}

// reducer holds what every reducer stage resolves at bind.
type reducer struct {
	stageBase
	op        *element.Operator
	argFields tuple.Fields
	argPos    []int
	declared  int
	key       tuple.Entry
	failed    bool
}

func (r *reducer) bindReducer() error {
	scope, err := r.inScope()
	if err != nil {
		return err
	}
	if !scope.Grouped {
		return r.fail(fmt.Errorf("expected a grouped scope, got %s", scope))
	}
	args := r.op.Arguments()
	if len(args) == 0 {
		args = scope.Values
	}
	pos, err := scope.Values.Positions(args)
	if err != nil {
		return r.fail(fmt.Errorf("arguments: %w", err))
	}
	r.argFields, r.argPos = args, pos
	r.declared = len(r.op.Declared(args))
	return nil
}

func (r *reducer) args(t tuple.Tuple) tuple.Entry {
	return tuple.Entry{Fields: r.argFields, Tuple: t.Select(r.argPos)}
}

// aggregatorStage folds a group into one result appended to the accumulator.
type aggregatorStage struct {
	reducer
	agg   operation.Aggregator
	state any
}

func (a *aggregatorStage) bind(context.Context) error { return a.bindReducer() }

func (a *aggregatorStage) openGroup(ctx context.Context, key tuple.Entry) error {
	a.key, a.failed = key, false
	state, err := a.agg.Start(ctx, key)
	if err != nil {
		a.failed = true
		if terr := a.trap.handle(ctx, a.elem, key.Tuple, err); terr != nil {
			return terr
		}
	}
	a.state = state
	return a.emitOpen(ctx, key)
}

func (a *aggregatorStage) receive(ctx context.Context, _ int, t tuple.Tuple) error {
	if !a.failed {
		state, err := a.agg.Aggregate(ctx, a.state, a.args(t))
		if err != nil {
			a.failed = true
			if terr := a.trap.handle(ctx, a.elem, a.key.Tuple, err); terr != nil {
				return terr
			}
		}
		a.state = state
	}
	return a.emit(ctx, t)
}

func (a *aggregatorStage) closeGroup(ctx context.Context, acc tuple.Tuple) error {
	if a.failed {
		return nil
	}
	result, err := a.agg.Complete(ctx, a.state)
	a.state = nil
	if err != nil {
		return a.trap.handle(ctx, a.elem, acc, err)
	}
	if len(result) != a.declared {
		return a.fail(fmt.Errorf("aggregator completed with %d values, declared %d", len(result), a.declared))
	}
	return a.emitClose(ctx, acc.Append(tuple.Of(result...)))
}

// groupAssertionStage validates a group and passes the accumulator on.
type groupAssertionStage struct {
	reducer
	assertion operation.GroupAssertion
	state     any
}

func (g *groupAssertionStage) bind(context.Context) error { return g.bindReducer() }

func (g *groupAssertionStage) openGroup(ctx context.Context, key tuple.Entry) error {
	g.key, g.failed = key, false
	state, err := g.assertion.Start(ctx, key)
	if err != nil {
		g.failed = true
		if terr := g.trap.handle(ctx, g.elem, key.Tuple, err); terr != nil {
			return terr
		}
	}
	g.state = state
	return g.emitOpen(ctx, key)
}

func (g *groupAssertionStage) receive(ctx context.Context, _ int, t tuple.Tuple) error {
	if !g.failed {
		state, err := g.assertion.Aggregate(ctx, g.state, g.args(t))
		if err != nil {
			g.failed = true
			if terr := g.trap.handle(ctx, g.elem, g.key.Tuple, err); terr != nil {
				return terr
			}
		}
		g.state = state
	}
	return g.emit(ctx, t)
}

func (g *groupAssertionStage) closeGroup(ctx context.Context, acc tuple.Tuple) error {
	if g.failed {
		return nil
	}
	err := g.assertion.Complete(ctx, g.state)
	g.state = nil
	if err != nil {
		return g.trap.handle(ctx, g.elem, acc, err)
	}
	return g.emitClose(ctx, acc)
}

// bufferStage collects the arguments of a group and hands them to the
// buffer at once. Every emitted tuple becomes one record after the key.
type bufferStage struct {
	reducer
	buffer operation.Buffer
	opts   spill.Options
	values *spill.List
}

func (b *bufferStage) bind(context.Context) error { return b.bindReducer() }

func (b *bufferStage) prepare(context.Context) error {
	b.values = spill.New(b.opts)
	return nil
}

func (b *bufferStage) openGroup(_ context.Context, key tuple.Entry) error {
	b.key = key
	if err := b.values.Clear(); err != nil {
		return b.fail(err)
	}
	return nil
}

func (b *bufferStage) receive(_ context.Context, _ int, t tuple.Tuple) error {
	if err := b.values.Add(t.Select(b.argPos)); err != nil {
		return b.fail(fmt.Errorf("buffering: %w", err))
	}
	return nil
}

func (b *bufferStage) closeGroup(ctx context.Context, _ tuple.Tuple) error {
	it := b.values.Iterator()
	defer it.Close()

	out := &collector{emit: func(result tuple.Tuple) error {
		if len(result) != b.declared {
			return b.fail(fmt.Errorf("buffer emitted %d values, declared %d", len(result), b.declared))
		}
		return b.emitClose(ctx, b.key.Tuple.Append(tuple.Of(result...)))
	}}
	err := b.buffer.Operate(ctx, b.key, &tuple.EntryIterator{Fields: b.argFields, It: it}, out)
	if out.err != nil {
		return out.err
	}
	if err == nil {
		err = it.Err()
	}
	if err != nil {
		return b.trap.handle(ctx, b.elem, b.key.Tuple, err)
	}
	return nil
}

func (b *bufferStage) cleanup(context.Context) error {
	if b.values == nil {
		return nil
	}
	return b.values.Close()
}

func newReducerStage(op *element.Operator, opts spill.Options) (Stage, error) {
	r := reducer{stageBase: newBase(op, op.Kind().String()), op: op}
	switch op.Kind() {
	case element.KindAggregator:
		if agg, ok := op.Operation().(operation.Aggregator); ok {
			return &aggregatorStage{reducer: r, agg: agg}, nil
		}
	case element.KindGroupAssertion:
		if a, ok := op.Operation().(operation.GroupAssertion); ok {
			return &groupAssertionStage{reducer: r, assertion: a}, nil
		}
	case element.KindBuffer:
		if b, ok := op.Operation().(operation.Buffer); ok {
			return &bufferStage{reducer: r, buffer: b, opts: opts}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s does not implement a %s", ErrUnsupportedElement, op, op.Kind())
}

package stream

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Stage is one vertex of a stream graph.
type Stage interface {
	// Element is the element the stage executes. Window stages report the
	// every they open or close.
	Element() element.Element
	// Role names the stage implementation, e.g. "grouping-gate".
	Role() string
	Wrap() Wrap

	core() *stageBase
	bind(ctx context.Context) error
	initialize(ctx context.Context) error
	prepare(ctx context.Context) error
	cleanup(ctx context.Context) error

	receive(ctx context.Context, ordinal int, t tuple.Tuple) error
	openGroup(ctx context.Context, key tuple.Entry) error
	closeGroup(ctx context.Context, acc tuple.Tuple) error
	complete(ctx context.Context, ordinal int) error
}

type link struct {
	to      Stage
	ordinal int
}

// stageBase carries the wiring every stage shares and the default behavior:
// flat stages ignore group boundaries and forward completion once every
// input finished.
type stageBase struct {
	elem     element.Element
	role     string
	wrap     Wrap
	next     []link
	scopes   map[int]*element.Scope
	inputs   int
	done     int
	trap     *trapHandler
	counters metrics.Counters
}

func newBase(e element.Element, role string) stageBase {
	return stageBase{elem: e, role: role, scopes: make(map[int]*element.Scope)}
}

func (b *stageBase) Element() element.Element { return b.elem }
func (b *stageBase) Role() string             { return b.role }
func (b *stageBase) Wrap() Wrap               { return b.wrap }
func (b *stageBase) core() *stageBase         { return b }

func (b *stageBase) bind(context.Context) error       { return nil }
func (b *stageBase) initialize(context.Context) error { return nil }
func (b *stageBase) prepare(context.Context) error    { return nil }
func (b *stageBase) cleanup(context.Context) error    { return nil }

func (b *stageBase) receive(context.Context, int, tuple.Tuple) error {
	return b.fail(fmt.Errorf("%s stage accepts no records", b.role))
}

func (b *stageBase) openGroup(context.Context, tuple.Entry) error   { return nil }
func (b *stageBase) closeGroup(context.Context, tuple.Tuple) error { return nil }

func (b *stageBase) complete(ctx context.Context, _ int) error {
	if !b.finished() {
		return nil
	}
	return b.completeNext(ctx)
}

// inFields returns the fields of the single incoming scope.
func (b *stageBase) inFields() tuple.Fields {
	if s, ok := b.scopes[0]; ok {
		return s.Fields
	}
	for _, s := range b.scopes {
		return s.Fields
	}
	return nil
}

// inScope returns the single incoming scope.
func (b *stageBase) inScope() (*element.Scope, error) {
	if len(b.scopes) != 1 {
		return nil, b.fail(fmt.Errorf("expected one incoming scope, got %d", len(b.scopes)))
	}
	for _, s := range b.scopes {
		return s, nil
	}
	return nil, nil
}

func (b *stageBase) finished() bool {
	b.done++
	return b.done >= b.inputs
}

// emit hands t downstream as decided by the wrap. A fork gives every
// successor but the last its own copy, so branches never share a backing
// array. Ordinals are passed only to multi-input successors.
func (b *stageBase) emit(ctx context.Context, t tuple.Tuple) error {
	last := len(b.next) - 1
	for i, l := range b.next {
		rec := t
		if b.wrap.Has(WrapFork) && i < last {
			rec = t.Copy()
		}
		if err := l.to.receive(ctx, b.ordinal(l), rec); err != nil {
			return err
		}
	}
	return nil
}

func (b *stageBase) ordinal(l link) int {
	if b.wrap.Has(WrapOrdinal) {
		return l.ordinal
	}
	return 0
}

func (b *stageBase) emitOpen(ctx context.Context, key tuple.Entry) error {
	for _, l := range b.next {
		if err := l.to.openGroup(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (b *stageBase) emitClose(ctx context.Context, acc tuple.Tuple) error {
	for _, l := range b.next {
		if err := l.to.closeGroup(ctx, acc); err != nil {
			return err
		}
	}
	return nil
}

func (b *stageBase) completeNext(ctx context.Context) error {
	for _, l := range b.next {
		if err := l.to.complete(ctx, b.ordinal(l)); err != nil {
			return err
		}
	}
	return nil
}

func (b *stageBase) fail(err error) error {
	return &StageError{Element: b.elem, Err: err}
}

// collector hands operation results downstream and remembers downstream
// failures, so they are not mistaken for failures of the operation.
type collector struct {
	emit func(tuple.Tuple) error
	err  error
}

func (c *collector) Collect(t tuple.Tuple) error {
	if c.err != nil {
		return c.err
	}
	c.err = c.emit(t)
	return c.err
}

package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/join"
	"github.com/specialistvlad/gridflow/internal/spill"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// bucket holds the values of one key, one list per stored branch.
type bucket struct {
	key   tuple.Tuple
	lists []*spill.List
}

// keyedGate buckets incoming records by key. Group-by and self joins store
// a single branch; other joins store one branch per ordinal.
type keyedGate struct {
	stageBase
	splice   *element.Splice
	opts     spill.Options
	branches int
	stored   int
	keyPos   map[int][]int
	widths   []int
	buckets  map[string]*bucket
	order    []string
}

func (g *keyedGate) bind(context.Context) error {
	g.keyPos = make(map[int][]int, len(g.scopes))
	g.buckets = make(map[string]*bucket)
	g.order = nil

	switch {
	case g.splice.Kind() == element.KindGroupBy:
		g.branches, g.stored = 1, 1
	case g.splice.IsSelfJoin():
		if len(g.scopes) != 1 {
			return g.fail(fmt.Errorf("self join expects one input, got %d", len(g.scopes)))
		}
		g.branches, g.stored = g.splice.SelfJoins()+1, 1
	default:
		g.branches, g.stored = len(g.scopes), len(g.scopes)
	}

	g.widths = make([]int, g.branches)
	for ordinal, scope := range g.scopes {
		if g.stored > 1 && (ordinal < 0 || ordinal >= g.branches) {
			return g.fail(fmt.Errorf("branch ordinal %d out of range [0,%d)", ordinal, g.branches))
		}
		pos, err := scope.Fields.Positions(g.splice.Key(ordinal))
		if err != nil {
			return g.fail(fmt.Errorf("branch %d key: %w", ordinal, err))
		}
		g.keyPos[ordinal] = pos
		if g.stored > 1 {
			g.widths[ordinal] = len(scope.Fields)
			continue
		}
		for i := range g.widths {
			g.widths[i] = len(scope.Fields)
		}
	}
	return nil
}

func (g *keyedGate) branchOf(ordinal int) int {
	if g.stored == 1 {
		return 0
	}
	return ordinal
}

func (g *keyedGate) keyOf(ordinal int, t tuple.Tuple) (tuple.Tuple, error) {
	pos, ok := g.keyPos[ordinal]
	if !ok {
		return nil, g.fail(fmt.Errorf("record on unknown branch %d", ordinal))
	}
	return t.Select(pos), nil
}

func (g *keyedGate) add(ordinal int, t tuple.Tuple) error {
	key, err := g.keyOf(ordinal, t)
	if err != nil {
		return err
	}
	k := tuple.Key(key)
	b, ok := g.buckets[k]
	if !ok {
		b = &bucket{key: key, lists: make([]*spill.List, g.stored)}
		for i := range b.lists {
			b.lists[i] = spill.New(g.opts)
		}
		g.buckets[k] = b
		g.order = append(g.order, k)
	}
	if err := b.lists[g.branchOf(ordinal)].Add(t); err != nil {
		return g.fail(fmt.Errorf("buffering: %w", err))
	}
	return nil
}

// closure exposes a bucket to the joiner. The first branch is streamed and
// read once per key.
func (g *keyedGate) closure(b *bucket) *join.GroupClosure {
	if g.splice.IsSelfJoin() {
		return join.NewSelfJoinClosure(b.lists[0], g.widths[0], g.branches)
	}
	c := join.NewClosure().AddStream(b.lists[0].Iterator(), b.lists[0].Len(), g.widths[0])
	for i := 1; i < g.branches; i++ {
		c.AddCollection(b.lists[i], g.widths[i])
	}
	return c
}

// drain emits the values of every bucket in g.order, framing each key with
// group boundaries when framed is set.
func (g *keyedGate) drain(ctx context.Context, framed bool) error {
	keyFields := g.splice.Key(0)
	for _, k := range g.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := g.buckets[k]
		if framed {
			if err := g.emitOpen(ctx, tuple.Entry{Fields: keyFields, Tuple: b.key}); err != nil {
				return err
			}
		}

		var it tuple.Iterator
		if g.splice.Kind() == element.KindGroupBy {
			it = b.lists[0].Iterator()
		} else {
			it = g.splice.Joiner().Join(g.closure(b))
		}
		err := g.emitAll(ctx, it)
		if err != nil {
			return err
		}

		if framed {
			if err := g.emitClose(ctx, b.key); err != nil {
				return err
			}
		}
		if err := g.releaseBucket(k); err != nil {
			return err
		}
	}
	g.order = nil
	return nil
}

func (g *keyedGate) emitAll(ctx context.Context, it tuple.Iterator) error {
	defer it.Close()
	for it.Next() {
		if err := g.emit(ctx, it.Tuple()); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return g.fail(err)
	}
	return nil
}

func (g *keyedGate) releaseBucket(k string) error {
	b, ok := g.buckets[k]
	if !ok {
		return nil
	}
	delete(g.buckets, k)
	var errs []error
	for _, l := range b.lists {
		errs = append(errs, l.Close())
	}
	return errors.Join(errs...)
}

func (g *keyedGate) cleanup(context.Context) error {
	var errs []error
	for k := range g.buckets {
		errs = append(errs, g.releaseBucket(k))
	}
	return errors.Join(errs...)
}

// groupingGate is a group-by or co-group. Nothing is emitted before every
// input completed; keys are then emitted in ascending order.
type groupingGate struct {
	keyedGate
}

func (g *groupingGate) receive(_ context.Context, ordinal int, t tuple.Tuple) error {
	return g.add(ordinal, t)
}

func (g *groupingGate) complete(ctx context.Context, _ int) error {
	if !g.finished() {
		return nil
	}
	sort.SliceStable(g.order, func(i, j int) bool {
		return tuple.Compare(g.buckets[g.order[i]].key, g.buckets[g.order[j]].key) < 0
	})
	if err := g.drain(ctx, true); err != nil {
		return err
	}
	return g.completeNext(ctx)
}

// hashJoinGate joins streamed records of branch 0 against the accumulated
// branches as they arrive. A blocking gate holds every branch until all
// inputs completed and emits keys in first-arrival order.
type hashJoinGate struct {
	keyedGate
	blocking  bool
	completed map[int]bool
}

func (h *hashJoinGate) bind(ctx context.Context) error {
	h.completed = make(map[int]bool)
	return h.keyedGate.bind(ctx)
}

func (h *hashJoinGate) receive(ctx context.Context, ordinal int, t tuple.Tuple) error {
	if h.blocking || ordinal != 0 {
		return h.add(ordinal, t)
	}
	for i := 1; i < h.branches; i++ {
		if !h.completed[i] {
			return h.fail(fmt.Errorf("streamed record arrived before branch %d completed", i))
		}
	}

	key, err := h.keyOf(0, t)
	if err != nil {
		return err
	}
	c := join.NewClosure().AddStream(tuple.SliceIterator([]tuple.Tuple{t}), 1, h.widths[0])
	b := h.buckets[tuple.Key(key)]
	for i := 1; i < h.branches; i++ {
		if b == nil {
			c.AddCollection(join.SliceCollection(nil), h.widths[i])
			continue
		}
		c.AddCollection(b.lists[i], h.widths[i])
	}
	return h.emitAll(ctx, h.splice.Joiner().Join(c))
}

func (h *hashJoinGate) complete(ctx context.Context, ordinal int) error {
	h.completed[ordinal] = true
	if !h.finished() {
		return nil
	}
	if h.blocking {
		if err := h.drain(ctx, false); err != nil {
			return err
		}
	}
	return h.completeNext(ctx)
}

// mergeGate interleaves its inputs.
type mergeGate struct {
	stageBase
}

func (m *mergeGate) receive(ctx context.Context, _ int, t tuple.Tuple) error {
	return m.emit(ctx, t)
}

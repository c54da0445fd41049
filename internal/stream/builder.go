package stream

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/physical"
	"github.com/specialistvlad/gridflow/internal/spill"
)

// builder turns the elements of one node graph into linked stages.
type builder struct {
	g       *element.Graph
	handles Handles
	opts    Options
	spill   spill.Options

	stages  []Stage
	byElem  map[element.Element]Stage
	openers map[element.Element]*windowOpen
	closers map[element.Element]*windowClose
	traps   map[string]*trapHandler
	sources []*sourceStage
}

// Build creates the stream graph of node. Handles must hold a reader for
// every source connector and a writer for every sink connector.
func Build(ctx context.Context, node *physical.Node, h Handles, opts Options) (*Graph, error) {
	if opts.Counters == nil {
		opts.Counters = metrics.Nop()
	}
	logger := ctxlog.FromContext(ctx).With("node", node.ID.String())
	counters := opts.Counters

	b := &builder{
		g:       node.Graph,
		handles: h,
		opts:    opts,
		byElem:  make(map[element.Element]Stage),
		openers: make(map[element.Element]*windowOpen),
		closers: make(map[element.Element]*windowClose),
		traps:   make(map[string]*trapHandler),
	}
	b.spill = spill.Options{
		Threshold: opts.SpillThreshold,
		Dir:       opts.SpillDir,
		Listener: func(ev spill.Event) {
			counters.Increment(metrics.GroupSpill, metrics.Spills, 1)
			counters.Increment(metrics.GroupSpill, metrics.SpilledRecords, int64(ev.Count))
			counters.Increment(metrics.GroupSpill, metrics.SpillMillis, ev.Duration.Milliseconds())
			logger.Debug("💾 Spilled values to disk.", "count", ev.Count, "segment", ev.Ordinal, "duration", ev.Duration)
		},
	}

	order, err := node.Graph.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", node.ID, err)
	}
	for _, e := range order {
		if element.IsExtent(e) {
			continue
		}
		if err := b.addElement(e); err != nil {
			return nil, fmt.Errorf("node %s: %w", node.ID, err)
		}
	}
	for _, ed := range node.Graph.Edges() {
		if element.IsExtent(ed.From) || element.IsExtent(ed.To) {
			continue
		}
		if err := b.connect(ed); err != nil {
			return nil, fmt.Errorf("node %s: %w", node.ID, err)
		}
	}
	b.decideWraps()

	sort.SliceStable(b.sources, func(i, j int) bool {
		return b.sources[i].accumulated && !b.sources[j].accumulated
	})

	traps := make([]*trapHandler, 0, len(b.traps))
	for _, t := range b.traps {
		traps = append(traps, t)
	}
	sort.Slice(traps, func(i, j int) bool { return traps[i].branch < traps[j].branch })

	return &Graph{node: node, stages: b.stages, sources: b.sources, traps: traps, observer: opts.Observer}, nil
}

func (b *builder) add(s Stage) {
	core := s.core()
	core.counters = b.opts.Counters
	core.trap = b.trapFor(core.elem.Name())
	b.stages = append(b.stages, s)
}

func (b *builder) trapFor(branch string) *trapHandler {
	if t, ok := b.traps[branch]; ok {
		return t
	}
	t := &trapHandler{branch: branch, writer: b.handles.Traps[branch], counters: b.opts.Counters}
	b.traps[branch] = t
	return t
}

func (b *builder) addElement(e element.Element) error {
	var s Stage
	switch {
	case element.IsConnector(e):
		in, out := len(b.g.InnerIncoming(e)), len(b.g.InnerOutgoing(e))
		switch {
		case in == 0 && out == 0:
			return nil
		case in == 0:
			reader, ok := b.handles.Sources[e]
			if !ok {
				return fmt.Errorf("source %s: no reader bound", e)
			}
			src := &sourceStage{
				stageBase:   newBase(e, "source"),
				reader:      reader,
				width:       len(b.g.InnerOutgoing(e)[0].Scope.Fields),
				accumulated: b.g.HasAnnotation(e, element.AnnotationAccumulated),
			}
			b.sources = append(b.sources, src)
			s = src
		case out == 0:
			writer, ok := b.handles.Sinks[e]
			if !ok {
				return fmt.Errorf("sink %s: no writer bound", e)
			}
			s = &sinkStage{stageBase: newBase(e, "sink"), writer: writer}
		default:
			s = &passStage{stageBase: newBase(e, "connector"), writer: b.handles.Sinks[e]}
		}

	case element.IsEach(e):
		each, err := newEachStage(e.(*element.Operator))
		if err != nil {
			return err
		}
		s = each

	case element.IsEvery(e):
		return b.addEvery(e.(*element.Operator))

	case element.IsGrouping(e):
		s = &groupingGate{keyedGate: b.keyedGate(e.(*element.Splice), "grouping-gate")}

	case e.Kind() == element.KindHashJoin:
		sp := e.(*element.Splice)
		s = &hashJoinGate{
			keyedGate: b.keyedGate(sp, "hash-join-gate"),
			blocking:  sp.IsSelfJoin() || b.g.HasAnnotation(e, element.AnnotationBlocking),
		}

	case e.Kind() == element.KindMerge:
		s = &mergeGate{stageBase: newBase(e, "merge-gate")}

	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedElement, e)
	}

	b.byElem[e] = s
	b.add(s)
	return nil
}

func (b *builder) keyedGate(sp *element.Splice, role string) keyedGate {
	return keyedGate{stageBase: newBase(sp, role), splice: sp, opts: b.spill}
}

// addEvery adds the reducer of op, framed by a window opener when it follows
// a grouping gate and a window closer when records leave the chain.
func (b *builder) addEvery(op *element.Operator) error {
	in := b.g.InnerIncoming(op)
	if len(in) != 1 {
		return fmt.Errorf("%s: expected one incoming edge, got %d", op, len(in))
	}

	var opener *windowOpen
	if element.IsGrouping(in[0].From) {
		opener = &windowOpen{stageBase: newBase(op, "window-open")}
		b.openers[op] = opener
		b.add(opener)
	}

	s, err := newReducerStage(op, b.spill)
	if err != nil {
		return err
	}
	b.byElem[op] = s
	b.add(s)
	if opener != nil {
		b.link(opener, s, in[0].Scope)
	}

	for _, ed := range b.g.InnerOutgoing(op) {
		if element.IsEvery(ed.To) {
			continue
		}
		closer := &windowClose{stageBase: newBase(op, "window-close")}
		b.closers[op] = closer
		b.add(closer)
		b.link(s, closer, element.NewScope(op.Name(), 0))
		break
	}
	return nil
}

func (b *builder) connect(ed element.Edge) error {
	from, ok := b.byElem[ed.From]
	if !ok {
		return fmt.Errorf("no stage for %s", ed.From)
	}
	to, ok := b.byElem[ed.To]
	if !ok {
		return fmt.Errorf("no stage for %s", ed.To)
	}
	if closer, ok := b.closers[ed.From]; ok && !element.IsEvery(ed.To) {
		from = closer
	}
	if opener, ok := b.openers[ed.To]; ok {
		to = opener
	}
	b.link(from, to, ed.Scope)
	return nil
}

func (b *builder) link(from, to Stage, scope *element.Scope) {
	fc, tc := from.core(), to.core()
	fc.next = append(fc.next, link{to: to, ordinal: scope.Ordinal})
	tc.scopes[scope.Ordinal] = scope
	tc.inputs++
}

func (b *builder) decideWraps() {
	for _, s := range b.stages {
		c := s.core()
		w := WrapNone
		if len(c.next) > 1 {
			w |= WrapFork
		}
		for _, l := range c.next {
			if l.to.core().inputs > 1 {
				w |= WrapOrdinal
			}
		}
		if _, ok := s.(*windowOpen); ok {
			w |= WrapWindowOpen
		}
		c.wrap = w
	}
}

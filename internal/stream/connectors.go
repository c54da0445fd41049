package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// sourceStage pulls records from a reader until io.EOF.
type sourceStage struct {
	stageBase
	reader      tap.Reader
	width       int
	accumulated bool
}

func (s *sourceStage) complete(context.Context, int) error { return nil }

// run drains the reader and returns the number of records read.
func (s *sourceStage) run(ctx context.Context) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		t, err := s.reader.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, s.fail(fmt.Errorf("reading: %w", err))
		}
		if len(t) != s.width {
			return n, s.fail(fmt.Errorf("record %s has %d values, expected %d", t, len(t), s.width))
		}
		n++
		s.counters.Increment(metrics.GroupStage, metrics.RecordsRead, 1)
		if err := s.emit(ctx, t); err != nil {
			return n, err
		}
	}
	return n, s.completeNext(ctx)
}

// sinkStage writes the sink fields of every record and flushes once every
// input completed.
type sinkStage struct {
	stageBase
	writer tap.Writer
	pos    []int
}

func (s *sinkStage) bind(context.Context) error {
	var selector tuple.Fields
	if t, ok := s.elem.(*element.Tap); ok {
		selector = t.Tap().SinkFields()
	}
	pos, err := s.inFields().Positions(selector)
	if err != nil {
		return s.fail(fmt.Errorf("sink fields: %w", err))
	}
	s.pos = pos
	return nil
}

func (s *sinkStage) receive(ctx context.Context, _ int, t tuple.Tuple) error {
	if err := s.writer.Write(ctx, t.Select(s.pos)); err != nil {
		return s.fail(fmt.Errorf("writing: %w", err))
	}
	s.counters.Increment(metrics.GroupStage, metrics.RecordsWritten, 1)
	return nil
}

func (s *sinkStage) complete(context.Context, int) error {
	if !s.finished() {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return s.fail(fmt.Errorf("flushing: %w", err))
	}
	return nil
}

// passStage is a connector in the middle of a node graph. Records are
// written to the connector, when one is bound, and passed on.
type passStage struct {
	stageBase
	writer tap.Writer
}

func (s *passStage) receive(ctx context.Context, _ int, t tuple.Tuple) error {
	if s.writer != nil {
		if err := s.writer.Write(ctx, t); err != nil {
			return s.fail(fmt.Errorf("writing: %w", err))
		}
		s.counters.Increment(metrics.GroupStage, metrics.RecordsWritten, 1)
	}
	return s.emit(ctx, t)
}

func (s *passStage) complete(ctx context.Context, _ int) error {
	if !s.finished() {
		return nil
	}
	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			return s.fail(fmt.Errorf("flushing: %w", err))
		}
	}
	return s.completeNext(ctx)
}

// Package spill provides a memory-bounded tuple collection that overflows to
// compressed segment files once an element-count threshold is exceeded.
package spill

import (
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// DefaultThreshold is the number of in-memory values a List holds before spilling.
const DefaultThreshold = 10000

// Event describes one spill: how many values moved to disk, the ordinal of
// the segment within its list and how long the write took.
type Event struct {
	Count    int
	Ordinal  int
	Duration time.Duration
}

// Listener observes spills. It must not retain the List.
type Listener func(Event)

// Options configures a List.
type Options struct {
	// Threshold is the in-memory element count; exceeding it spills. Zero
	// means DefaultThreshold.
	Threshold int
	// Dir holds segment files. Empty means os.TempDir.
	Dir      string
	Listener Listener
}

// List is an append-only collection of tuples. Iteration returns values in
// insertion order regardless of how many were spilled.
//
// A List is owned by a single goroutine.
type List struct {
	opts     Options
	mem      []tuple.Tuple
	segments []*segment
	size     int
	closed   bool
}

// New returns an empty List.
func New(opts Options) *List {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	return &List{opts: opts}
}

// ErrClosed is returned when adding to a closed List.
var ErrClosed = errors.New("spill list is closed")

// Add appends t, spilling the in-memory buffer when it grows past the threshold.
func (l *List) Add(t tuple.Tuple) error {
	if l.closed {
		return ErrClosed
	}
	l.mem = append(l.mem, t)
	l.size++
	if len(l.mem) > l.opts.Threshold {
		return l.spill()
	}
	return nil
}

// Len returns the number of values held.
func (l *List) Len() int { return l.size }

// Spills returns the number of segments written so far.
func (l *List) Spills() int { return len(l.segments) }

func (l *List) spill() error {
	start := time.Now()
	ordinal := len(l.segments)
	seg, err := writeSegment(l.opts.Dir, l.mem)
	if err != nil {
		return fmt.Errorf("failed to spill %d values: %w", len(l.mem), err)
	}
	l.segments = append(l.segments, seg)
	count := len(l.mem)
	l.mem = nil

	if l.opts.Listener != nil {
		l.opts.Listener(Event{Count: count, Ordinal: ordinal, Duration: time.Since(start)})
	}
	return nil
}

// Iterator returns the values added so far: spilled segments first, in
// order, then the in-memory tail. Several iterators may be open at once.
func (l *List) Iterator() tuple.Iterator {
	return &listIterator{
		segments: append([]*segment(nil), l.segments...),
		mem:      l.mem[:len(l.mem):len(l.mem)],
		memPos:   -1,
	}
}

// Clear drops every value and removes the segment files.
func (l *List) Clear() error {
	var errs []error
	for _, seg := range l.segments {
		if err := seg.remove(); err != nil {
			errs = append(errs, err)
		}
	}
	l.segments = nil
	l.mem = nil
	l.size = 0
	return errors.Join(errs...)
}

// Close clears the list and rejects further additions.
func (l *List) Close() error {
	l.closed = true
	return l.Clear()
}

type listIterator struct {
	segments []*segment
	current  *segmentReader

	mem    []tuple.Tuple
	memPos int

	value tuple.Tuple
	err   error
	done  bool
}

func (it *listIterator) Next() bool {
	if it.done {
		return false
	}
	for it.current != nil || len(it.segments) > 0 {
		if it.current == nil {
			r, err := it.segments[0].open()
			if err != nil {
				it.fail(err)
				return false
			}
			it.current = r
			it.segments = it.segments[1:]
		}
		t, ok, err := it.current.next()
		if err != nil {
			it.fail(err)
			return false
		}
		if ok {
			it.value = t
			return true
		}
		if err := it.current.close(); err != nil {
			it.fail(err)
			return false
		}
		it.current = nil
	}

	if it.memPos+1 < len(it.mem) {
		it.memPos++
		it.value = it.mem[it.memPos]
		return true
	}
	it.done = true
	return false
}

func (it *listIterator) fail(err error) {
	it.err = err
	it.done = true
	it.Close()
}

func (it *listIterator) Tuple() tuple.Tuple { return it.value }
func (it *listIterator) Err() error         { return it.err }

func (it *listIterator) Close() error {
	it.done = true
	if it.current != nil {
		err := it.current.close()
		it.current = nil
		return err
	}
	return nil
}

// Package join implements per-key closures over several branches and the
// joiners that turn a closure into the joined tuple stream.
package join

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// ErrStreamConsumed is returned when a streamed branch is iterated twice.
var ErrStreamConsumed = errors.New("streamed branch already consumed")

// Closure gives uniform access to the values of every branch for one key.
type Closure interface {
	// Size is the number of logical branches.
	Size() int
	// Iterator returns the values of a branch. Streamed branches can be
	// iterated once; collection branches any number of times.
	Iterator(pos int) (tuple.Iterator, error)
	// IsEmpty reports whether a branch holds no values for the key.
	IsEmpty(pos int) bool
	// Width is the number of fields of a branch, used for empty-valued rows.
	Width(pos int) int
}

// Collection is a re-iterable branch buffer.
type Collection interface {
	Len() int
	Iterator() tuple.Iterator
}

type branch struct {
	width     int
	stream    tuple.Iterator
	streamLen int
	coll      Collection
	taken     bool
}

// GroupClosure is the Closure used by the grouping and hash-join gates.
type GroupClosure struct {
	branches []*branch
	// consumed counts how many times a streamed branch was handed out.
	consumed int
}

// NewClosure returns an empty closure; branches are added in ordinal order.
func NewClosure() *GroupClosure {
	return &GroupClosure{}
}

// AddStream adds a one-shot branch holding length values.
func (c *GroupClosure) AddStream(it tuple.Iterator, length, width int) *GroupClosure {
	c.branches = append(c.branches, &branch{width: width, stream: it, streamLen: length})
	return c
}

// AddCollection adds a re-iterable branch.
func (c *GroupClosure) AddCollection(coll Collection, width int) *GroupClosure {
	c.branches = append(c.branches, &branch{width: width, coll: coll})
	return c
}

// NewSelfJoinClosure returns a closure whose size positions all read the
// same collection.
func NewSelfJoinClosure(coll Collection, width, size int) *GroupClosure {
	c := NewClosure()
	for i := 0; i < size; i++ {
		c.AddCollection(coll, width)
	}
	return c
}

func (c *GroupClosure) Size() int { return len(c.branches) }

func (c *GroupClosure) Width(pos int) int { return c.branches[pos].width }

func (c *GroupClosure) IsEmpty(pos int) bool {
	b := c.branches[pos]
	if b.coll != nil {
		return b.coll.Len() == 0
	}
	return b.streamLen == 0
}

func (c *GroupClosure) Iterator(pos int) (tuple.Iterator, error) {
	if pos < 0 || pos >= len(c.branches) {
		return nil, fmt.Errorf("branch %d out of range [0,%d)", pos, len(c.branches))
	}
	b := c.branches[pos]
	if b.coll != nil {
		return b.coll.Iterator(), nil
	}
	if b.taken {
		return nil, fmt.Errorf("branch %d: %w", pos, ErrStreamConsumed)
	}
	b.taken = true
	c.consumed++
	return b.stream, nil
}

// StreamsConsumed returns how many streamed branches were handed out.
func (c *GroupClosure) StreamsConsumed() int {
	return c.consumed
}

// SliceCollection is a Collection over an in-memory slice.
type SliceCollection []tuple.Tuple

func (s SliceCollection) Len() int                 { return len(s) }
func (s SliceCollection) Iterator() tuple.Iterator { return tuple.SliceIterator(s) }

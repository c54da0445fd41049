package join

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Joiner turns a closure into the joined tuples of one key. The output holds
// the fields of branch 0, then branch 1, and so on.
type Joiner interface {
	Name() string
	Join(c Closure) tuple.Iterator
}

type policy struct {
	name  string
	inner func(size int) ([]bool, error)
}

func (p *policy) Name() string { return p.name }

func (p *policy) Join(c Closure) tuple.Iterator {
	inner, err := p.inner(c.Size())
	if err != nil {
		return &joinIterator{err: err, done: true}
	}
	return newJoinIterator(c, inner)
}

func repeat(v bool, size int) []bool {
	out := make([]bool, size)
	for i := range out {
		out[i] = v
	}
	return out
}

// Inner keeps keys present in every branch.
func Inner() Joiner {
	return &policy{name: "inner", inner: func(size int) ([]bool, error) { return repeat(true, size), nil }}
}

// Outer keeps every key, with an empty-valued row for each missing branch.
func Outer() Joiner {
	return &policy{name: "outer", inner: func(size int) ([]bool, error) { return repeat(false, size), nil }}
}

// Left requires branch 0 and makes every other branch optional.
func Left() Joiner {
	return &policy{name: "left", inner: func(size int) ([]bool, error) {
		v := repeat(false, size)
		if size > 0 {
			v[0] = true
		}
		return v, nil
	}}
}

// Right makes branch 0 optional and requires every other branch.
func Right() Joiner {
	return &policy{name: "right", inner: func(size int) ([]bool, error) {
		v := repeat(true, size)
		if size > 0 {
			v[0] = false
		}
		return v, nil
	}}
}

// Mixed selects inner (true) or outer (false) per branch.
func Mixed(inner ...bool) Joiner {
	vector := append([]bool(nil), inner...)
	names := make([]string, len(vector))
	for i, v := range vector {
		names[i] = "outer"
		if v {
			names[i] = "inner"
		}
	}
	return &policy{
		name: "mixed[" + strings.Join(names, ",") + "]",
		inner: func(size int) ([]bool, error) {
			if size != len(vector) {
				return nil, fmt.Errorf("mixed join declares %d branches, closure has %d", len(vector), size)
			}
			return vector, nil
		},
	}
}

// Parse maps a joiner name onto a Joiner. The inner vector is used by "mixed".
func Parse(name string, inner []bool) (Joiner, error) {
	switch name {
	case "", "inner":
		return Inner(), nil
	case "outer":
		return Outer(), nil
	case "left":
		return Left(), nil
	case "right":
		return Right(), nil
	case "mixed":
		if len(inner) == 0 {
			return nil, fmt.Errorf("mixed joiner requires an inner vector")
		}
		return Mixed(inner...), nil
	default:
		return nil, fmt.Errorf("unknown joiner %q", name)
	}
}

// joinIterator walks the cross product of the branches like an odometer.
// Branch 0 is opened once; later branches are reopened every time a lower
// position advances.
type joinIterator struct {
	c     Closure
	inner []bool

	iters   []tuple.Iterator
	current []tuple.Tuple
	nulled  []bool

	started bool
	done    bool
	err     error
}

func newJoinIterator(c Closure, inner []bool) *joinIterator {
	n := c.Size()
	return &joinIterator{
		c:       c,
		inner:   inner,
		iters:   make([]tuple.Iterator, n),
		current: make([]tuple.Tuple, n),
		nulled:  make([]bool, n),
	}
}

// open positions branch pos on its first value and reports whether one exists.
func (j *joinIterator) open(pos int) bool {
	if it := j.iters[pos]; it != nil {
		it.Close()
		j.iters[pos] = nil
	}
	j.nulled[pos] = false

	if j.c.IsEmpty(pos) {
		if j.inner[pos] {
			return false
		}
		j.nulled[pos] = true
		j.current[pos] = tuple.Size(j.c.Width(pos))
		return true
	}

	it, err := j.c.Iterator(pos)
	if err != nil {
		j.err = err
		return false
	}
	j.iters[pos] = it
	return j.advance(pos)
}

// advance moves branch pos to its next value.
func (j *joinIterator) advance(pos int) bool {
	if j.nulled[pos] {
		return false
	}
	it := j.iters[pos]
	if it.Next() {
		j.current[pos] = it.Tuple()
		return true
	}
	if err := it.Err(); err != nil {
		j.err = err
	}
	return false
}

func (j *joinIterator) Next() bool {
	if j.done {
		return false
	}
	if len(j.iters) == 0 {
		j.finish()
		return false
	}

	if !j.started {
		j.started = true
		for pos := range j.iters {
			if !j.open(pos) {
				j.finish()
				return false
			}
		}
		return true
	}

	for pos := len(j.iters) - 1; pos >= 0; pos-- {
		if j.advance(pos) {
			for q := pos + 1; q < len(j.iters); q++ {
				if !j.open(q) {
					j.finish()
					return false
				}
			}
			return true
		}
		if j.err != nil {
			break
		}
	}
	j.finish()
	return false
}

func (j *joinIterator) finish() {
	j.done = true
	j.Close()
}

func (j *joinIterator) Tuple() tuple.Tuple {
	var out tuple.Tuple
	for _, t := range j.current {
		out = append(out, t...)
	}
	return out
}

func (j *joinIterator) Err() error { return j.err }

func (j *joinIterator) Close() error {
	for i, it := range j.iters {
		if it != nil {
			it.Close()
			j.iters[i] = nil
		}
	}
	return nil
}

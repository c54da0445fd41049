package tuple

// Iterator walks a sequence of tuples in the style of bufio.Scanner:
//
//	for it.Next() {
//		t := it.Tuple()
//	}
//	if err := it.Err(); err != nil { ... }
//
// Close releases any resources held by the iterator and is safe to call twice.
type Iterator interface {
	Next() bool
	Tuple() Tuple
	Err() error
	Close() error
}

type sliceIterator struct {
	values []Tuple
	pos    int
}

// SliceIterator returns an Iterator over an in-memory slice.
func SliceIterator(values []Tuple) Iterator {
	return &sliceIterator{values: values, pos: -1}
}

func (s *sliceIterator) Next() bool {
	if s.pos+1 >= len(s.values) {
		s.pos = len(s.values)
		return false
	}
	s.pos++
	return true
}

func (s *sliceIterator) Tuple() Tuple {
	if s.pos < 0 || s.pos >= len(s.values) {
		return nil
	}
	return s.values[s.pos]
}

func (s *sliceIterator) Err() error   { return nil }
func (s *sliceIterator) Close() error { return nil }

// Collect drains it into a slice and closes it.
func Collect(it Iterator) ([]Tuple, error) {
	defer it.Close()
	var out []Tuple
	for it.Next() {
		out = append(out, it.Tuple())
	}
	return out, it.Err()
}

// EntryIterator adapts an Iterator into Entries with fixed fields.
type EntryIterator struct {
	Fields Fields
	It     Iterator
}

// Next advances the underlying iterator.
func (e *EntryIterator) Next() bool { return e.It.Next() }

// Entry returns the current value as an Entry.
func (e *EntryIterator) Entry() Entry { return Entry{Fields: e.Fields, Tuple: e.It.Tuple()} }

// Err returns the underlying iterator error.
func (e *EntryIterator) Err() error { return e.It.Err() }

// Package tuple holds the record model shared by the planner and the
// streaming runtime: field lists, positional tuples, field-addressed entries,
// the value comparator used for grouping keys, and record iterators.
package tuple

import (
	"fmt"
	"strings"
)

// Tuple is a positional record. Values are expected in canonical form, see Canonical.
type Tuple []any

// Size returns a Tuple of n nil values.
func Size(n int) Tuple {
	return make(Tuple, n)
}

// Of builds a Tuple from the given values, canonicalizing each one.
func Of(values ...any) Tuple {
	t := make(Tuple, len(values))
	for i, v := range values {
		t[i] = Canonical(v)
	}
	return t
}

// Select returns the values at the given positions.
func (t Tuple) Select(pos []int) Tuple {
	out := make(Tuple, len(pos))
	for i, p := range pos {
		out[i] = t[p]
	}
	return out
}

// Append returns a new Tuple holding t followed by other.
func (t Tuple) Append(other Tuple) Tuple {
	out := make(Tuple, 0, len(t)+len(other))
	out = append(out, t...)
	return append(out, other...)
}

// Copy returns a shallow copy of t.
func (t Tuple) Copy() Tuple {
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		if v == nil {
			parts[i] = "null"
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Key returns a string usable as a map key that is equal for tuples that
// compare equal.
func Key(t Tuple) string {
	var sb strings.Builder
	for i, v := range t {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		switch val := v.(type) {
		case nil:
			sb.WriteString("n:")
		case bool:
			fmt.Fprintf(&sb, "b:%t", val)
		case int64:
			fmt.Fprintf(&sb, "d:%d", val)
		case float64:
			if val == float64(int64(val)) {
				fmt.Fprintf(&sb, "d:%d", int64(val))
			} else {
				fmt.Fprintf(&sb, "f:%v", val)
			}
		case string:
			sb.WriteString("s:")
			sb.WriteString(val)
		default:
			fmt.Fprintf(&sb, "x:%v", val)
		}
	}
	return sb.String()
}

// Entry pairs a Tuple with the Fields describing it.
type Entry struct {
	Fields Fields
	Tuple  Tuple
}

// NewEntry returns an Entry for the given fields and values.
func NewEntry(fields Fields, values ...any) Entry {
	return Entry{Fields: fields, Tuple: Of(values...)}
}

// Get returns the value of the named field.
func (e Entry) Get(name string) (any, bool) {
	idx := e.Fields.Index(name)
	if idx < 0 || idx >= len(e.Tuple) {
		return nil, false
	}
	return e.Tuple[idx], true
}

// Select returns a new Entry holding only the selected fields. An empty
// selector returns the entry unchanged.
func (e Entry) Select(selector Fields) (Entry, error) {
	if len(selector) == 0 {
		return e, nil
	}
	pos, err := e.Fields.Positions(selector)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Fields: selector, Tuple: e.Tuple.Select(pos)}, nil
}

func (e Entry) String() string {
	return e.Fields.String() + e.Tuple.String()
}

package tuple

import (
	"fmt"
	"strings"
)

// Fields is an ordered list of field names describing the positions of a Tuple.
type Fields []string

// NewFields returns a Fields value for the given names.
func NewFields(names ...string) Fields {
	out := make(Fields, len(names))
	copy(out, names)
	return out
}

// Len returns the number of fields.
func (f Fields) Len() int {
	return len(f)
}

// Index returns the position of name or -1.
func (f Fields) Index(name string) int {
	for i, n := range f {
		if n == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is one of the fields.
func (f Fields) Contains(name string) bool {
	return f.Index(name) >= 0
}

// Append returns a new Fields holding f followed by other.
func (f Fields) Append(other Fields) Fields {
	out := make(Fields, 0, len(f)+len(other))
	out = append(out, f...)
	return append(out, other...)
}

// Without returns f minus the given fields, keeping order.
func (f Fields) Without(other Fields) Fields {
	out := make(Fields, 0, len(f))
	for _, n := range f {
		if !other.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// Positions resolves the positions of selector inside f. An empty selector
// selects every field.
func (f Fields) Positions(selector Fields) ([]int, error) {
	if len(selector) == 0 {
		pos := make([]int, len(f))
		for i := range f {
			pos[i] = i
		}
		return pos, nil
	}

	pos := make([]int, len(selector))
	for i, name := range selector {
		idx := f.Index(name)
		if idx < 0 {
			return nil, fmt.Errorf("field %q not found in %s", name, f)
		}
		pos[i] = idx
	}
	return pos, nil
}

// HasDuplicates reports whether any name appears twice.
func (f Fields) HasDuplicates() bool {
	seen := make(map[string]struct{}, len(f))
	for _, n := range f {
		if _, ok := seen[n]; ok {
			return true
		}
		seen[n] = struct{}{}
	}
	return false
}

// Equal reports whether both field lists hold the same names in the same order.
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

func (f Fields) String() string {
	return "[" + strings.Join(f, ", ") + "]"
}

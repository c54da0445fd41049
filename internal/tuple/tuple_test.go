package tuple

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	testCases := []struct {
		name     string
		in       any
		expected any
	}{
		{name: "int widens", in: 3, expected: int64(3)},
		{name: "uint8 widens", in: uint8(7), expected: int64(7)},
		{name: "float32 widens", in: float32(1.5), expected: float64(1.5)},
		{name: "bytes become string", in: []byte("ab"), expected: "ab"},
		{name: "nil stays nil", in: nil, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Canonical(tc.in))
		})
	}
}

func TestCompare(t *testing.T) {
	values := []Tuple{
		Of("b"),
		Of(int64(2)),
		Of(nil),
		Of(1.5),
		Of(true),
		Of("a"),
		Of(1),
	}
	sort.SliceStable(values, func(i, j int) bool { return Compare(values[i], values[j]) < 0 })

	expected := []Tuple{Of(nil), Of(true), Of(1), Of(1.5), Of(int64(2)), Of("a"), Of("b")}
	if diff := cmp.Diff(expected, values); diff != "" {
		t.Fatalf("unexpected ordering (-want +got):\n%s", diff)
	}

	assert.Equal(t, 0, Compare(Of(2), Of(2.0)))
	assert.Equal(t, -1, Compare(Of(1), Of(1, "x")))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key(Of(2)), Key(Of(2.0)))
	assert.NotEqual(t, Key(Of("2")), Key(Of(2)))
	assert.NotEqual(t, Key(Of("a", "b")), Key(Of("ab")))
}

func TestEntrySelect(t *testing.T) {
	e := NewEntry(NewFields("a", "b", "c"), 1, "x", true)

	sel, err := e.Select(NewFields("c", "a"))
	require.NoError(t, err)
	assert.Equal(t, NewFields("c", "a"), sel.Fields)
	assert.Equal(t, Of(true, 1), sel.Tuple)

	_, err = e.Select(NewFields("missing"))
	assert.ErrorContains(t, err, `field "missing" not found`)

	all, err := e.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, e, all)
}

func TestFields(t *testing.T) {
	f := NewFields("a", "b", "c")
	assert.Equal(t, NewFields("a", "c"), f.Without(NewFields("b")))
	assert.Equal(t, NewFields("a", "b", "c", "d"), f.Append(NewFields("d")))
	assert.True(t, NewFields("a", "a").HasDuplicates())
	assert.False(t, f.HasDuplicates())
	assert.Equal(t, "[a, b, c]", f.String())
}

func TestSliceIterator(t *testing.T) {
	values, err := Collect(SliceIterator([]Tuple{Of(1), Of(2)}))
	require.NoError(t, err)
	assert.Equal(t, []Tuple{Of(1), Of(2)}, values)

	empty := SliceIterator(nil)
	assert.False(t, empty.Next())
	assert.Nil(t, empty.Tuple())
}

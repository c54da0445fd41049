package spill

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/gridflow/internal/tuple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values() []tuple.Tuple {
	return []tuple.Tuple{
		tuple.Of(1, "a", 1.5, true),
		tuple.Of(2, nil, -0.25, false),
		tuple.Of(int64(1)<<40, "", 0.0, nil),
		tuple.Of(-7, "long value with spaces", 3.0, true),
		tuple.Of(5, "e", 2.5, false),
	}
}

func fill(t *testing.T, l *List, in []tuple.Tuple) {
	t.Helper()
	for _, v := range in {
		require.NoError(t, l.Add(v))
	}
}

func TestSpillTransparency(t *testing.T) {
	dir := t.TempDir()
	var events []Event
	spilling := New(Options{Threshold: 1, Dir: dir, Listener: func(e Event) { events = append(events, e) }})
	defer spilling.Close()
	inMemory := New(Options{Threshold: 1_000_000, Dir: dir})
	defer inMemory.Close()

	fill(t, spilling, values())
	fill(t, inMemory, values())

	a, err := tuple.Collect(spilling.Iterator())
	require.NoError(t, err)
	b, err := tuple.Collect(inMemory.Iterator())
	require.NoError(t, err)

	assert.Equal(t, values(), a)
	assert.Equal(t, b, a)
	assert.Equal(t, 5, spilling.Len())
	assert.Equal(t, 0, inMemory.Spills())

	require.Len(t, events, 2, "spills happen on the 2nd and 4th add")
	assert.Equal(t, 2, events[0].Count)
	assert.Equal(t, 0, events[0].Ordinal)
	assert.Equal(t, 1, events[1].Ordinal)
}

func TestConcurrentIterators(t *testing.T) {
	l := New(Options{Threshold: 2, Dir: t.TempDir()})
	defer l.Close()
	fill(t, l, values())

	first := l.Iterator()
	second := l.Iterator()
	require.True(t, first.Next())
	require.True(t, second.Next())
	require.True(t, second.Next())
	assert.Equal(t, values()[0], first.Tuple())
	assert.Equal(t, values()[1], second.Tuple())
	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
}

func TestCloseRemovesSegments(t *testing.T) {
	dir := t.TempDir()
	l := New(Options{Threshold: 1, Dir: dir})
	fill(t, l, values())

	files, err := filepath.Glob(filepath.Join(dir, "gridflow-spill-*"))
	require.NoError(t, err)
	assert.Len(t, files, l.Spills())

	require.NoError(t, l.Close())
	files, err = filepath.Glob(filepath.Join(dir, "gridflow-spill-*"))
	require.NoError(t, err)
	assert.Empty(t, files)

	assert.ErrorIs(t, l.Add(tuple.Of(1)), ErrClosed)
}

func TestSpillFailurePropagates(t *testing.T) {
	l := New(Options{Threshold: 1, Dir: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, l.Add(tuple.Of(1)))
	err := l.Add(tuple.Of(2))
	assert.ErrorContains(t, err, "failed to spill")
}

func TestMissingSegmentSurfacesOnRead(t *testing.T) {
	l := New(Options{Threshold: 1, Dir: t.TempDir()})
	fill(t, l, values()[:2])
	require.NoError(t, os.Remove(l.segments[0].path))

	_, err := tuple.Collect(l.Iterator())
	assert.ErrorContains(t, err, "opening segment")
}

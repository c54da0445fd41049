package assert

import (
	"testing"

	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/testutil"
	"github.com/specialistvlad/gridflow/internal/tuple"
	"github.com/stretchr/testify/require"
)

func TestNotNull(t *testing.T) {
	r, conv := testutil.NewRegistry(t, &Module{})
	check := testutil.NewOperation(t, r, conv, "not_null", "").(operation.ValueAssertion)
	ctx := testutil.Context(t)
	fields := tuple.NewFields("a", "b")

	require.NoError(t, check.Check(ctx, tuple.NewEntry(fields, "x", int64(0))))

	err := check.Check(ctx, tuple.NewEntry(fields, "x", nil))
	require.ErrorIs(t, err, ErrNull)
	require.ErrorContains(t, err, "in field b")
}

func TestGroupSizeMax(t *testing.T) {
	r, conv := testutil.NewRegistry(t, &Module{})
	check := testutil.NewOperation(t, r, conv, "group_size_max", `max = 2`).(operation.GroupAssertion)
	ctx := testutil.Context(t)

	run := func(size int) error {
		state, err := check.Start(ctx, tuple.NewEntry(tuple.NewFields("k"), "key"))
		require.NoError(t, err)
		for range size {
			state, err = check.Aggregate(ctx, state, tuple.Entry{})
			require.NoError(t, err)
		}
		return check.Complete(ctx, state)
	}

	require.NoError(t, run(0))
	require.NoError(t, run(2))
	require.ErrorContains(t, run(3), "holds 3 values, more than 2")

	_, err := r.NewOperation(ctx, conv, "group_size_max", testutil.Params(t, `max = -1`))
	require.ErrorContains(t, err, "must not be negative")
	_, err = r.NewOperation(ctx, conv, "group_size_max", nil)
	require.ErrorContains(t, err, `missing required argument "max"`)
}

package aggregate

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// CountInput defines the arguments of count.
type CountInput struct {
	Field     string `flow:"field"`
	SkipNulls bool   `flow:"skip_nulls"`
}

// Count counts the values of a group.
type Count struct {
	declared  tuple.Fields
	skipNulls bool
}

// NewCount is the on_create handler of count.
func NewCount(_ context.Context, in *CountInput) (*Count, error) {
	return &Count{declared: tuple.NewFields(in.Field), skipNulls: in.SkipNulls}, nil
}

func (c *Count) Name() string           { return "count" }
func (c *Count) Declared() tuple.Fields { return c.declared }

func (c *Count) Start(context.Context, tuple.Entry) (any, error) { return int64(0), nil }

func (c *Count) Aggregate(_ context.Context, state any, args tuple.Entry) (any, error) {
	if c.skipNulls && (len(args.Tuple) == 0 || args.Tuple[0] == nil) {
		return state, nil
	}
	return state.(int64) + 1, nil
}

func (c *Count) Complete(_ context.Context, state any) (tuple.Tuple, error) {
	return tuple.Of(state), nil
}

// SumInput defines the arguments of sum.
type SumInput struct {
	Field string `flow:"field"`
}

// Sum adds the first argument of every value. Nulls are skipped; the sum of
// an all-null group is null.
type Sum struct {
	declared tuple.Fields
}

type sumState struct {
	seen    bool
	isFloat bool
	i       int64
	f       float64
}

// NewSum is the on_create handler of sum.
func NewSum(_ context.Context, in *SumInput) (*Sum, error) {
	return &Sum{declared: tuple.NewFields(in.Field)}, nil
}

func (s *Sum) Name() string           { return "sum" }
func (s *Sum) Declared() tuple.Fields { return s.declared }

func (s *Sum) Start(context.Context, tuple.Entry) (any, error) { return &sumState{}, nil }

func (s *Sum) Aggregate(_ context.Context, state any, args tuple.Entry) (any, error) {
	st := state.(*sumState)
	if len(args.Tuple) == 0 {
		return st, nil
	}
	switch v := tuple.Canonical(args.Tuple[0]).(type) {
	case nil:
		return st, nil
	case int64:
		st.i += v
	case float64:
		st.isFloat = true
		st.f += v
	default:
		return nil, fmt.Errorf("cannot sum non-numeric value %v (%T)", args.Tuple[0], args.Tuple[0])
	}
	st.seen = true
	return st, nil
}

func (s *Sum) Complete(_ context.Context, state any) (tuple.Tuple, error) {
	st := state.(*sumState)
	switch {
	case !st.seen:
		return tuple.Of(nil), nil
	case st.isFloat:
		return tuple.Of(st.f + float64(st.i)), nil
	default:
		return tuple.Of(st.i), nil
	}
}

// FirstInput defines the arguments of first.
type FirstInput struct {
	Fields []string `flow:"fields"`
}

// First keeps the arguments of the first value of a group.
type First struct {
	declared tuple.Fields
}

func declaredFields(names []string) (tuple.Fields, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one field is required")
	}
	fields := tuple.NewFields(names...)
	if fields.HasDuplicates() {
		return nil, fmt.Errorf("fields %s contain duplicates", fields)
	}
	return fields, nil
}

// NewFirst is the on_create handler of first.
func NewFirst(_ context.Context, in *FirstInput) (*First, error) {
	fields, err := declaredFields(in.Fields)
	if err != nil {
		return nil, err
	}
	return &First{declared: fields}, nil
}

func (f *First) Name() string           { return "first" }
func (f *First) Declared() tuple.Fields { return f.declared }

func (f *First) Start(context.Context, tuple.Entry) (any, error) { return tuple.Tuple(nil), nil }

func (f *First) Aggregate(_ context.Context, state any, args tuple.Entry) (any, error) {
	if state.(tuple.Tuple) != nil {
		return state, nil
	}
	if len(args.Tuple) != len(f.declared) {
		return nil, fmt.Errorf("first declares %d fields but received %d arguments", len(f.declared), len(args.Tuple))
	}
	return args.Tuple.Copy(), nil
}

func (f *First) Complete(_ context.Context, state any) (tuple.Tuple, error) {
	if first := state.(tuple.Tuple); first != nil {
		return first, nil
	}
	return tuple.Size(len(f.declared)), nil
}

// FirstNInput defines the arguments of first_n.
type FirstNInput struct {
	N      int64    `flow:"n"`
	Fields []string `flow:"fields"`
}

// FirstN emits the arguments of the first N values of a group and skips the
// rest.
type FirstN struct {
	n        int64
	declared tuple.Fields
}

// NewFirstN is the on_create handler of first_n.
func NewFirstN(_ context.Context, in *FirstNInput) (*FirstN, error) {
	if in.N < 1 {
		return nil, fmt.Errorf("n must be positive, got %d", in.N)
	}
	fields, err := declaredFields(in.Fields)
	if err != nil {
		return nil, err
	}
	return &FirstN{n: in.N, declared: fields}, nil
}

func (f *FirstN) Name() string           { return "first_n" }
func (f *FirstN) Declared() tuple.Fields { return f.declared }

func (f *FirstN) Operate(_ context.Context, _ tuple.Entry, values operation.Values, out operation.Collector) error {
	for emitted := int64(0); emitted < f.n && values.Next(); emitted++ {
		args := values.Entry()
		if len(args.Tuple) != len(f.declared) {
			return fmt.Errorf("first_n declares %d fields but received %d arguments", len(f.declared), len(args.Tuple))
		}
		if err := out.Collect(args.Tuple.Copy()); err != nil {
			return err
		}
	}
	return values.Err()
}

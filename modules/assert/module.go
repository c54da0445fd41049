// Package assert provides assertions that fail individual records or whole
// groups. Failed records go to the trap of their branch when one is declared.
package assert

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"reflect"

	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

//go:embed manifest.hcl
var manifest []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the manifest and the constructors of every operation.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterManifest("assert/manifest.hcl", manifest)

	r.RegisterOperation("NewNotNull", &registry.RegisteredOperation{
		NewInput: func() any { return new(struct{}) },
		Fn: func(context.Context, any) (operation.Operation, error) {
			return NotNull{}, nil
		},
	})
	r.RegisterOperation("NewGroupSizeMax", &registry.RegisteredOperation{
		NewInput:  func() any { return new(GroupSizeMaxInput) },
		InputType: reflect.TypeOf(GroupSizeMaxInput{}),
		Fn: func(_ context.Context, input any) (operation.Operation, error) {
			in := input.(*GroupSizeMaxInput)
			if in.Max < 0 {
				return nil, fmt.Errorf("max must not be negative, got %d", in.Max)
			}
			return &GroupSizeMax{max: in.Max}, nil
		},
	})
}

// ErrNull is returned for records holding a null argument.
var ErrNull = errors.New("null value")

// NotNull fails records where any argument is null.
type NotNull struct{}

func (NotNull) Name() string           { return "not_null" }
func (NotNull) Declared() tuple.Fields { return nil }

func (NotNull) Check(_ context.Context, args tuple.Entry) error {
	for i, v := range args.Tuple {
		if v == nil {
			name := fmt.Sprint(i)
			if i < len(args.Fields) {
				name = args.Fields[i]
			}
			return fmt.Errorf("%w in field %s", ErrNull, name)
		}
	}
	return nil
}

// GroupSizeMaxInput defines the arguments of group_size_max.
type GroupSizeMaxInput struct {
	Max int64 `flow:"max"`
}

// GroupSizeMax fails groups holding more than max values.
type GroupSizeMax struct {
	max int64
}

type groupSize struct {
	key   tuple.Tuple
	count int64
}

func (g *GroupSizeMax) Name() string           { return "group_size_max" }
func (g *GroupSizeMax) Declared() tuple.Fields { return nil }

func (g *GroupSizeMax) Start(_ context.Context, key tuple.Entry) (any, error) {
	return &groupSize{key: key.Tuple}, nil
}

func (g *GroupSizeMax) Aggregate(_ context.Context, state any, _ tuple.Entry) (any, error) {
	s := state.(*groupSize)
	s.count++
	return s, nil
}

func (g *GroupSizeMax) Complete(_ context.Context, state any) error {
	s := state.(*groupSize)
	if s.count > g.max {
		return fmt.Errorf("group %s holds %d values, more than %d", s.key, s.count, g.max)
	}
	return nil
}

// Package aggregate provides the grouping operations of a flow: counting,
// summing and picking values of every group.
package aggregate

import (
	"context"
	_ "embed"
	"reflect"

	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/registry"
)

//go:embed manifest.hcl
var manifest []byte

// Module implements the registry.Module interface for this package.
type Module struct{}

func register[In any, Op operation.Operation](r *registry.Registry, name string, fn func(context.Context, *In) (Op, error)) {
	r.RegisterOperation(name, &registry.RegisteredOperation{
		NewInput:  func() any { return new(In) },
		InputType: reflect.TypeOf((*In)(nil)).Elem(),
		Fn: func(ctx context.Context, input any) (operation.Operation, error) {
			op, err := fn(ctx, input.(*In))
			if err != nil {
				return nil, err
			}
			return op, nil
		},
	})
}

// Register registers the manifest and the constructors of every operation.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterManifest("aggregate/manifest.hcl", manifest)
	register(r, "NewCount", NewCount)
	register(r, "NewSum", NewSum)
	register(r, "NewFirst", NewFirst)
	register(r, "NewFirstN", NewFirstN)
}

// Package text provides record level string operations: tokenizing,
// filtering and rewriting with regular expressions.
package text

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

// Register registers the manifest and the constructors of every operation.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterManifest("text/manifest.hcl", manifest)

	r.RegisterOperation("NewRegexSplit", &registry.RegisteredOperation{
		NewInput:  func() any { return new(SplitInput) },
		InputType: reflect.TypeOf(SplitInput{}),
		Fn: func(ctx context.Context, input any) (operation.Operation, error) {
			return NewRegexSplit(ctx, input.(*SplitInput))
		},
	})
	r.RegisterOperation("NewRegexFilter", &registry.RegisteredOperation{
		NewInput:  func() any { return new(FilterInput) },
		InputType: reflect.TypeOf(FilterInput{}),
		Fn: func(ctx context.Context, input any) (operation.Operation, error) {
			return NewRegexFilter(ctx, input.(*FilterInput))
		},
	})
	r.RegisterOperation("NewRegexReplace", &registry.RegisteredOperation{
		NewInput:  func() any { return new(ReplaceInput) },
		InputType: reflect.TypeOf(ReplaceInput{}),
		Fn: func(ctx context.Context, input any) (operation.Operation, error) {
			return NewRegexReplace(ctx, input.(*ReplaceInput))
		},
	})
	r.RegisterOperation("NewIdentity", &registry.RegisteredOperation{
		NewInput:  func() any { return new(IdentityInput) },
		InputType: reflect.TypeOf(IdentityInput{}),
		Fn: func(ctx context.Context, input any) (operation.Operation, error) {
			return NewIdentity(ctx, input.(*IdentityInput))
		},
	})
}

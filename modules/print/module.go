// Package print provides a pass-through filter that writes the records it
// sees to an output stream, for inspecting a branch of a running flow.
package print

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

//go:embed manifest.hcl
var manifest []byte

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed records. Defaults to os.Stdout.
	Out io.Writer
}

// Input defines the arguments for the print operation.
type Input struct {
	Prefix      string `flow:"prefix"`
	PrintFields bool   `flow:"print_fields"`
	Every       int64  `flow:"every"`
}

// Print writes records and never removes them. One instance is shared by
// every record of a pipe, so writes are serialized.
type Print struct {
	out    io.Writer
	prefix string
	fields bool
	every  int64

	mu      sync.Mutex
	seen    int64
	printed bool
}

// NewPrint is the on_create handler of print.
func NewPrint(ctx context.Context, out io.Writer, in *Input) (*Print, error) {
	if in.Every < 1 {
		return nil, fmt.Errorf("every must be positive, got %d", in.Every)
	}
	ctxlog.FromContext(ctx).Debug("Printing records.", "prefix", in.Prefix, "every", in.Every)
	return &Print{out: out, prefix: in.Prefix, fields: in.PrintFields, every: in.Every}, nil
}

func (p *Print) Name() string           { return "print" }
func (p *Print) Declared() tuple.Fields { return nil }

func (p *Print) Remove(_ context.Context, args tuple.Entry) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen++
	if (p.seen-1)%p.every != 0 {
		return false, nil
	}
	var b strings.Builder
	if p.fields && !p.printed {
		fmt.Fprintf(&b, "%s%s\n", p.prefix, args.Fields)
	}
	p.printed = true
	fmt.Fprintf(&b, "%s%s\n", p.prefix, args.Tuple)
	if _, err := io.WriteString(p.out, b.String()); err != nil {
		return false, fmt.Errorf("printing record: %w", err)
	}
	return false, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterManifest("print/manifest.hcl", manifest)

	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	r.RegisterOperation("NewPrint", &registry.RegisteredOperation{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn: func(ctx context.Context, input any) (operation.Operation, error) {
			return NewPrint(ctx, out, input.(*Input))
		},
	})
}

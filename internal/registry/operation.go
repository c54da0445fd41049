package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/operation"
)

// ErrUnknownOperation is returned when a flow names an operation no manifest
// declares.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation kinds accepted in manifests, with the interface each requires.
const (
	KindFunction       = "function"
	KindFilter         = "filter"
	KindValueAssertion = "value_assertion"
	KindAggregator     = "aggregator"
	KindBuffer         = "buffer"
	KindGroupAssertion = "group_assertion"
)

var kinds = map[string]func(operation.Operation) bool{
	KindFunction:       func(op operation.Operation) bool { _, ok := op.(operation.Function); return ok },
	KindFilter:         func(op operation.Operation) bool { _, ok := op.(operation.Filter); return ok },
	KindValueAssertion: func(op operation.Operation) bool { _, ok := op.(operation.ValueAssertion); return ok },
	KindAggregator:     func(op operation.Operation) bool { _, ok := op.(operation.Aggregator); return ok },
	KindBuffer:         func(op operation.Operation) bool { _, ok := op.(operation.Buffer); return ok },
	KindGroupAssertion: func(op operation.Operation) bool { _, ok := op.(operation.GroupAssertion); return ok },
}

// Definition returns the manifest of opType.
func (r *Registry) Definition(opType string) (*config.OperationDefinition, error) {
	def, ok := r.DefinitionRegistry[opType]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownOperation, opType)
	}
	return def, nil
}

// NewOperation decodes params against the manifest of opType and calls its
// on_create handler.
func (r *Registry) NewOperation(ctx context.Context, conv config.Converter, opType string, params map[string]hcl.Expression) (operation.Operation, error) {
	logger := ctxlog.FromContext(ctx).With("operation", opType)

	def, err := r.Definition(opType)
	if err != nil {
		return nil, err
	}
	var unknown []string
	for name := range params {
		if _, ok := def.Inputs[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("operation %q: unsupported arguments %q", opType, unknown)
	}

	if def.Lifecycle == nil {
		return nil, fmt.Errorf("operation %q: manifest declares no on_create handler", opType)
	}
	handler, ok := r.HandlerRegistry[def.Lifecycle.OnCreate]
	if !ok {
		return nil, fmt.Errorf("operation %q: on_create handler %q is not registered", opType, def.Lifecycle.OnCreate)
	}

	input := handler.NewInput()
	if err := conv.DecodeBody(ctx, input, params, def.Inputs, nil); err != nil {
		return nil, fmt.Errorf("operation %q: %w", opType, err)
	}
	op, err := handler.Fn(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("operation %q: %w", opType, err)
	}
	if check, ok := kinds[def.Kind]; ok && !check(op) {
		return nil, fmt.Errorf("operation %q: handler %q returned %T, which is not a %s", opType, def.Lifecycle.OnCreate, op, def.Kind)
	}
	logger.Debug("Operation created.", "kind", def.Kind)
	return op, nil
}

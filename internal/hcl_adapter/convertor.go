package hcl_adapter

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Converter binds the arguments of an operation block to its parameter
// struct. It implements config.Converter.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// paramName returns the manifest input a struct field is bound to, or ""
// for fields that take no input.
func paramName(field reflect.StructField) string {
	if !field.IsExported() {
		return ""
	}
	return registry.ParamName(field)
}

// DecodeBody evaluates every argument the parameter struct has a field for
// and decodes it against the manifest type of the input. Missing arguments
// take the manifest default; optional inputs without one keep the value the
// struct was created with.
func (c *Converter) DecodeBody(
	ctx context.Context,
	inputStruct any,
	args map[string]hcl.Expression,
	defs map[string]*config.InputDefinition,
	evalCtx *hcl.EvalContext,
) error {
	target := reflect.ValueOf(inputStruct)
	if target.Kind() != reflect.Ptr || target.IsNil() {
		return fmt.Errorf("inputStruct must be a non-nil pointer, got %T", inputStruct)
	}
	target = target.Elem()
	logger := ctxlog.FromContext(ctx).With("params", target.Type().String())

	for i := 0; i < target.NumField(); i++ {
		name := paramName(target.Type().Field(i))
		def, ok := defs[name]
		if name == "" || !ok {
			continue
		}

		var val cty.Value
		if expr, provided := args[name]; provided {
			v, diags := expr.Value(evalCtx)
			if diags.HasErrors() {
				return diags
			}
			val = v
		} else {
			switch {
			case def.Default != nil:
				val = *def.Default
			case def.Optional:
				logger.Debug("Optional parameter left unset.", "param", name)
				continue
			default:
				return fmt.Errorf("missing required argument %q", name)
			}
		}

		if err := c.decode(ctx, val, def.Type, target.Field(i)); err != nil {
			return fmt.Errorf("failed to decode argument '%s': %w", name, err)
		}
	}
	logger.Debug("Parameters decoded.", "args", len(args))
	return nil
}

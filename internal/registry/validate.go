package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry checks that every manifest and its Go constructor agree:
// the kind is known, the on_create handler exists, and the manifest inputs
// match the tagged fields of the parameter struct by name and type. Every
// problem is reported at once.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	opTypes := make([]string, 0, len(r.DefinitionRegistry))
	for opType := range r.DefinitionRegistry {
		opTypes = append(opTypes, opType)
	}
	sort.Strings(opTypes)

	var errs []string
	for _, opType := range opTypes {
		errs = append(errs, r.validateOperation(ctx, opType, r.DefinitionRegistry[opType])...)
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	ctxlog.FromContext(ctx).Debug("Registry validated.", "operations", len(opTypes), "handlers", len(r.HandlerRegistry))
	return nil
}

func (r *Registry) validateOperation(ctx context.Context, opType string, def *config.OperationDefinition) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("operation '%s'", opType)+fmt.Sprintf(format, args...))
	}

	if _, ok := kinds[def.Kind]; !ok {
		fail(": unknown kind '%s'", def.Kind)
	}
	if def.Lifecycle == nil || def.Lifecycle.OnCreate == "" {
		fail(": manifest declares no on_create handler")
		return errs
	}
	handler, ok := r.HandlerRegistry[def.Lifecycle.OnCreate]
	if !ok {
		fail(": on_create handler '%s' is not registered", def.Lifecycle.OnCreate)
		return errs
	}
	if handler.InputType == nil {
		if len(def.Inputs) > 0 {
			fail(": manifest declares inputs, but Go handler has no input struct")
		}
		return errs
	}

	goInputs := inputFields(handler.InputType)
	for _, name := range sortedKeys(goInputs) {
		if _, ok := def.Inputs[name]; !ok {
			fail(": Go struct has field for input '%s' which is not declared in manifest", name)
		}
	}
	for _, name := range sortedKeys(def.Inputs) {
		field, ok := goInputs[name]
		if !ok {
			fail(": manifest declares input '%s' which is not found in Go struct", name)
			continue
		}
		want := def.Inputs[name].Type
		if want.Equals(cty.DynamicPseudoType) {
			ctxlog.FromContext(ctx).Warn("Input declared with 'type = any' is not type checked.", "operation", opType, "input", name)
			continue
		}
		got, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface())
		if err != nil {
			fail(", input '%s': could not imply cty type from Go field type %s: %v", name, field.Type, err)
			continue
		}
		if !want.Equals(got) {
			fail(", input '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides compatible type '%s'",
				name, want.FriendlyName(), field.Name, got.FriendlyName())
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

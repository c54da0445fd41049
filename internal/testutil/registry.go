package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/hcl_adapter"
	"github.com/specialistvlad/gridflow/internal/operation"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/tuple"
	"github.com/stretchr/testify/require"
)

// Context returns a context carrying a logger. Logs are discarded unless
// GRIDFLOW_TEST_LOGS is set to true.
func Context(t *testing.T) context.Context {
	t.Helper()
	if os.Getenv("GRIDFLOW_TEST_LOGS") == "true" {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		return ctxlog.WithLogger(context.Background(), logger)
	}
	return ctxlog.Discard(context.Background())
}

// NewRegistry registers modules, loads the manifests they ship and validates
// the result the way the application does at startup.
func NewRegistry(t *testing.T, modules ...registry.Module) (*registry.Registry, config.Converter) {
	t.Helper()
	ctx := Context(t)

	r := registry.New()
	for _, m := range modules {
		m.Register(r)
	}

	loader := hcl_adapter.NewLoader()
	model := config.NewModel()
	for _, m := range r.Manifests() {
		parsed, err := loader.Parse(ctx, m.Filename, m.Src)
		require.NoError(t, err, "parsing manifest %s", m.Filename)
		require.NoError(t, model.Merge(parsed))
	}
	r.PopulateDefinitionsFromModel(model)
	require.NoError(t, r.ValidateRegistry(ctx))
	return r, hcl_adapter.NewConverter()
}

// Params parses HCL attributes into operation parameters.
func Params(t *testing.T, src string) map[string]hcl.Expression {
	t.Helper()
	file, diags := hclsyntax.ParseConfig([]byte(src), "params.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "parsing params: %s", diags)
	attrs, diags := file.Body.JustAttributes()
	require.False(t, diags.HasErrors(), "reading params: %s", diags)

	params := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		params[name] = attr.Expr
	}
	return params
}

// NewOperation creates opType from params written in HCL.
func NewOperation(t *testing.T, r *registry.Registry, conv config.Converter, opType, params string) operation.Operation {
	t.Helper()
	op, err := r.NewOperation(Context(t), conv, opType, Params(t, params))
	require.NoError(t, err)
	return op
}

// Emit collects the tuples an operation emits.
type Emit struct {
	Tuples []tuple.Tuple
}

// Collect implements operation.Collector.
func (e *Emit) Collect(t tuple.Tuple) error {
	e.Tuples = append(e.Tuples, t)
	return nil
}

package hcl_adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func testContext() context.Context {
	return ctxlog.Discard(context.Background())
}

const flowSrc = `
flow "joins" {
  description = "joins people with colors"
}

source "people" {
  scheme    = "text_delimited"
  path      = "people.tsv"
  fields    = ["id", "name"]
  delimiter = ","
  header    = true
}

pipe "clean" {
  from = "people"

  each "regex_replace" {
    arguments = ["name"]
    output    = "swap"
    pattern   = "\\s+"
  }

  checkpoint {}

  group_by {
    key = ["id"]
  }

  every "count" {
    output_fields = ["id", "count"]
  }
}

pipe "joined" {
  from = ["clean", "people"]

  hash_join {
    keys     = [["id"], ["id"]]
    joiner   = "mixed"
    inner    = [true, false]
    declared = ["a", "b", "c", "d"]
  }
}

sink "out" {
  scheme      = "text_delimited"
  path        = "out.tsv"
  from        = "joined"
  sink_fields = ["a", "d"]
}

trap "clean" {
  path = "trap.txt"
}
`

func TestParseFlow(t *testing.T) {
	model, err := NewLoader().Parse(testContext(), "flow.hcl", []byte(flowSrc))
	require.NoError(t, err)

	f := model.Flow
	assert.Equal(t, "joins", f.Name)
	assert.Equal(t, "joins people with colors", f.Description)

	ignoreRanges := cmpopts.IgnoreTypes(hcl.Range{})
	if diff := cmp.Diff([]*config.Tap{{
		Name: "people", Scheme: "text_delimited", Path: "people.tsv",
		Fields: []string{"id", "name"}, Delimiter: ",", Header: true,
	}}, f.Sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]*config.Tap{{
		Name: "out", Scheme: "text_delimited", Path: "out.tsv", From: "joined", SinkFields: []string{"a", "d"},
	}}, f.Sinks); diff != "" {
		t.Errorf("sinks mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, f.Traps, 1)
	assert.Equal(t, "clean", f.Traps[0].Name)

	require.Len(t, f.Pipes, 2)
	clean := f.Pipes[0]
	assert.Equal(t, []string{"people"}, clean.From)
	var kinds []config.BlockKind
	for _, b := range clean.Blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []config.BlockKind{config.BlockEach, config.BlockCheckpoint, config.BlockGroupBy, config.BlockEvery}, kinds)

	each := clean.Blocks[0]
	assert.Equal(t, "regex_replace", each.Operation)
	assert.Equal(t, []string{"name"}, each.Arguments)
	assert.Equal(t, "swap", each.Output)
	require.Contains(t, each.Params, "pattern")
	assert.Len(t, each.Params, 1)
	val, diags := each.Params["pattern"].Value(nil)
	require.False(t, diags.HasErrors())
	assert.Equal(t, `\s+`, val.AsString())

	assert.Equal(t, [][]string{{"id"}}, clean.Blocks[2].Keys)
	assert.Equal(t, []string{"id", "count"}, clean.Blocks[3].OutputFields)

	join := f.Pipes[1]
	assert.Equal(t, []string{"clean", "people"}, join.From)
	require.Len(t, join.Blocks, 1)
	if diff := cmp.Diff(&config.Block{
		Kind:     config.BlockHashJoin,
		Keys:     [][]string{{"id"}, {"id"}},
		Joiner:   "mixed",
		Inner:    []bool{true, false},
		Declared: []string{"a", "b", "c", "d"},
	}, join.Blocks[0], ignoreRanges); diff != "" {
		t.Errorf("join block mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "pipe without from",
			src:     `pipe "p" {}`,
			wantErr: `missing required argument "from"`,
		},
		{
			name:    "unknown pipe argument",
			src:     "pipe \"p\" {\n from = \"a\"\n to = \"b\"\n}",
			wantErr: `unsupported argument "to"`,
		},
		{
			name:    "unknown block",
			src:     "pipe \"p\" {\n from = \"a\"\n sort {}\n}",
			wantErr: `unsupported block type "sort"`,
		},
		{
			name:    "each without operation",
			src:     "pipe \"p\" {\n from = \"a\"\n each {}\n}",
			wantErr: "needs exactly one label",
		},
		{
			name:    "key and keys",
			src:     "pipe \"p\" {\n from = \"a\"\n group_by {\n key = [\"a\"]\n keys = [[\"a\"]]\n }\n}",
			wantErr: "sets both key and keys",
		},
		{
			name:    "two flows",
			src:     `flow "a" {}` + "\n" + `flow "b" {}`,
			wantErr: "at most one flow block is allowed",
		},
		{
			name:    "duplicate operation",
			src:     "operation \"x\" {\n kind = \"function\"\n}\noperation \"x\" {\n kind = \"function\"\n}",
			wantErr: `operation "x" declared more than once`,
		},
		{
			name:    "syntax error",
			src:     `pipe "p" {`,
			wantErr: "failed to parse HCL file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().Parse(testContext(), "flow.hcl", []byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

const manifestSrc = `
operation "regex_split" {
  kind        = "function"
  description = "splits"

  lifecycle {
    on_create = "NewRegexSplit"
  }

  input "pattern" {
    type = string
  }

  input "limit" {
    type    = number
    default = 3
  }

  input "tags" {
    type    = list(string)
    default = null
  }
}
`

func TestParseOperationManifest(t *testing.T) {
	model, err := NewLoader().Parse(testContext(), "manifest.hcl", []byte(manifestSrc))
	require.NoError(t, err)
	assert.True(t, model.Flow.Empty())

	def, ok := model.Operations["regex_split"]
	require.True(t, ok)
	assert.Equal(t, "function", def.Kind)
	assert.Equal(t, "NewRegexSplit", def.Lifecycle.OnCreate)
	require.Len(t, def.Inputs, 3)

	pattern := def.Inputs["pattern"]
	assert.True(t, pattern.Type.Equals(cty.String))
	assert.False(t, pattern.Optional)
	assert.Nil(t, pattern.Default)

	limit := def.Inputs["limit"]
	assert.True(t, limit.Optional)
	require.NotNil(t, limit.Default)
	assert.True(t, limit.Default.Equals(cty.NumberIntVal(3)).True())

	tags := def.Inputs["tags"]
	assert.True(t, tags.Type.Equals(cty.List(cty.String)))
	assert.True(t, tags.Optional)
	assert.Nil(t, tags.Default)
}

func TestLoadMergesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.hcl"), []byte(manifestSrc), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "flows"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flows", "flow.hcl"), []byte(flowSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not hcl"), 0o644))

	model, conv, err := NewLoader().Load(testContext(), dir)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Contains(t, model.Operations, "regex_split")
	assert.Equal(t, "joins", model.Flow.Name)
	assert.Len(t, model.Flow.Pipes, 2)

	_, _, err = NewLoader().Load(testContext(), dir, filepath.Join(dir, "manifest.hcl"), filepath.Join(dir, "missing"))
	require.NoError(t, err, "repeated and missing paths are skipped")

	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "copy.hcl"), []byte(manifestSrc), 0o644))
	_, _, err = NewLoader().Load(testContext(), dir, other)
	require.ErrorContains(t, err, `operation "regex_split" declared more than once`)
}

func TestTypeExprToCtyType(t *testing.T) {
	testCases := []struct {
		src     string
		want    cty.Type
		wantErr string
	}{
		{src: "string", want: cty.String},
		{src: "any", want: cty.DynamicPseudoType},
		{src: "list(number)", want: cty.List(cty.Number)},
		{src: "map(bool)", want: cty.Map(cty.Bool)},
		{src: "object({ size = number, label = string })", want: cty.Object(map[string]cty.Type{"size": cty.Number, "label": cty.String})},
		{src: "object({})", want: cty.EmptyObject},
		{src: "list(any)", wantErr: "cannot contain type 'any'"},
		{src: "text", wantErr: "not a valid type"},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			expr, diags := hclsyntax.ParseExpression([]byte(tc.src), "type.hcl", hcl.InitialPos)
			require.False(t, diags.HasErrors(), diags.Error())

			got, err := typeExprToCtyType(testContext(), expr)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equals(tc.want), "got %s", got.FriendlyName())
		})
	}
}

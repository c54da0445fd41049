// This file contains the logic for translating HCL schema structs into the
// format-agnostic configuration model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translateTap converts a source, sink or trap block into the agnostic model.
func (l *Loader) translateTap(t *TapBlock) *config.Tap {
	return &config.Tap{
		Name:       t.Name,
		Scheme:     t.Scheme,
		Path:       t.Path,
		Fields:     t.Fields,
		SinkFields: t.SinkFields,
		Delimiter:  t.Delimiter,
		Header:     t.Header,
		From:       t.From,
	}
}

// translatePipe walks the pipe body in source order: the `from` attribute
// and one model block per sub-block.
func (l *Loader) translatePipe(ctx context.Context, p *PipeBlock) (*config.Pipe, error) {
	logger := ctxlog.FromContext(ctx).With("pipe", p.Name)
	logger.Debug("Translating HCL pipe to internal config model.")

	body, ok := p.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("pipe %q: ordered pipe blocks require native HCL syntax", p.Name)
	}
	pipe := &config.Pipe{Name: p.Name, Range: body.SrcRange}

	for name, attr := range body.Attributes {
		if name != "from" {
			return nil, fmt.Errorf("pipe %q: unsupported argument %q at %s", p.Name, name, attr.SrcRange)
		}
		from, err := stringList(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("pipe %q: from: %w", p.Name, err)
		}
		pipe.From = from
	}
	if len(pipe.From) == 0 {
		return nil, fmt.Errorf("pipe %q: missing required argument \"from\"", p.Name)
	}

	for _, b := range body.Blocks {
		block, err := l.translateBlock(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("pipe %q: %w", p.Name, err)
		}
		pipe.Blocks = append(pipe.Blocks, block)
	}
	logger.Debug("Pipe translated.", "from", pipe.From, "blocks", len(pipe.Blocks))
	return pipe, nil
}

func (l *Loader) translateBlock(ctx context.Context, b *hclsyntax.Block) (*config.Block, error) {
	kind := config.BlockKind(b.Type)
	block := &config.Block{Kind: kind, Range: b.Range()}

	switch kind {
	case config.BlockEach, config.BlockEvery:
		if len(b.Labels) != 1 {
			return nil, fmt.Errorf("%s block at %s needs exactly one label, the operation type", b.Type, b.DefRange())
		}
		var op OperatorBlock
		if diags := gohcl.DecodeBody(b.Body, nil, &op); diags.HasErrors() {
			return nil, diags
		}
		block.Operation = b.Labels[0]
		block.Arguments = op.Arguments
		block.Output = op.Output
		block.OutputFields = op.OutputFields
		params, diags := l.extractBodyAttributes(ctx, op.Params)
		if diags.HasErrors() {
			return nil, diags
		}
		block.Params = params

	case config.BlockGroupBy, config.BlockCoGroup, config.BlockHashJoin, config.BlockMerge:
		if len(b.Labels) != 0 {
			return nil, fmt.Errorf("%s block at %s takes no labels", b.Type, b.DefRange())
		}
		var sp SpliceBlock
		if diags := gohcl.DecodeBody(b.Body, nil, &sp); diags.HasErrors() {
			return nil, diags
		}
		block.Keys = sp.Keys
		if len(sp.Key) > 0 {
			if len(sp.Keys) > 0 {
				return nil, fmt.Errorf("%s block at %s sets both key and keys", b.Type, b.DefRange())
			}
			block.Keys = [][]string{sp.Key}
		}
		block.Joiner = sp.Joiner
		block.Inner = sp.Inner
		block.Declared = sp.Declared
		block.SelfJoins = sp.SelfJoins

	case config.BlockCheckpoint:
		var cp CheckpointBlock
		if diags := gohcl.DecodeBody(b.Body, nil, &cp); diags.HasErrors() {
			return nil, diags
		}

	default:
		return nil, fmt.Errorf("unsupported block type %q at %s", b.Type, b.DefRange())
	}
	return block, nil
}

// stringList evaluates expr as a string or a list of strings.
func stringList(expr hcl.Expression) ([]string, error) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.Type() == cty.String {
		return []string{val.AsString()}, nil
	}
	list, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, fmt.Errorf("expected a string or a list of strings, got %s", val.Type().FriendlyName())
	}
	var out []string
	for it := list.ElementIterator(); it.Next(); {
		_, v := it.Element()
		out = append(out, v.AsString())
	}
	return out, nil
}

// translateOperationDefinition converts an operation manifest into the agnostic model.
func (l *Loader) translateOperationDefinition(ctx context.Context, s *OperationDefinition) (*config.OperationDefinition, error) {
	def := &config.OperationDefinition{
		Type:        s.Type,
		Kind:        s.Kind,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
	}
	if s.Lifecycle != nil {
		def.Lifecycle = &config.Lifecycle{OnCreate: s.Lifecycle.OnCreate}
	}

	for _, in := range s.Inputs {
		translatedInput, err := translateInputDefinition(ctx, in, "operation", s.Type)
		if err != nil {
			return nil, err
		}
		def.Inputs[in.Name] = translatedInput
	}
	return def, nil
}

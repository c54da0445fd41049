package assembly

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/config"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/join"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// buildPipe appends the elements of p and returns its last element. A pipe
// reading several branches must start with a co_group, hash_join or merge,
// which receives the branches in from order.
func (b *builder) buildPipe(p *config.Pipe) (element.Element, error) {
	blocks := p.Blocks
	var tail element.Element

	if len(p.From) > 1 {
		if len(blocks) == 0 || !isMultiBranch(blocks[0].Kind) {
			return nil, fmt.Errorf("reading %d branches requires a leading co_group, hash_join or merge", len(p.From))
		}
		splice, err := b.splice(p.Name, blocks[0], len(p.From))
		if err != nil {
			return nil, err
		}
		b.graph.AddVertex(splice)
		for ord, from := range p.From {
			prev := b.tails[from]
			if err := b.graph.AddEdge(prev, splice, element.NewScope(prev.Name(), ord)); err != nil {
				return nil, err
			}
		}
		tail = splice
		blocks = blocks[1:]
	} else {
		marker := element.NewPipe(p.Name)
		b.graph.AddVertex(marker)
		if err := b.graph.AddEdge(b.tails[p.From[0]], marker, nil); err != nil {
			return nil, err
		}
		tail = marker
	}

	for i, block := range blocks {
		e, err := b.element(p.Name, block)
		if err != nil {
			return nil, fmt.Errorf("block %d (%s): %w", i, block.Kind, err)
		}
		b.graph.AddVertex(e)
		if err := b.graph.AddEdge(tail, e, nil); err != nil {
			return nil, err
		}
		tail = e
	}
	return tail, nil
}

func isMultiBranch(k config.BlockKind) bool {
	return k == config.BlockCoGroup || k == config.BlockHashJoin || k == config.BlockMerge
}

// element creates the element of a block that follows a single branch.
func (b *builder) element(name string, block *config.Block) (element.Element, error) {
	switch block.Kind {
	case config.BlockEach, config.BlockEvery:
		return b.operator(name, block)
	case config.BlockCheckpoint:
		return element.NewCheckpoint(name), nil
	case config.BlockMerge:
		return nil, fmt.Errorf("merge requires several branches")
	default:
		return b.splice(name, block, 1)
	}
}

func (b *builder) operator(name string, block *config.Block) (element.Element, error) {
	op, err := b.reg.NewOperation(b.ctx, b.conv, block.Operation, block.Params)
	if err != nil {
		return nil, err
	}
	var opts []element.OperatorOption
	if len(block.Arguments) > 0 {
		opts = append(opts, element.WithArguments(tuple.NewFields(block.Arguments...)))
	}
	if len(block.OutputFields) > 0 {
		if block.Output != "" {
			return nil, fmt.Errorf("output and output_fields are mutually exclusive")
		}
		opts = append(opts, element.WithOutputFields(tuple.NewFields(block.OutputFields...)))
	} else {
		mode, err := element.ParseOutputMode(block.Output)
		if err != nil {
			return nil, err
		}
		opts = append(opts, element.WithOutput(mode))
	}

	if block.Kind == config.BlockEach {
		return element.NewEach(name, op, opts...)
	}
	return element.NewEvery(name, op, opts...)
}

// splice creates a grouping or joining element over branches inputs. A
// single input with self_joins set joins the branch with itself.
func (b *builder) splice(name string, block *config.Block, branches int) (*element.Splice, error) {
	if block.Kind == config.BlockMerge {
		return element.NewMerge(name), nil
	}
	if len(block.Keys) == 0 {
		return nil, fmt.Errorf("%s requires a key", block.Kind)
	}
	if block.Kind == config.BlockGroupBy {
		if len(block.Keys) != 1 || block.SelfJoins != 0 || block.Joiner != "" {
			return nil, fmt.Errorf("group_by takes a single key and no join settings")
		}
		return element.NewGroupBy(name, tuple.NewFields(block.Keys[0]...)), nil
	}

	joiner, err := join.Parse(block.Joiner, block.Inner)
	if err != nil {
		return nil, err
	}
	declared := tuple.NewFields(block.Declared...)

	if block.SelfJoins > 0 {
		if branches != 1 || len(block.Keys) != 1 {
			return nil, fmt.Errorf("self_joins requires a single branch and a single key")
		}
		key := tuple.NewFields(block.Keys[0]...)
		if block.Kind == config.BlockCoGroup {
			return element.NewSelfCoGroup(name, key, block.SelfJoins, joiner, declared), nil
		}
		return element.NewSelfHashJoin(name, key, block.SelfJoins, joiner, declared), nil
	}
	if branches < 2 {
		return nil, fmt.Errorf("%s requires several branches or self_joins", block.Kind)
	}

	keys := make([]tuple.Fields, branches)
	switch len(block.Keys) {
	case 1:
		for i := range keys {
			keys[i] = tuple.NewFields(block.Keys[0]...)
		}
	case branches:
		for i, k := range block.Keys {
			keys[i] = tuple.NewFields(k...)
		}
	default:
		return nil, fmt.Errorf("%s declares %d keys for %d branches", block.Kind, len(block.Keys), branches)
	}

	if block.Kind == config.BlockCoGroup {
		return element.NewCoGroup(name, keys, joiner, declared), nil
	}
	return element.NewHashJoin(name, keys, joiner, declared), nil
}

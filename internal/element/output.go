package element

import (
	"fmt"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// OutputPlan shapes an operator result into the outgoing record. Positions
// are resolved once so records are shaped without name lookups.
type OutputPlan struct {
	Fields tuple.Fields
	// source[i] < 0 takes result value -source[i]-1, otherwise input value source[i].
	source []int
}

// Apply builds the outgoing tuple from an input tuple and an operation result.
func (p *OutputPlan) Apply(in, result tuple.Tuple) tuple.Tuple {
	out := make(tuple.Tuple, len(p.source))
	for i, s := range p.source {
		if s < 0 {
			out[i] = result[-s-1]
		} else {
			out[i] = in[s]
		}
	}
	return out
}

// Declared returns the fields the operator's operation emits. Functions
// without declared fields emit their argument fields.
func (o *Operator) Declared(args tuple.Fields) tuple.Fields {
	declared := o.operation.Declared()
	if len(declared) == 0 && o.kind == KindFunction {
		return args
	}
	return declared
}

// Plan resolves the arguments and output shaping of an each operator against
// the incoming fields.
func (o *Operator) Plan(in tuple.Fields) (args tuple.Fields, plan *OutputPlan, err error) {
	args = o.arguments
	if len(args) == 0 {
		args = in
	}
	if _, err := in.Positions(args); err != nil {
		return nil, nil, fmt.Errorf("%s: arguments: %w", o, err)
	}

	switch o.kind {
	case KindFilter, KindValueAssertion:
		plan, err := passThrough(in)
		return args, plan, err
	}

	declared := o.Declared(args)
	plan, err = shape(in, args, declared, o.output, o.outputFields)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", o, err)
	}
	return args, plan, nil
}

func passThrough(in tuple.Fields) (*OutputPlan, error) {
	plan := &OutputPlan{Fields: in, source: make([]int, len(in))}
	for i := range in {
		plan.source[i] = i
	}
	return plan, nil
}

func shape(in, args, declared tuple.Fields, mode OutputMode, explicit tuple.Fields) (*OutputPlan, error) {
	plan := &OutputPlan{}
	addInput := func(names tuple.Fields) {
		for _, n := range names {
			plan.Fields = append(plan.Fields, n)
			plan.source = append(plan.source, in.Index(n))
		}
	}
	addResults := func() {
		for i, n := range declared {
			plan.Fields = append(plan.Fields, n)
			plan.source = append(plan.source, -i-1)
		}
	}

	if len(explicit) > 0 {
		for _, n := range explicit {
			if idx := declared.Index(n); idx >= 0 {
				plan.Fields = append(plan.Fields, n)
				plan.source = append(plan.source, -idx-1)
				continue
			}
			if idx := in.Index(n); idx >= 0 {
				plan.Fields = append(plan.Fields, n)
				plan.source = append(plan.source, idx)
				continue
			}
			return nil, fmt.Errorf("output field %q is neither an input nor a result", n)
		}
		return plan, nil
	}

	switch mode {
	case OutputResults:
		addResults()
	case OutputAll:
		addInput(in)
		addResults()
	case OutputSwap:
		addInput(in.Without(args))
		addResults()
	}
	if plan.Fields.HasDuplicates() {
		return nil, fmt.Errorf("output fields %s contain duplicates", plan.Fields)
	}
	return plan, nil
}

// Package rules holds the rule registry for planning flows that run on the
// local substrate.
package rules

import (
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/expression"
	"github.com/specialistvlad/gridflow/internal/planner"
)

// LocalName names the registry returned by Local.
const LocalName = "local"

// FactoryBoundary creates the synthetic connector nodes are split at.
const FactoryBoundary = "boundary"

// Factories returns the element factories the local rules insert with.
func Factories() map[string]planner.Factory {
	return map[string]planner.Factory{
		FactoryBoundary: func(name string) element.Element { return element.NewBoundary(name) },
	}
}

// Local returns the validated local registry.
func Local() (*planner.Registry, error) {
	return planner.NewRegistry(LocalName, Factories(), localRules()...)
}

func localRules() []*planner.Rule {
	var (
		el   = expression.Element
		pri  = expression.RolePrimary
		sec  = expression.RoleSecondary
		none = expression.RoleNone
	)
	source := expression.Is(element.IsConnector)

	return []*planner.Rule{
		// pre-balance
		planner.Assert("every-without-grouping", planner.PhasePreBalance,
			expression.New(el("every", pri, expression.Is(element.IsEvery), ungrouped())),
			"an every must follow a group by, a co-group or another every"),
		planner.Assert("buffer-after-reducer", planner.PhasePreBalance,
			expression.New(
				el("reducer", none, expression.Is(element.IsEvery)),
				el("buffer", pri, expression.Kinds(element.KindBuffer)),
			).Arc(0, 1, nil),
			"a buffer must be the only every of its group"),
		planner.Assert("reducer-after-buffer", planner.PhasePreBalance,
			expression.New(
				el("buffer", pri, expression.Kinds(element.KindBuffer)),
				el("reducer", none, expression.Is(element.IsEvery)),
			).Arc(0, 1, nil),
			"a buffer must be the only every of its group"),
		planner.Assert("duplicate-splice-ordinal", planner.PhasePreBalance,
			expression.New(el("splice", pri, expression.Is(element.IsSplice), duplicateOrdinals())),
			"two branches enter a splice on the same ordinal"),
		planner.Assert("missing-splice-branch", planner.PhasePreBalance,
			expression.New(el("splice", pri, expression.Is(element.IsSplice), missingBranches())),
			"splice has fewer incoming branches than it joins"),

		// balance
		planner.Insert("boundary-before-grouping", planner.PhaseBalance,
			expression.New(
				el("upstream", pri, expression.Not(source)),
				el("grouping", sec, expression.Is(element.IsGrouping)),
			).Arc(0, 1, nil),
			FactoryBoundary),

		// pre-resolve
		planner.Contract("remove-pipes", planner.PhasePreResolve,
			expression.New(el("pipe", sec, expression.Kinds(element.KindPipe))), ""),

		// partitions
		planner.Partition("steps-at-checkpoints", planner.PhasePartitionSteps,
			expression.New(el("checkpoint", pri, expression.Kinds(element.KindCheckpoint)))),
		planner.Partition("steps-at-intermediate-taps", planner.PhasePartitionSteps,
			expression.New(el("tap", pri, expression.Kinds(element.KindTap), expression.Inner()))),
		planner.Partition("nodes-at-boundaries", planner.PhasePartitionNodes,
			expression.New(el("boundary", pri, expression.Kinds(element.KindBoundary)))),

		// post-nodes
		planner.Assert("one-grouping-per-node", planner.PhasePostNodes,
			expression.New(
				el("first", pri, expression.Is(element.IsGrouping)),
				el("second", sec, expression.Is(element.IsGrouping)),
			).Arc(0, 1, expression.Path()),
			"a node may hold a single grouping splice"),
		planner.Annotate("accumulated-sources", planner.PhasePostNodes,
			expression.New(el("source", pri, source, expression.Source(), accumulated())),
			element.AnnotationAccumulated),
		planner.Annotate("streamed-sources", planner.PhasePostNodes,
			expression.New(el("source", pri, source, expression.Source(), streamed())),
			element.AnnotationStreamed),
		planner.Annotate("blocking-hash-joins", planner.PhasePostNodes,
			expression.New(el("join", pri, expression.Kinds(element.KindHashJoin), sharedSource())),
			element.AnnotationBlocking),

		planner.Partition("pipelines-at-gates", planner.PhasePartitionPipelines,
			expression.New(el("gate", pri, expression.Is(element.IsSplice)))),
	}
}

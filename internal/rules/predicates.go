package rules

import (
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/expression"
)

// joinBranches collects, for every hash join downstream of e, the ordinals
// of the join branches e reaches.
func joinBranches(g *element.Graph, e element.Element) map[element.Element]map[int]bool {
	out := make(map[element.Element]map[int]bool)
	seen := map[element.Element]bool{e: true}
	stack := []element.Element{e}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, ed := range g.InnerOutgoing(v) {
			if ed.To.Kind() == element.KindHashJoin {
				if out[ed.To] == nil {
					out[ed.To] = make(map[int]bool)
				}
				out[ed.To][ed.Scope.Ordinal] = true
			}
			if !seen[ed.To] {
				seen[ed.To] = true
				stack = append(stack, ed.To)
			}
		}
	}
	return out
}

// accumulated accepts sources that feed hash joins only through accumulated
// branches, ordinal one and up.
func accumulated() expression.Predicate {
	return func(g *element.Graph, e element.Element) bool {
		branches := joinBranches(g, e)
		if len(branches) == 0 {
			return false
		}
		for _, ords := range branches {
			if ords[0] {
				return false
			}
		}
		return true
	}
}

// streamed accepts every source that is not accumulated.
func streamed() expression.Predicate {
	return expression.Not(accumulated())
}

// sharedSource accepts hash joins whose streamed branch and an accumulated
// branch trace back to the same source.
func sharedSource() expression.Predicate {
	return func(g *element.Graph, join element.Element) bool {
		for _, src := range g.Elements() {
			if len(g.InnerIncoming(src)) != 0 {
				continue
			}
			ords := joinBranches(g, src)[join]
			if !ords[0] {
				continue
			}
			for ord := range ords {
				if ord > 0 {
					return true
				}
			}
		}
		return false
	}
}

// duplicateOrdinals accepts grouping splices entered twice on one ordinal.
// Self-joins declare a single input and are never matched.
func duplicateOrdinals() expression.Predicate {
	return func(g *element.Graph, e element.Element) bool {
		seen := make(map[int]bool)
		for _, ed := range g.InnerIncoming(e) {
			if seen[ed.Scope.Ordinal] {
				return true
			}
			seen[ed.Scope.Ordinal] = true
		}
		return false
	}
}

// missingBranches accepts joins and merges with fewer inputs than they need.
func missingBranches() expression.Predicate {
	return func(g *element.Graph, e element.Element) bool {
		s, ok := e.(*element.Splice)
		if !ok {
			return false
		}
		in := len(g.InnerIncoming(s))
		switch s.Kind() {
		case element.KindMerge:
			return in < 2
		case element.KindCoGroup, element.KindHashJoin:
			if s.IsSelfJoin() {
				return in != 1
			}
			if s.KeyCount() > 1 && s.KeyCount() != in {
				return true
			}
			return in < 2
		default:
			return in < 1
		}
	}
}

// ungrouped accepts everies whose nearest upstream element, looking
// through pipe markers, is neither a grouping splice nor another every.
func ungrouped() expression.Predicate {
	return func(g *element.Graph, e element.Element) bool {
		seen := map[element.Element]bool{e: true}
		stack := []element.Element{e}
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			in := g.InnerIncoming(v)
			if len(in) == 0 {
				return true
			}
			for _, ed := range in {
				up := ed.From
				switch {
				case up.Kind() == element.KindPipe:
					if !seen[up] {
						seen[up] = true
						stack = append(stack, up)
					}
				case !element.IsGrouping(up) && !element.IsEvery(up):
					return true
				}
			}
		}
		return false
	}
}

package expression

import "github.com/specialistvlad/gridflow/internal/element"

// Any accepts every non-sentinel element.
func Any() Predicate {
	return func(*element.Graph, element.Element) bool { return true }
}

// Kinds accepts elements of the given kinds.
func Kinds(kinds ...element.Kind) Predicate {
	return func(_ *element.Graph, e element.Element) bool {
		for _, k := range kinds {
			if e.Kind() == k {
				return true
			}
		}
		return false
	}
}

// Is accepts elements the classifier accepts, for example element.IsEvery.
func Is(classify func(element.Element) bool) Predicate {
	return func(_ *element.Graph, e element.Element) bool { return classify(e) }
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(g *element.Graph, e element.Element) bool { return !p(g, e) }
}

// Or accepts elements matching any of preds.
func Or(preds ...Predicate) Predicate {
	return func(g *element.Graph, e element.Element) bool {
		for _, p := range preds {
			if p(g, e) {
				return true
			}
		}
		return false
	}
}

// Annotated accepts elements carrying a.
func Annotated(a element.Annotation) Predicate {
	return func(g *element.Graph, e element.Element) bool { return g.HasAnnotation(e, a) }
}

// Inner accepts elements with both inner incoming and inner outgoing edges.
func Inner() Predicate {
	return func(g *element.Graph, e element.Element) bool {
		return len(g.InnerIncoming(e)) > 0 && len(g.InnerOutgoing(e)) > 0
	}
}

// Source accepts elements without inner incoming edges.
func Source() Predicate {
	return func(g *element.Graph, e element.Element) bool { return len(g.InnerIncoming(e)) == 0 }
}

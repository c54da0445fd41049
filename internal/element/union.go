package element

type edgeKey struct {
	from, to Element
	scope    *Scope
}

func innerEdgeKeys(g *Graph) map[edgeKey]bool {
	keys := make(map[edgeKey]bool)
	for _, ed := range g.Edges() {
		if IsExtent(ed.From) || IsExtent(ed.To) {
			continue
		}
		keys[edgeKey{ed.From, ed.To, ed.Scope}] = true
	}
	return keys
}

// Union merges graphs into one, keeping the first-seen vertex order and
// dropping duplicate edges. Sentinel edges are rebuilt.
func Union(graphs ...*Graph) *Graph {
	u := NewGraph()
	seen := make(map[edgeKey]bool)
	for _, g := range graphs {
		for _, e := range g.Elements() {
			u.AddVertex(e)
			u.annotations[e] |= g.annotations[e]
		}
	}
	for _, g := range graphs {
		for _, ed := range g.Edges() {
			if IsExtent(ed.From) || IsExtent(ed.To) {
				continue
			}
			k := edgeKey{ed.From, ed.To, ed.Scope}
			if seen[k] {
				continue
			}
			seen[k] = true
			u.MustAddEdge(ed.From, ed.To, ed.Scope)
		}
	}
	u.Normalize()
	return u
}

// SameStructure reports whether both graphs hold the same elements and the
// same inner edges. Sentinel edges are derived data and are ignored.
func SameStructure(a, b *Graph) bool {
	av, bv := a.Elements(), b.Elements()
	if len(av) != len(bv) {
		return false
	}
	for _, e := range av {
		if !b.Contains(e) {
			return false
		}
	}
	ak, bk := innerEdgeKeys(a), innerEdgeKeys(b)
	if len(ak) != len(bk) {
		return false
	}
	for k := range ak {
		if !bk[k] {
			return false
		}
	}
	return true
}

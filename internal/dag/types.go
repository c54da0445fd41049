package dag

import "sync"

// Graph is a dependency graph over string IDs, safe for concurrent use.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	// order is the insertion order; it breaks ties between ready nodes.
	order []string
}

type node struct {
	id         string
	deps       map[string]*node
	dependents map[string]*node
}

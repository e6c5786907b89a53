package dag

import "sync"

// Graph is a collection of nodes and their dependencies, representing a DAG.
// An edge from a to b means a must run before b. All operations on the graph
// are concurrency-safe.
type Graph struct {
	// mutex protects the nodes map during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// removals logs every RemoveVertex call so running traversals can
	// catch up without rescanning the graph.
	removals []removal
}

// removal records a removed vertex and its successors at the time.
type removal struct {
	id         string
	dependents []string
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using string IDs),
// not by direct struct manipulation.
type node struct {
	// id is the unique identifier for the node.
	id string
	// deps holds the set of nodes that this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the set of nodes that depend on this node (successors).
	dependents map[string]*node
}

// Stages is a single-use, Kahn-style traversal over a Graph. Each call to
// Next yields one frontier: the vertices whose predecessors have all been
// returned by earlier calls. See NewStages.
type Stages struct {
	graph   *Graph
	started bool
	// pending counts, per vertex not yet returned, its predecessors that
	// were not returned either.
	pending map[string]int
	// ready holds the pending vertices whose count dropped to zero.
	ready map[string]struct{}
	// emitted holds every vertex already returned in a stage.
	emitted map[string]struct{}
	// cursor is the number of graph removals already applied.
	cursor int
	// count is the number of stages returned so far.
	count int
	done  bool
	err   error
}

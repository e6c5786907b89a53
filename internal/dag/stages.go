package dag

import (
	"fmt"
	"sort"
)

// NewStages creates a staged traversal over g. The vertex set and in-degrees
// are taken from the graph on the first call to Next. Vertices removed after
// that are honored by later calls: they never show up in a later stage, and
// the stages already returned stay valid. Vertices or edges added during the
// traversal are not seen.
//
// A Stages value is consumed exactly once. To start over, build a new one.
func NewStages(g *Graph) *Stages {
	return &Stages{
		graph:   g,
		pending: make(map[string]int),
		ready:   make(map[string]struct{}),
		emitted: make(map[string]struct{}),
	}
}

// Next returns the next frontier, sorted by ID, and true. It returns nil and
// false once every remaining vertex has been returned, or when the remaining
// vertices cannot be ordered because they form a cycle (see Err).
func (s *Stages) Next() ([]string, bool) {
	if s.done {
		return nil, false
	}

	s.graph.mutex.RLock()
	defer s.graph.mutex.RUnlock()

	if !s.started {
		s.start()
	}
	s.applyRemovals()

	if len(s.ready) == 0 {
		s.done = true
		if len(s.pending) > 0 {
			s.err = fmt.Errorf("%w: %d node(s) unreachable after stage %d", ErrCycle, len(s.pending), s.count)
		}
		return nil, false
	}

	frontier := make([]string, 0, len(s.ready))
	for id := range s.ready {
		frontier = append(frontier, id)
	}
	s.ready = make(map[string]struct{})

	// The frontier is a snapshot: successors are released before the caller
	// gets a chance to mutate the graph.
	for _, id := range frontier {
		delete(s.pending, id)
		s.emitted[id] = struct{}{}
		for childID := range s.graph.nodes[id].dependents {
			s.release(childID)
		}
	}
	s.count++
	sort.Strings(frontier)
	return frontier, true
}

// start records the in-degree of every vertex. Removals that happened before
// the traversal began are already reflected in the graph.
func (s *Stages) start() {
	s.started = true
	s.cursor = len(s.graph.removals)
	for id, n := range s.graph.nodes {
		s.pending[id] = len(n.deps)
		if len(n.deps) == 0 {
			s.ready[id] = struct{}{}
		}
	}
}

// applyRemovals catches up with vertices removed since the last call. A
// removed vertex that was already returned had released its successors; one
// that was not is dropped and releases them now.
func (s *Stages) applyRemovals() {
	for _, r := range s.graph.removals[s.cursor:] {
		if _, ok := s.pending[r.id]; !ok {
			continue
		}
		delete(s.pending, r.id)
		delete(s.ready, r.id)
		for _, childID := range r.dependents {
			s.release(childID)
		}
	}
	s.cursor = len(s.graph.removals)
}

// release drops one unreturned predecessor from id's count.
func (s *Stages) release(id string) {
	left, ok := s.pending[id]
	if !ok {
		return
	}
	left--
	s.pending[id] = left
	if left == 0 {
		s.ready[id] = struct{}{}
	}
}

// Drain consumes every remaining stage and returns their vertices in stage
// order.
func (s *Stages) Drain() []string {
	var all []string
	for {
		stage, ok := s.Next()
		if !ok {
			return all
		}
		all = append(all, stage...)
	}
}

// Count returns how many stages have been returned so far.
func (s *Stages) Count() int {
	return s.count
}

// Err returns a non-nil error wrapping ErrCycle if the traversal stopped with
// vertices that could never become ready.
func (s *Stages) Err() error {
	return s.err
}

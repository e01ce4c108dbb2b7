// Package reachability computes the set of symbols transitively reachable
// from a set of seed symbols over the outgoing edges of a symbol graph.
package reachability

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/reaper/pkg/graph"
)

// Strategy selects the worklist discipline. Both strategies yield the same set.
type Strategy int

const (
	// DepthFirst uses a stack.
	DepthFirst Strategy = iota
	// BreadthFirst uses a queue.
	BreadthFirst
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case BreadthFirst:
		return "breadth-first"
	default:
		return "depth-first"
	}
}

type options struct {
	strategy Strategy
	// order permutes successor lists before they are pushed; nil keeps graph order.
	order func(targets []string) []string
}

// Option configures MarkFrom.
type Option func(*options)

// WithStrategy sets the traversal strategy.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
	}
}

// withSuccessorOrder lets tests permute edge iteration order.
func withSuccessorOrder(fn func(targets []string) []string) Option {
	return func(o *options) {
		o.order = fn
	}
}

// Set is the reachable subset of a graph's nodes.
type Set struct {
	g       *graph.Graph
	bitmap  *roaring.Bitmap
	missing []string
}

// MarkFrom returns every node reachable from seeds, seeds included. Seeds
// that are not nodes of g are ignored and reported by Set.Missing. Edges
// whose target is not a node are skipped.
func MarkFrom(g *graph.Graph, seeds []string, opts ...Option) *Set {
	o := options{strategy: DepthFirst}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Set{g: g, bitmap: roaring.New()}
	work := make([]uint32, 0, len(seeds))

	missing := make(map[string]struct{})
	for _, id := range seeds {
		idx, ok := g.Index(id)
		if !ok {
			missing[id] = struct{}{}
			continue
		}
		if s.bitmap.CheckedAdd(uint32(idx)) {
			work = append(work, uint32(idx))
		}
	}
	for id := range missing {
		s.missing = append(s.missing, id)
	}
	sort.Strings(s.missing)

	head := 0
	for head < len(work) {
		var current uint32
		if o.strategy == BreadthFirst {
			current = work[head]
			head++
		} else {
			current = work[len(work)-1]
			work = work[:len(work)-1]
		}

		targets := g.Successors(g.ID(int(current)))
		if o.order != nil {
			targets = o.order(targets)
		}
		for _, to := range targets {
			idx, ok := g.Index(to)
			if !ok {
				continue
			}
			if s.bitmap.CheckedAdd(uint32(idx)) {
				work = append(work, uint32(idx))
			}
		}
	}

	return s
}

// Contains reports whether id is reachable.
func (s *Set) Contains(id string) bool {
	idx, ok := s.g.Index(id)
	if !ok {
		return false
	}
	return s.bitmap.Contains(uint32(idx))
}

// Len returns the number of reachable nodes.
func (s *Set) Len() int {
	return int(s.bitmap.GetCardinality())
}

// IDs returns the reachable ids in ascending order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, s.Len())
	it := s.bitmap.Iterator()
	for it.HasNext() {
		ids = append(ids, s.g.ID(int(it.Next())))
	}
	return ids
}

// Missing returns the seeds that were not nodes of the graph, sorted.
func (s *Set) Missing() []string {
	return s.missing
}

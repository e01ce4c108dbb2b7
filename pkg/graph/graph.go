// Package graph holds the symbol graph: declared symbols as nodes and
// potential-call relationships as directed edges.
//
// Construction happens on a Builder. Freeze turns the builder into an
// immutable Graph that reachability and classification read from. A Builder
// must only be written by one goroutine; a frozen Graph is safe for
// concurrent reads.
package graph

import (
	"fmt"
	"slices"
	"sort"
)

// Kind classifies a declared symbol.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindMethod   Kind = "method"
)

// LineRange is the inclusive 1-based line span of a declaration.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// String renders the range as "start-end".
func (r LineRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Symbol is a declared function, class or method.
type Symbol struct {
	ID    string    `json:"id"`
	Kind  Kind      `json:"kind"`
	File  string    `json:"file"`
	Lines LineRange `json:"lines"`
}

// Edge is a directed reference from one symbol id to another.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Builder accumulates nodes and edges. It is append-only.
type Builder struct {
	nodes map[string]Symbol
	edges map[string]map[string]struct{}
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]Symbol),
		edges: make(map[string]map[string]struct{}),
	}
}

// AddNode inserts a symbol, overwriting the metadata of an existing id.
func (b *Builder) AddNode(id string, kind Kind, file string, lines LineRange) {
	b.nodes[id] = Symbol{ID: id, Kind: kind, File: file, Lines: lines}
}

// AddEdge records from -> to. Neither endpoint has to exist as a node.
// Duplicate edges collapse into one.
func (b *Builder) AddEdge(from, to string) {
	targets, ok := b.edges[from]
	if !ok {
		targets = make(map[string]struct{})
		b.edges[from] = targets
	}
	targets[to] = struct{}{}
}

// Len returns the number of declared nodes.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// Freeze produces the read-only graph. The builder may keep being used
// afterwards; later writes do not affect the returned Graph.
func (b *Builder) Freeze() *Graph {
	g := &Graph{
		ids:   make([]string, 0, len(b.nodes)),
		index: make(map[string]int, len(b.nodes)),
		succ:  make(map[string][]string, len(b.edges)),
	}

	for id := range b.nodes {
		g.ids = append(g.ids, id)
	}
	sort.Strings(g.ids)

	g.nodes = make([]Symbol, len(g.ids))
	for i, id := range g.ids {
		g.index[id] = i
		g.nodes[i] = b.nodes[id]
	}

	for from, targets := range b.edges {
		list := make([]string, 0, len(targets))
		for to := range targets {
			list = append(list, to)
		}
		sort.Strings(list)
		g.succ[from] = list
		g.edgeCount += len(list)
	}

	return g
}

// Graph is an immutable symbol graph. Every node has a dense index in
// [0, Len()) assigned in ascending id order.
type Graph struct {
	ids       []string
	index     map[string]int
	nodes     []Symbol
	succ      map[string][]string
	edgeCount int
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.ids)
}

// Node looks up a symbol by id.
func (g *Graph) Node(id string) (Symbol, bool) {
	i, ok := g.index[id]
	if !ok {
		return Symbol{}, false
	}
	return g.nodes[i], true
}

// Nodes returns all symbols sorted by id.
func (g *Graph) Nodes() []Symbol {
	return slices.Clone(g.nodes)
}

// Index returns the dense index of id.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// ID returns the id at dense index i.
func (g *Graph) ID(i int) string {
	return g.ids[i]
}

// Successors returns the sorted edge targets of id, including targets
// that are not nodes. The slice is shared and must not be modified.
func (g *Graph) Successors(id string) []string {
	return g.succ[id]
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// Edges returns every edge ordered by source then target.
func (g *Graph) Edges() []Edge {
	sources := make([]string, 0, len(g.succ))
	for from := range g.succ {
		sources = append(sources, from)
	}
	sort.Strings(sources)

	edges := make([]Edge, 0, g.edgeCount)
	for _, from := range sources {
		for _, to := range g.succ[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Files returns the distinct defining files of all nodes, sorted.
func (g *Graph) Files() []string {
	seen := make(map[string]struct{})
	var files []string
	for _, n := range g.nodes {
		if _, ok := seen[n.File]; ok {
			continue
		}
		seen[n.File] = struct{}{}
		files = append(files, n.File)
	}
	sort.Strings(files)
	return files
}

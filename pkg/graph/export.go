package graph

import (
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ToDirected converts the graph into a gonum directed graph whose node ids
// are the dense indices of g. Dangling edges and self-loops are dropped
// (gonum simple graphs do not support self-loops).
func (g *Graph) ToDirected() *simple.DirectedGraph {
	return g.directed(nil, func(i int) gonum.Node { return simple.Node(int64(i)) })
}

func (g *Graph) directed(keep func(id string) bool, mk func(i int) gonum.Node) *simple.DirectedGraph {
	dg := simple.NewDirectedGraph()
	nodes := make([]gonum.Node, len(g.ids))
	for i, id := range g.ids {
		if keep != nil && !keep(id) {
			continue
		}
		nodes[i] = mk(i)
		dg.AddNode(nodes[i])
	}

	for from, targets := range g.succ {
		fi, ok := g.index[from]
		if !ok || nodes[fi] == nil {
			continue
		}
		for _, to := range targets {
			ti, ok := g.index[to]
			if !ok || ti == fi || nodes[ti] == nil {
				continue
			}
			dg.SetEdge(dg.NewEdge(nodes[fi], nodes[ti]))
		}
	}
	return dg
}

// dotNode carries the symbol id and liveness into the DOT encoder.
type dotNode struct {
	id   int64
	sym  Symbol
	live bool
}

func (n dotNode) ID() int64 { return n.id }

func (n dotNode) DOTID() string { return n.sym.ID }

func (n dotNode) Attributes() []encoding.Attribute {
	color := "firebrick"
	if n.live {
		color = "forestgreen"
	}
	shape := "ellipse"
	switch n.sym.Kind {
	case KindClass:
		shape = "box"
	case KindMethod:
		shape = "oval"
	}
	return []encoding.Attribute{
		{Key: "color", Value: color},
		{Key: "shape", Value: shape},
		{Key: "tooltip", Value: n.sym.File + ":" + n.sym.Lines.String()},
	}
}

// MarshalDOT renders the graph in Graphviz DOT format. isLive colours each
// node; when include is non-nil only nodes it accepts are emitted.
func (g *Graph) MarshalDOT(name string, isLive, include func(id string) bool) ([]byte, error) {
	dg := g.directed(include, func(i int) gonum.Node {
		live := false
		if isLive != nil {
			live = isLive(g.ids[i])
		}
		return dotNode{id: int64(i), sym: g.nodes[i], live: live}
	})
	return dot.Marshal(dg, name, "", "  ")
}

// Cycles returns the strongly connected components among the nodes accepted
// by filter that contain a cycle: components with more than one member, or
// a single node that references itself. Each cycle is sorted by id and the
// cycles are ordered by their first id.
func (g *Graph) Cycles(filter func(id string) bool) [][]string {
	dg := g.directed(filter, func(i int) gonum.Node { return simple.Node(int64(i)) })

	var cycles [][]string
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) == 1 && !g.selfLoop(g.ids[scc[0].ID()]) {
			continue
		}
		ids := make([]string, 0, len(scc))
		for _, n := range scc {
			ids = append(ids, g.ids[n.ID()])
		}
		sort.Strings(ids)
		cycles = append(cycles, ids)
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i][0] < cycles[j][0]
	})
	return cycles
}

func (g *Graph) selfLoop(id string) bool {
	targets := g.succ[id]
	i := sort.SearchStrings(targets, id)
	return i < len(targets) && targets[i] == id
}

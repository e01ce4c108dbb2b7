package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/reaper/internal/output"
	"github.com/panbanda/reaper/internal/service/scan"
	"github.com/panbanda/reaper/pkg/graph"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "Export the symbol graph (DOT, or nodes and edges with --format json), or list dead cycles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "Project root (default: the config file's directory)",
			},
			&cli.BoolFlag{
				Name:  "dead-only",
				Usage: "Only emit unreachable symbols",
			},
			&cli.BoolFlag{
				Name:  "cycles",
				Usage: "List groups of dead symbols that only reference each other",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the fragment cache",
			},
		},
		Action: runGraphCmd,
	}
}

func runGraphCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	svc := scan.New(
		scan.WithConfig(cfg),
		scan.WithLogger(newLogger(c)),
		scan.WithRoot(rootDir(c, cfg)),
	)
	res, err := svc.Run(c.Context, scan.Options{NoCache: c.Bool("no-cache")})
	if err != nil {
		return err
	}

	isLive := res.Reachable.Contains
	isDead := func(id string) bool { return !isLive(id) }
	formatter := newFormatter(c)

	if c.Bool("cycles") {
		cycles := res.Graph.Cycles(isDead)
		if formatter.Format().Structured() {
			return formatter.Output(struct {
				Cycles [][]string `json:"cycles" toon:"cycles"`
			}{Cycles: cycles})
		}
		if len(cycles) == 0 {
			formatter.Info("No dead cycles found.")
			return nil
		}
		rows := make([][]string, 0, len(cycles))
		for i, cycle := range cycles {
			rows = append(rows, []string{strconv.Itoa(i + 1), strconv.Itoa(len(cycle)), strings.Join(cycle, ", ")})
		}
		return formatter.Output(output.NewTable("Dead cycles", []string{"#", "Size", "Symbols"}, rows, nil, cycles))
	}

	var include func(string) bool
	if c.Bool("dead-only") {
		include = isDead
	}
	if formatter.Format().Structured() {
		return formatter.Output(newGraphOutput(res.Graph, isLive, include))
	}
	data, err := res.Graph.MarshalDOT("reaper", isLive, include)
	if err != nil {
		return fmt.Errorf("encoding DOT: %w", err)
	}
	_, err = fmt.Fprintln(formatter.Writer(), string(data))
	return err
}

type graphNode struct {
	graph.Symbol
	Live bool `json:"live" toon:"live"`
}

type graphOutput struct {
	Nodes []graphNode  `json:"nodes" toon:"nodes"`
	Edges []graph.Edge `json:"edges" toon:"edges"`
}

// newGraphOutput lists the nodes passing include along with the edges
// between them. A nil include keeps every node and every edge, including
// edges to undeclared symbols.
func newGraphOutput(g *graph.Graph, isLive, include func(string) bool) graphOutput {
	out := graphOutput{Nodes: []graphNode{}, Edges: []graph.Edge{}}
	kept := make(map[string]bool)
	for _, sym := range g.Nodes() {
		if include != nil && !include(sym.ID) {
			continue
		}
		kept[sym.ID] = true
		out.Nodes = append(out.Nodes, graphNode{Symbol: sym, Live: isLive(sym.ID)})
	}
	for _, e := range g.Edges() {
		if include == nil || kept[e.From] && kept[e.To] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

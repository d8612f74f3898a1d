package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jettylabs/jetty-access-control/internal/graphstore"
	"github.com/jettylabs/jetty-access-control/internal/model"
	"github.com/jettylabs/jetty-access-control/internal/traverse"
)

// subgraphCmd extracts and prints the induced neighborhood of one node
// (spec §4.6c), addressed by the same rendering NodeName.String()
// produces everywhere else in logs and the HTTP surface — e.g.
// `User(ada@example.com)` or `Group(sales@snowflake)`.
var subgraphCmd = &cobra.Command{
	Use:   "subgraph <node>",
	Short: "Print the induced subgraph reachable from a node",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubgraph,
}

var (
	subgraphDepth   int
	subgraphNoFetch bool
)

func init() {
	subgraphCmd.Flags().IntVar(&subgraphDepth, "depth", 2, "BFS depth bound")
	subgraphCmd.Flags().BoolVar(&subgraphNoFetch, "no-fetch", false, "reuse the last persisted graph instead of fetching")
}

func runSubgraph(cmd *cobra.Command, args []string) error {
	name, err := parseNodeNameArg(args[0])
	if err != nil {
		return err
	}

	graph, err := resolveGraph(cmd, subgraphNoFetch)
	if err != nil {
		return err
	}

	seed, ok := graph.GetHandle(name)
	if !ok {
		return fmt.Errorf("node %s not found in graph", name.String())
	}

	sub := traverse.ExtractSubgraph(graph, seed, subgraphDepth)
	return json.NewEncoder(cmd.OutOrStdout()).Encode(renderSubgraph(graph, sub))
}

type subgraphNode struct {
	Name string `json:"name"`
}

type subgraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

type subgraphView struct {
	Nodes []subgraphNode `json:"nodes"`
	Edges []subgraphEdge `json:"edges"`
}

func renderSubgraph(graph *graphstore.Graph, sub traverse.Subgraph) subgraphView {
	view := subgraphView{
		Nodes: make([]subgraphNode, 0, len(sub.Nodes)),
		Edges: make([]subgraphEdge, 0, len(sub.Edges)),
	}
	for _, h := range sub.Nodes {
		view.Nodes = append(view.Nodes, subgraphNode{Name: graph.Node(h).Name().String()})
	}
	for _, e := range sub.Edges {
		view.Edges = append(view.Edges, subgraphEdge{
			From: graph.Node(e.From).Name().String(),
			To:   graph.Node(e.To).Name().String(),
			Kind: e.Kind.String(),
		})
	}
	return view
}

// parseNodeNameArg parses a NodeName rendered the way NodeName.String()
// renders it: Kind(payload). Only the variants a CLI user would
// plausibly type by hand are supported — Policy/DefaultPolicy/
// PolicyAgent names are synthesized from canonical fingerprints and
// aren't meant to be hand-typed.
func parseNodeNameArg(s string) (model.NodeName, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return model.NodeName{}, fmt.Errorf("invalid node reference %q: want Kind(payload)", s)
	}
	kind := s[:open]
	payload := s[open+1 : len(s)-1]

	switch kind {
	case "User":
		return model.UserName(payload), nil
	case "Group":
		name, origin, ok := strings.Cut(payload, "@")
		if !ok {
			return model.NodeName{}, fmt.Errorf("invalid group reference %q: want Group(name@origin)", s)
		}
		return model.GroupNodeName(name, origin), nil
	case "Asset":
		return model.AssetName(payload), nil
	case "Tag":
		return model.TagName(payload), nil
	default:
		return model.NodeName{}, fmt.Errorf("unsupported node kind %q (use User/Group/Asset/Tag)", kind)
	}
}

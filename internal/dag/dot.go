package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Dot renders the graph in Graphviz DOT format. Edges point from a
// resource to the resources it depends on, matching how people read
// dependency graphs.
func (g *Graph) Dot() string {
	var b strings.Builder
	b.WriteString("digraph {\n")
	b.WriteString("  rankdir = \"BT\"\n")

	nodes := make([]string, 0, len(g.Nodes))
	for n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	for _, n := range nodes {
		fmt.Fprintf(&b, "  %q\n", n)
	}
	for _, dep := range nodes {
		dependents := make([]string, len(g.Edges[dep]))
		copy(dependents, g.Edges[dep])
		sort.Strings(dependents)
		for _, node := range dependents {
			fmt.Fprintf(&b, "  %q -> %q\n", node, dep)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

package dag

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a directed acyclic graph of resource addresses.
// An edge A -> B means B depends on A, so A must be handled first.
type Graph struct {
	Nodes    map[string]bool
	Edges    map[string][]string // adjacency: node -> dependents
	InDegree map[string]int
}

func New() *Graph {
	return &Graph{
		Nodes:    make(map[string]bool),
		Edges:    make(map[string][]string),
		InDegree: make(map[string]int),
	}
}

// Add registers a node. Adding the same node twice is an error so that
// duplicate resource addresses surface early.
func (g *Graph) Add(node string) error {
	if g.Nodes[node] {
		return fmt.Errorf("duplicate resource address: %s", node)
	}
	g.Nodes[node] = true
	if g.Edges[node] == nil {
		g.Edges[node] = []string{}
	}
	g.InDegree[node] = 0
	return nil
}

// Depend records that node depends on dep. Both must already be added.
func (g *Graph) Depend(node, dep string) error {
	if !g.Nodes[node] {
		return fmt.Errorf("unknown resource: %s", node)
	}
	if !g.Nodes[dep] {
		return fmt.Errorf("resource %q depends on unknown resource %q", node, dep)
	}
	if node == dep {
		return fmt.Errorf("resource %q depends on itself", node)
	}
	g.Edges[dep] = append(g.Edges[dep], node)
	g.InDegree[node]++
	return nil
}

// Layers returns a layered topological order (Kahn's algorithm).
// All nodes within a layer are independent of each other and can be
// processed in parallel. Layers and their members are sorted by name
// so the result is deterministic for a given graph.
func (g *Graph) Layers() ([][]string, error) {
	inDegree := make(map[string]int, len(g.InDegree))
	for k, v := range g.InDegree {
		inDegree[k] = v
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var layers [][]string
	processed := 0

	for len(queue) > 0 {
		// The whole queue snapshot forms one layer; new zero-degree
		// nodes are collected for the next one.
		layer := make([]string, len(queue))
		copy(layer, queue)

		var next []string
		for _, node := range layer {
			processed++
			for _, dependent := range g.Edges[node] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}

		layers = append(layers, layer)
		sort.Strings(next)
		queue = next
	}

	if processed != len(g.Nodes) {
		return nil, fmt.Errorf("circular dependency detected between: %s", strings.Join(g.cycleMembers(), ", "))
	}

	return layers, nil
}

// ReverseOrder returns a flat ordering in which every node comes before
// its own dependencies. Used for destroy: dependents go first.
func (g *Graph) ReverseOrder() ([]string, error) {
	layers, err := g.Layers()
	if err != nil {
		return nil, err
	}
	var order []string
	for i := len(layers) - 1; i >= 0; i-- {
		order = append(order, layers[i]...)
	}
	return order, nil
}

// cycleMembers returns the nodes that never reached in-degree zero.
// Only called after Layers detected a cycle.
func (g *Graph) cycleMembers() []string {
	inDegree := make(map[string]int, len(g.InDegree))
	for k, v := range g.InDegree {
		inDegree[k] = v
	}

	queue := []string{}
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, dependent := range g.Edges[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	var members []string
	for name, degree := range inDegree {
		if degree > 0 {
			members = append(members, name)
		}
	}
	sort.Strings(members)
	return members
}

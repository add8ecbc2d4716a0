// Package graph computes a safe, cycle-free, depth-limited build order for
// nested catalog attachments, with build-once caching per run.
package graph

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Graph is the serializable attachment graph: canonical config paths as
// nodes, attachment references as edges. It backs the diagnostics surface.
type Graph struct {
	nodes map[string]*Node
	edges map[string][]string // parent config -> attached child configs
}

// Node is one catalog config in the attachment graph.
type Node struct {
	// Key is the canonical config path.
	Key string `json:"key"`
	// Alias the node is attached under (empty for the root).
	Alias string `json:"alias,omitempty"`
	// Artifact is the built (or planned, in dry-run) database path.
	Artifact string `json:"artifact,omitempty"`
	// Reused marks nodes attached more than once and built exactly once.
	Reused bool `json:"reused,omitempty"`
}

// NewGraph creates an empty attachment graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]string),
	}
}

// AddNode adds a node, keeping the existing one if already present.
func (g *Graph) AddNode(key string) *Node {
	if n, ok := g.nodes[key]; ok {
		return n
	}
	n := &Node{Key: key}
	g.nodes[key] = n
	return n
}

// AddEdge records that parent attaches child. Both nodes must exist.
func (g *Graph) AddEdge(parent, child string) error {
	if _, ok := g.nodes[parent]; !ok {
		return fmt.Errorf("graph: unknown parent %q", parent)
	}
	if _, ok := g.nodes[child]; !ok {
		return fmt.Errorf("graph: unknown child %q", child)
	}
	for _, c := range g.edges[parent] {
		if c == child {
			return nil
		}
	}
	g.edges[parent] = append(g.edges[parent], child)
	return nil
}

// Node returns the node for key, if present.
func (g *Graph) Node(key string) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Nodes returns all nodes sorted by key.
func (g *Graph) Nodes() []*Node {
	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	nodes := make([]*Node, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, g.nodes[k])
	}
	return nodes
}

// Children returns the configs attached by key, in insertion order.
func (g *Graph) Children(key string) []string {
	return g.edges[key]
}

// MarshalJSON renders the graph with deterministic node/edge ordering.
func (g *Graph) MarshalJSON() ([]byte, error) {
	type edge struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	out := struct {
		Nodes []*Node `json:"nodes"`
		Edges []edge  `json:"edges"`
	}{}

	keys := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.Nodes = append(out.Nodes, g.nodes[k])
	}
	for _, from := range keys {
		for _, to := range g.edges[from] {
			out.Edges = append(out.Edges, edge{From: from, To: to})
		}
	}
	return json.Marshal(out)
}

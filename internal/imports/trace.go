package imports

import "sort"

// Trace is the serializable import graph recorded during resolution.
// Nodes are canonical fragment keys; edges are import relationships.
// It feeds the diagnostics surface consumed by CLI tooling.
type Trace struct {
	Nodes  []TraceNode `json:"nodes"`
	Edges  []TraceEdge `json:"edges"`
	Cycles [][]string  `json:"cycles,omitempty"`

	index map[string]int
	edges map[TraceEdge]bool
}

// TraceNode is one fragment in the import graph.
type TraceNode struct {
	Key string `json:"key"`
	// Root marks the top-level entry fragment.
	Root bool `json:"root,omitempty"`
	// Reused marks fragments imported more than once and served from cache.
	Reused bool `json:"reused,omitempty"`
}

// TraceEdge is one import relationship between fragments.
type TraceEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func newTrace() *Trace {
	return &Trace{
		index: make(map[string]int),
		edges: make(map[TraceEdge]bool),
	}
}

func (t *Trace) addNode(key string, root bool) {
	if i, ok := t.index[key]; ok {
		if root {
			t.Nodes[i].Root = true
		}
		return
	}
	t.index[key] = len(t.Nodes)
	t.Nodes = append(t.Nodes, TraceNode{Key: key, Root: root})
}

func (t *Trace) addEdge(from, to string) {
	e := TraceEdge{From: from, To: to}
	if t.edges[e] {
		return
	}
	t.edges[e] = true
	t.Edges = append(t.Edges, e)
}

func (t *Trace) markReused(key string) {
	if i, ok := t.index[key]; ok {
		t.Nodes[i].Reused = true
	}
}

func (t *Trace) markCycle(chain []string) {
	t.Cycles = append(t.Cycles, chain)
}

// Sorted returns a copy with nodes and edges in deterministic order.
func (t *Trace) Sorted() *Trace {
	out := &Trace{
		Nodes:  make([]TraceNode, len(t.Nodes)),
		Edges:  make([]TraceEdge, len(t.Edges)),
		Cycles: t.Cycles,
	}
	copy(out.Nodes, t.Nodes)
	copy(out.Edges, t.Edges)
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].Key < out.Nodes[j].Key })
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].From != out.Edges[j].From {
			return out.Edges[i].From < out.Edges[j].From
		}
		return out.Edges[i].To < out.Edges[j].To
	})
	return out
}

package models

// Graph is an id-addressable index over a flow's flat node and edge lists,
// built once per validation or execution pass.
type Graph struct {
	nodes    map[string]*Node
	outgoing map[string][]*Edge
}

// NewGraph builds the index for a flow. Edges referencing unknown nodes are
// still indexed; the validator reports them, and the engine never follows an
// edge whose target it cannot resolve.
func NewGraph(flow *Flow) *Graph {
	g := &Graph{
		nodes:    make(map[string]*Node, len(flow.Nodes)),
		outgoing: make(map[string][]*Edge, len(flow.Nodes)),
	}

	for _, node := range flow.Nodes {
		g.nodes[node.ID] = node
	}

	for _, edge := range flow.Edges {
		g.outgoing[edge.Source] = append(g.outgoing[edge.Source], edge)
	}

	return g
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.nodes[id]
}

// Outgoing returns all edges leaving the node.
func (g *Graph) Outgoing(nodeID string) []*Edge {
	return g.outgoing[nodeID]
}

// Next returns the target of the node's single outgoing edge, or ok=false
// when the node has none (implicit termination).
func (g *Graph) Next(nodeID string) (string, bool) {
	edges := g.outgoing[nodeID]
	if len(edges) == 0 {
		return "", false
	}

	return edges[0].Target, true
}

// Branch returns the target of the outgoing edge with the given source
// handle, or ok=false when that branch is not connected.
func (g *Graph) Branch(nodeID, handle string) (string, bool) {
	for _, edge := range g.outgoing[nodeID] {
		if edge.SourceHandle == handle {
			return edge.Target, true
		}
	}

	return "", false
}

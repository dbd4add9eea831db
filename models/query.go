package models

import (
	"fmt"
)

// NodeFilter is a function type used to filter nodes in queries
type NodeFilter func(node *Node) bool

// FindNodeByID returns a node by its ID
func (g *Graph) FindNodeByID(id string) (*Node, error) {
	if node, ok := g.Nodes[id]; ok {
		return node, nil
	}
	return nil, fmt.Errorf("node with ID %s not found", id)
}

// OutgoingEdges returns the indices of all edges originating from a node
func (g *Graph) OutgoingEdges(nodeID string) []int {
	var result []int
	for i, edge := range g.Edges {
		if edge.Source == nodeID {
			result = append(result, i)
		}
	}
	return result
}

// IncomingEdges returns the indices of all edges targeting a node
func (g *Graph) IncomingEdges(nodeID string) []int {
	var result []int
	for i, edge := range g.Edges {
		if edge.Target == nodeID {
			result = append(result, i)
		}
	}
	return result
}

// Children returns the ids of the direct children of a node in edge order
func (g *Graph) Children(nodeID string) []string {
	var result []string
	for _, i := range g.OutgoingEdges(nodeID) {
		result = append(result, g.Edges[i].Target)
	}
	return result
}

// Parents returns the ids of the direct parents of a node in edge order
func (g *Graph) Parents(nodeID string) []string {
	var result []string
	for _, i := range g.IncomingEdges(nodeID) {
		result = append(result, g.Edges[i].Source)
	}
	return result
}

// NodeIDs returns all node ids in depth-first order
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.Order))
	copy(ids, g.Order)
	return ids
}

// FilterNodes returns nodes that match the provided filter function
func (g *Graph) FilterNodes(filter NodeFilter) []*Node {
	var result []*Node
	for _, id := range g.Order {
		if node := g.Nodes[id]; filter(node) {
			result = append(result, node)
		}
	}
	return result
}

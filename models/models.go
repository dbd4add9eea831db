// Package models provides data structures for the topograph engine.
// It defines the page hierarchy the engine consumes and the normalized
// graph every view is built from.
package models

// Node radii by hierarchy level. Root nodes are drawn largest, branches
// smaller and leaves smallest.
const (
	RootRadius   = 18.0
	BranchRadius = 12.0
	LeafRadius   = 8.0
)

// TreeNode is one page of the externally supplied hierarchy
type TreeNode struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Level    int         `json:"level"`
	URL      string      `json:"url,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Node represents a node in the graph. Nodes are immutable once the
// graph has been built.
type Node struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Level  int     `json:"level"`
	URL    string  `json:"url,omitempty"`
	Radius float64 `json:"radius"`
}

// Edge represents a directed edge from a parent node to its child
type Edge struct {
	Source string `json:"source"` // ID of the parent node
	Target string `json:"target"` // ID of the child node
}

// Graph represents the nodes and edges of one view
type Graph struct {
	RootID string           `json:"root_id"`
	Nodes  map[string]*Node `json:"nodes"`
	Order  []string         `json:"order"` // node ids in depth-first order
	Edges  []Edge           `json:"edges"`
}

// RadiusForLevel returns the drawing radius for a hierarchy level
func RadiusForLevel(level int) float64 {
	switch {
	case level <= 0:
		return RootRadius
	case level == 1:
		return BranchRadius
	default:
		return LeafRadius
	}
}

package models

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Order: []string{},
		Edges: []Edge{},
	}
}

// NewNode creates a node for a hierarchy entry, deriving its radius from the level
func NewNode(id, label string, level int, url string) *Node {
	return &Node{
		ID:     id,
		Label:  label,
		Level:  level,
		URL:    url,
		Radius: RadiusForLevel(level),
	}
}

// AddNode adds a node to the graph. The first node added becomes the root.
// A node whose id is already present is ignored.
func (g *Graph) AddNode(node *Node) bool {
	if node == nil || node.ID == "" {
		return false
	}
	if _, exists := g.Nodes[node.ID]; exists {
		return false
	}
	g.Nodes[node.ID] = node
	g.Order = append(g.Order, node.ID)
	if g.RootID == "" {
		g.RootID = node.ID
	}
	return true
}

// AddEdge appends an edge to the graph. Edges whose endpoints are not both
// present are dropped.
func (g *Graph) AddEdge(edge Edge) bool {
	if _, ok := g.Nodes[edge.Source]; !ok {
		return false
	}
	if _, ok := g.Nodes[edge.Target]; !ok {
		return false
	}
	g.Edges = append(g.Edges, edge)
	return true
}

// BuildGraph flattens a hierarchy depth-first into a graph. Every tree node
// becomes a graph node and every parent-child relation an edge. Subtrees
// without an id are skipped together with their descendants.
func BuildGraph(tree *TreeNode) *Graph {
	g := NewGraph()
	if tree == nil {
		return g
	}

	var walk func(n *TreeNode, parent string)
	walk = func(n *TreeNode, parent string) {
		if n == nil || n.ID == "" {
			return
		}
		if !g.AddNode(NewNode(n.ID, n.Label, n.Level, n.URL)) {
			// duplicate id, keep the first occurrence
			return
		}
		if parent != "" {
			g.AddEdge(Edge{Source: parent, Target: n.ID})
		}
		for _, child := range n.Children {
			walk(child, n.ID)
		}
	}
	walk(tree, "")

	return g
}

// Subtree returns the hierarchy rooted at id
func Subtree(tree *TreeNode, id string) (*TreeNode, bool) {
	if tree == nil {
		return nil, false
	}
	if tree.ID == id {
		return tree, true
	}
	for _, child := range tree.Children {
		if found, ok := Subtree(child, id); ok {
			return found, true
		}
	}
	return nil, false
}

// Size returns the number of nodes in the hierarchy
func (t *TreeNode) Size() int {
	if t == nil {
		return 0
	}
	n := 1
	for _, child := range t.Children {
		n += child.Size()
	}
	return n
}

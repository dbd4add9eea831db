package ingest

import (
	"errors"

	"github.com/TFMV/topograph/models"
)

// ErrNoRoot is returned when no record can serve as the hierarchy root
var ErrNoRoot = errors.New("ingest: hierarchy has no root")

// SyntheticRootID is the id of the root added above several parentless records
const SyntheticRootID = "_root"

// Record is one page of a flat hierarchy. A record without a parent is a
// root candidate.
type Record struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Label    string `json:"label,omitempty"`
	Level    *int   `json:"level,omitempty"` // nil means the depth in the tree
	URL      string `json:"url,omitempty"`
}

// BuildTree links flat records into a nested hierarchy. Records keep their
// input order among siblings. Records with an empty or repeated id, records
// whose parent does not exist and records caught in a parent cycle are
// skipped. When more than one record has no parent, a synthetic root is
// placed above them.
func BuildTree(records []Record) (*models.TreeNode, error) {
	byID := make(map[string]Record, len(records))
	var order []string
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		if _, dup := byID[r.ID]; dup {
			continue
		}
		byID[r.ID] = r
		order = append(order, r.ID)
	}

	children := make(map[string][]string)
	var roots []string
	for _, id := range order {
		r := byID[id]
		switch {
		case r.ParentID == "" || r.ParentID == r.ID:
			roots = append(roots, id)
		default:
			if _, ok := byID[r.ParentID]; ok {
				children[r.ParentID] = append(children[r.ParentID], id)
			}
		}
	}

	if len(roots) == 0 {
		return nil, ErrNoRoot
	}

	visited := make(map[string]bool, len(order))
	var build func(id string, depth int) *models.TreeNode
	build = func(id string, depth int) *models.TreeNode {
		visited[id] = true
		r := byID[id]
		node := &models.TreeNode{
			ID:    r.ID,
			Label: r.Label,
			Level: depth,
			URL:   r.URL,
		}
		if node.Label == "" {
			node.Label = r.ID
		}
		if r.Level != nil {
			node.Level = *r.Level
		}
		for _, child := range children[id] {
			if visited[child] {
				continue
			}
			node.Children = append(node.Children, build(child, depth+1))
		}
		return node
	}

	if len(roots) == 1 {
		return build(roots[0], 0), nil
	}

	root := &models.TreeNode{ID: SyntheticRootID, Label: "Root"}
	for _, id := range roots {
		root.Children = append(root.Children, build(id, 1))
	}
	return root, nil
}

// Flatten lists the tree as records in depth-first order
func Flatten(tree *models.TreeNode) []Record {
	var out []Record
	var walk func(n *models.TreeNode, parent string)
	walk = func(n *models.TreeNode, parent string) {
		if n == nil || n.ID == "" {
			return
		}
		level := n.Level
		out = append(out, Record{
			ID:       n.ID,
			ParentID: parent,
			Label:    n.Label,
			Level:    &level,
			URL:      n.URL,
		})
		for _, c := range n.Children {
			walk(c, n.ID)
		}
	}
	walk(tree, "")
	return out
}

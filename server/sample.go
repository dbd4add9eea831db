package server

import "github.com/TFMV/topograph/models"

// SampleTree returns a small documentation site used by the demo page
func SampleTree() *models.TreeNode {
	leaf := func(id, label, url string) *models.TreeNode {
		return &models.TreeNode{ID: id, Label: label, Level: 2, URL: url}
	}
	return &models.TreeNode{
		ID:    "home",
		Label: "Home",
		URL:   "/",
		Children: []*models.TreeNode{
			{ID: "guide", Label: "Guide", Level: 1, URL: "/guide", Children: []*models.TreeNode{
				leaf("install", "Install", "/guide/install"),
				leaf("layout", "Layout", "/guide/layout"),
				leaf("interaction", "Interaction", "/guide/interaction"),
			}},
			{ID: "reference", Label: "Reference", Level: 1, URL: "/reference", Children: []*models.TreeNode{
				leaf("physics", "Physics", "/reference/physics"),
				leaf("highlight", "Highlight", "/reference/highlight"),
			}},
			{ID: "blog", Label: "Blog", Level: 1, URL: "/blog", Children: []*models.TreeNode{
				leaf("release", "Release notes", "/blog/release"),
			}},
			{ID: "about", Label: "About", Level: 1, URL: "/about"},
		},
	}
}

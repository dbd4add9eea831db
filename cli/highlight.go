package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/TFMV/topograph/highlight"
	"github.com/TFMV/topograph/ingest"
	"github.com/TFMV/topograph/models"
	"github.com/spf13/cobra"
)

// HighlightOptions holds flags for the highlight command
type HighlightOptions struct {
	Scope string
	JSON  bool
}

// HighlightResult is the JSON output of the highlight command
type HighlightResult struct {
	Focus string          `json:"focus"`
	Nodes []string        `json:"nodes"`
	Edges []HighlightEdge `json:"edges"`
	Path  []string        `json:"path"`
}

// HighlightEdge is one emphasized edge
type HighlightEdge struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// NewHighlightCommand creates the highlight command
func NewHighlightCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HighlightOptions{}

	cmd := &cobra.Command{
		Use:   "highlight <file> <node-id>",
		Short: "Show the ancestors and descendants of a node",
		Long: `Print the hierarchy with the highlight set of a focal node marked: the
node itself, every ancestor up to the root and every descendant.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHighlight(cmd, rootOpts, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&opts.Scope, "scope", "", "restrict to the sub-hierarchy under this node id")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the highlight set as JSON")

	return cmd
}

func runHighlight(cmd *cobra.Command, rootOpts *RootOptions, opts *HighlightOptions, path, focus string) error {
	if _, _, err := rootOpts.load(cmd); err != nil {
		return err
	}

	tree, err := ingest.LoadFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	if opts.Scope != "" {
		sub, ok := models.Subtree(tree, opts.Scope)
		if !ok {
			return &ExitError{Code: 1, Err: fmt.Errorf("scope node %q not found", opts.Scope)}
		}
		tree = sub
	}

	g := models.BuildGraph(tree)
	if _, err := g.FindNodeByID(focus); err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	set := highlight.Compute(g, focus)

	if opts.JSON {
		result := HighlightResult{
			Focus: focus,
			Nodes: set.NodeList(),
			Edges: make([]HighlightEdge, 0, len(set.EdgeIndices)),
			Path:  highlight.AncestorPath(g, focus),
		}
		for _, i := range set.EdgeList() {
			result.Edges = append(result.Edges, HighlightEdge{Index: i, Source: g.Edges[i].Source, Target: g.Edges[i].Target})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s\n", Brand.Sprint("focus"), focus)
	fmt.Fprintf(w, "%s %s\n\n", Subtle.Sprint("path "), strings.Join(highlight.AncestorPath(g, focus), " < "))
	printTree(w, tree, set, focus, 0)
	fmt.Fprintf(w, "\n%d of %d nodes, %d of %d edges\n", len(set.NodeIDs), len(g.Nodes), len(set.EdgeIndices), len(g.Edges))
	return nil
}

func printTree(w io.Writer, n *models.TreeNode, set highlight.Set, focus string, depth int) {
	indent := strings.Repeat("  ", depth)
	line := n.Label
	if line != n.ID {
		line = fmt.Sprintf("%s (%s)", n.Label, n.ID)
	}

	switch {
	case n.ID == focus:
		fmt.Fprintf(w, "%s%s %s\n", indent, Focal.Sprint("*"), Focal.Sprint(line))
	case set.HasNode(n.ID):
		fmt.Fprintf(w, "%s%s %s\n", indent, Lit.Sprint("+"), Lit.Sprint(line))
	default:
		fmt.Fprintf(w, "%s%s %s\n", indent, Subtle.Sprint("-"), Subtle.Sprint(line))
	}
	for _, c := range n.Children {
		printTree(w, c, set, focus, depth+1)
	}
}

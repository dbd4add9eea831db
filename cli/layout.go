package cli

import (
	"fmt"

	"github.com/TFMV/topograph/ingest"
	"github.com/TFMV/topograph/render"
	"github.com/TFMV/topograph/view"
	"github.com/spf13/cobra"
)

// LayoutOptions holds flags for the layout command
type LayoutOptions struct {
	Format     string
	View       string
	Scope      string
	Focus      string
	Theme      string
	Output     string
	Iterations int
	Title      string
	Timestamp  bool
}

// NewLayoutCommand creates the layout command
func NewLayoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LayoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout <file>",
		Short: "Settle a hierarchy offline and render it",
		Long: `Load a hierarchy (.json, .csv or a SQLite database), run the simulation
until it settles or the iteration limit is hit, then render the final frame.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "svg", fmt.Sprintf("output format %v", render.Formats()))
	cmd.Flags().StringVar(&opts.View, "view", "expanded", "view kind (compact|expanded)")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "lay out only the sub-hierarchy under this node id")
	cmd.Flags().StringVar(&opts.Focus, "focus", "", "node id to highlight")
	cmd.Flags().StringVar(&opts.Theme, "theme", "", "color theme (light|dark), defaults to the configured theme")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file, stdout when empty")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 0, "iteration limit, defaults to the configured limit")
	cmd.Flags().StringVar(&opts.Title, "title", "Topograph", "title for svg, ascii and html output")
	cmd.Flags().BoolVar(&opts.Timestamp, "timestamp", false, "stamp the output with the render time")

	return cmd
}

func runLayout(cmd *cobra.Command, rootOpts *RootOptions, opts *LayoutOptions, path string) error {
	cfg, logger, err := rootOpts.load(cmd)
	if err != nil {
		return err
	}

	renderer, err := render.GetRenderer(opts.Format)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	themeName := opts.Theme
	if themeName == "" {
		themeName = cfg.Layout.Theme
	}
	theme, err := render.ThemeByName(themeName)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	viewCfg, err := cfg.View(opts.View)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	viewCfg.Scope = opts.Scope

	tree, err := ingest.LoadFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	v, err := view.New(tree, viewCfg)
	if err != nil {
		return err
	}

	limit := cfg.Layout.MaxIterations
	if opts.Iterations > 0 {
		limit = opts.Iterations
	}
	iterations, energy := v.Settle(limit, cfg.Layout.StableThreshold)
	logger.Info("layout settled",
		"file", path,
		"nodes", len(v.Graph().Nodes),
		"iterations", iterations,
		"energy", energy,
		"stable", energy < cfg.Layout.StableThreshold)
	if opts.Focus != "" {
		if _, err := v.Graph().FindNodeByID(opts.Focus); err != nil {
			logger.Warn("focus ignored", "error", err)
		}
	}
	v.SetFocus(opts.Focus)

	out := render.NewDefaultOptions(opts.Format)
	out.Theme = theme
	out.Title = opts.Title
	out.Timestamp = opts.Timestamp

	data, err := renderer.Render(v.Frame(), out)
	if err != nil {
		return fmt.Errorf("render %s: %w", opts.Format, err)
	}
	if err := writeOutput(cmd, opts.Output, data); err != nil {
		return err
	}
	if opts.Output != "" && opts.Output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", Good.Sprint("wrote"), opts.Output)
	}
	return nil
}

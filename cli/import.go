package cli

import (
	"fmt"

	"github.com/TFMV/topograph/ingest"
	"github.com/spf13/cobra"
)

// ImportOptions holds flags for the import command
type ImportOptions struct {
	DBPath string
}

// NewImportCommand creates the import command
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a hierarchy into a SQLite page database",
		Long: `Load a hierarchy from .json or .csv and upsert its pages into a SQLite
database. Existing pages keep their position; new pages are appended.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "topograph.db", "SQLite database path")

	return cmd
}

func runImport(cmd *cobra.Command, rootOpts *RootOptions, opts *ImportOptions, path string) error {
	_, logger, err := rootOpts.load(cmd)
	if err != nil {
		return err
	}

	tree, err := ingest.LoadFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	records := ingest.Flatten(tree)

	src, err := ingest.OpenSQLite(opts.DBPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := src.Import(cmd.Context(), records); err != nil {
		return err
	}
	logger.Debug("pages imported", "file", path, "db", opts.DBPath, "pages", len(records))
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d pages into %s\n", Good.Sprint("imported"), len(records), opts.DBPath)
	return nil
}

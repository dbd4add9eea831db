// Package cli implements the topograph command line: offline layouts,
// highlight queries, SQLite imports and the live server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/TFMV/topograph/config"
	"github.com/TFMV/topograph/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "topograph",
		Short: "Force-directed hierarchy layouts",
		Long: `Topograph lays out site hierarchies with a force-directed simulation.

Layouts can be rendered offline as SVG, ASCII, JSON, DOT or HTML, or served
live so a browser can drag nodes and follow highlight paths.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level override (debug|info|warn|error)")

	cmd.AddCommand(NewLayoutCommand(opts))
	cmd.AddCommand(NewHighlightCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// Execute runs the command line and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(stderr, Bad.Sprint("error: ")+exitErr.Err.Error())
		}
		return exitErr.Code
	}
	fmt.Fprintln(stderr, Bad.Sprint("error: ")+err.Error())
	return 1
}

// load reads the configuration and builds the logger for a command. Logs
// go to the command's stderr so they never mix with rendered output.
func (o *RootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, nil, &ExitError{Code: 2, Err: err}
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	logCfg := cfg.Log
	logCfg.Writer = cmd.ErrOrStderr()
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, nil, &ExitError{Code: 2, Err: err}
	}
	return cfg, logger, nil
}

// writeOutput writes data to path, or to the command's stdout when path is
// empty or "-"
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

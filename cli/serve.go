package cli

import (
	"context"
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/TFMV/topograph/ingest"
	"github.com/TFMV/topograph/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// ServeOptions holds flags for the serve command. Empty values keep the
// configured settings.
type ServeOptions struct {
	Addr     string
	Data     string
	Watch    bool
	NoSample bool
}

// NewServeCommand creates the serve command
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve layouts and live views over HTTP",
		Long: `Start the HTTP server. With --data the hierarchy is served as the default
tree, and with --watch it is reloaded whenever the file changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address, defaults to the configured address")
	cmd.Flags().StringVar(&opts.Data, "data", "", "hierarchy file served as the default tree")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the data file when it changes")
	cmd.Flags().BoolVar(&opts.NoSample, "no-sample", false, "do not serve the built-in sample tree")

	return cmd
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions, opts *ServeOptions) error {
	cfg, logger, err := rootOpts.load(cmd)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Data != "" {
		cfg.Server.Data = opts.Data
	}
	if opts.Watch {
		cfg.Server.Watch = true
	}
	if opts.NoSample {
		cfg.Server.Sample = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := server.NewRegistry()
	if cfg.Server.Data != "" {
		tree, err := ingest.LoadFile(ctx, cfg.Server.Data)
		if err != nil {
			return err
		}
		if err := registry.Put(server.DefaultTreeID, filepath.Base(cfg.Server.Data), tree); err != nil {
			return err
		}
		logger.Info("hierarchy loaded", "file", cfg.Server.Data, "nodes", tree.Size())
	}

	srv := server.New(cfg, registry, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.Server.Data != "" && cfg.Server.Watch {
		w := server.NewWatcher(cfg.Server.Data, server.DefaultTreeID, registry,
			time.Duration(cfg.Server.DebounceMS)*time.Millisecond, logger)
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakecraft-labs/lakecraft/internal/cli/config"
	"github.com/lakecraft-labs/lakecraft/internal/graph"
	"github.com/lakecraft-labs/lakecraft/internal/imports"
	"github.com/lakecraft-labs/lakecraft/internal/state"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	DryRun   bool
	MaxDepth int
	Output   string
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build <config>",
		Short: "Build a catalog database from a config",
		Long: `Resolve a config's imports and attachments, then build its catalog
database along with every catalog it transitively attaches, children first.

With --dry-run, every statement is rendered and printed instead of executed;
no database files are created or modified.`,
		Example: `  # Build a catalog
  lakecraft build catalogs/analytics.yaml

  # Show the statements a build would run
  lakecraft build catalogs/analytics.yaml --dry-run

  # Build to an explicit output path
  lakecraft build catalogs/analytics.yaml --output /data/analytics.duckdb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Render statements without executing them")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "Maximum attachment nesting depth (overrides config)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output path for the root catalog database (not confined to --allow-root)")

	return cmd
}

func runBuild(cmd *cobra.Command, configPath string, opts *BuildOptions) error {
	cfg := config.Current()
	logger := config.GetLogger(cmd.Context())

	ctx := cmd.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	rootKey, err := p.valid.Resolve(configPath, "")
	if err != nil {
		return err
	}

	store, err := openStateStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.StartRun(rootKey, opts.DryRun)
	if err != nil {
		return err
	}

	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = cfg.MaxDepth
	}

	var sink *transcriptSink
	if opts.DryRun {
		sink = &transcriptSink{}
	}

	// The --output path is operator-supplied, not config content, so it is
	// not confined to the allowed roots.
	output := ""
	if opts.Output != "" {
		output, err = filepath.Abs(opts.Output)
		if err != nil {
			return err
		}
	}

	resolver := &graph.Resolver{
		Load:         p.loadFunc(imports.NewContext()),
		Build:        p.buildFunc(store, run.ID, sink, output),
		MaxDepth:     maxDepth,
		RootArtifact: output,
		Logger:       logger,
	}

	start := time.Now()
	result, err := resolver.Run(ctx, configPath)
	if err != nil {
		status := state.RunFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = state.RunCancelled
		}
		if ferr := store.FinishRun(run.ID, status, err.Error()); ferr != nil {
			logger.Warn("failed to record run outcome", "error", ferr)
		}
		return err
	}
	if err := store.FinishRun(run.ID, state.RunSuccess, ""); err != nil {
		logger.Warn("failed to record run outcome", "error", err)
	}

	out := cmd.OutOrStdout()
	if opts.DryRun {
		for _, entry := range sink.entries {
			fmt.Fprintf(out, "-- %s\n", entry.key)
			for _, stmt := range entry.statements {
				fmt.Fprintf(out, "%s;\n", stmt)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Dry run: %d catalogs, nothing executed\n", result.Graph.NodeCount())
		return nil
	}

	fmt.Fprintf(out, "Built %d catalogs in %s\n", result.Graph.NodeCount(), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "Artifact: %s\n", result.Artifact)
	return nil
}

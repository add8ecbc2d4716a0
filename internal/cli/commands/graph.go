package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lakecraft-labs/lakecraft/internal/cli/config"
	"github.com/lakecraft-labs/lakecraft/internal/graph"
	"github.com/lakecraft-labs/lakecraft/internal/imports"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	Format   string
	MaxDepth int
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph <config>",
		Short: "Show the attachment graph a build would traverse",
		Long: `Resolve a config and every catalog it transitively attaches, without
building anything, and show the resulting attachment graph with the
artifact path planned for each catalog.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Format, "format", "table", "Output format (table|json)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "Maximum attachment nesting depth (overrides config)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runGraph(cmd *cobra.Command, configPath string, opts *GraphOptions) error {
	cfg := config.Current()
	logger := config.GetLogger(cmd.Context())

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = cfg.MaxDepth
	}

	resolver := &graph.Resolver{
		Load:     p.loadFunc(imports.NewContext()),
		MaxDepth: maxDepth,
		DryRun:   true,
		Logger:   logger,
	}
	result, err := resolver.Run(cmd.Context(), configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch opts.Format {
	case "json":
		data, err := json.MarshalIndent(result.Graph, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	case "table":
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Config", "Alias", "Artifact", "Attaches", "Reused"})
		for _, n := range result.Graph.Nodes() {
			reused := ""
			if n.Reused {
				reused = "yes"
			}
			t.AppendRow(table.Row{
				n.Key,
				n.Alias,
				n.Artifact,
				strings.Join(result.Graph.Children(n.Key), ", "),
				reused,
			})
		}
		t.Render()
		fmt.Fprintf(out, "Total: %d catalogs\n", result.Graph.NodeCount())
		return nil
	default:
		return fmt.Errorf("unknown format: %s", opts.Format)
	}
}

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lakecraft-labs/lakecraft/internal/cli/config"
	intconfig "github.com/lakecraft-labs/lakecraft/internal/config"
	"github.com/lakecraft-labs/lakecraft/internal/imports"
)

// ResolveOptions holds options for the resolve command.
type ResolveOptions struct {
	JSON     bool
	Trace    bool
	Validate bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	opts := &ResolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <config>",
		Short: "Print a config after import resolution and merging",
		Long: `Resolve a config's imports recursively, deep-merge the fragments, and
print the resulting tree. Useful to see exactly what a build would consume.`,
		Example: `  # Print the merged config
  lakecraft resolve catalogs/analytics.yaml

  # Print the import graph instead
  lakecraft resolve catalogs/analytics.yaml --trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON instead of YAML")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "Output the import graph instead of the merged tree")
	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "Also decode and validate the merged tree")

	return cmd
}

func runResolve(cmd *cobra.Command, configPath string, opts *ResolveOptions) error {
	cfg := config.Current()
	logger := config.GetLogger(cmd.Context())

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	key, err := p.valid.Resolve(configPath, "")
	if err != nil {
		return err
	}

	rc := imports.NewContext()
	tree, err := p.resolver.Resolve(cmd.Context(), rc, key)
	if err != nil {
		return err
	}

	if opts.Validate {
		if _, err := intconfig.Decode(tree); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.Trace {
		data, err := json.MarshalIndent(rc.Graph().Sorted(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	if opts.JSON {
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	data, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	fmt.Fprint(out, string(data))
	return nil
}

// Package cli provides the command-line interface for Lakecraft.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lakecraft-labs/lakecraft/internal/cli/commands"
	"github.com/lakecraft-labs/lakecraft/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lakecraft",
		Short: "Lakecraft - declarative DuckDB catalog builder",
		Long: `Lakecraft builds DuckDB catalog databases from declarative YAML configs.

Configs import and deep-merge other configs, attach already-built catalogs,
register secrets, and declare views over files, tables, and queries. A build
resolves the whole attachment graph and constructs each catalog exactly once,
children before parents.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			var handler slog.Handler
			if cfg.LogFormat == "json" {
				handler = slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			} else {
				handler = slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			}
			logger := slog.New(handler)
			cmd.SetContext(config.WithLogger(cmd.Context(), logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					logger.Debug("using config file", "path", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Declarative DuckDB catalog builder
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./lakecraft.yaml)")
	rootCmd.PersistentFlags().StringArray("allow-root", nil, "Directory tree local config reads are confined to (repeatable)")
	rootCmd.PersistentFlags().Bool("remote-imports", false, "Allow fetching config fragments over HTTPS")
	rootCmd.PersistentFlags().String("state", "", "Path to the build history database")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Abort a build after this duration (0 for no limit)")
	rootCmd.PersistentFlags().Int("max-depth", config.DefaultMaxDepth, "Maximum attachment nesting depth")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewResolveCommand())
	rootCmd.AddCommand(commands.NewGraphCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

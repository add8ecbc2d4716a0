package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lakecraft-labs/lakecraft/internal/cli/config"
	"github.com/lakecraft-labs/lakecraft/internal/state"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show build run history",
		Long: `List recent build runs recorded in the state database, newest first.
With a run ID, show the per-catalog steps of that run instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runSteps(cmd, args[0])
			}
			return runList(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func runList(cmd *cobra.Command, limit int) error {
	store, err := openStateStore(config.Current())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Config", "Status", "Dry Run", "Started", "Duration", "Error"})
	for _, r := range runs {
		duration := ""
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		dryRun := ""
		if r.DryRun {
			dryRun = "yes"
		}
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.RootConfig,
			string(r.Status),
			dryRun,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			duration,
			r.Error,
		})
	}
	t.Render()
	return nil
}

func runSteps(cmd *cobra.Command, runID string) error {
	store, err := openStateStore(config.Current())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id, err := expandRunID(store, runID)
	if err != nil {
		return err
	}

	steps, err := store.ListSteps(id)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No steps recorded for run %s\n", runID)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Config", "Artifact", "Status", "Error"})
	for _, s := range steps {
		t.AppendRow(table.Row{s.ConfigKey, s.Artifact, string(s.Status), s.Error})
	}
	t.Render()
	return nil
}

// expandRunID accepts the short ID prefix shown by the runs listing.
func expandRunID(store state.Store, prefix string) (string, error) {
	runs, err := store.ListRuns(0)
	if err != nil {
		return "", err
	}
	match := ""
	for _, r := range runs {
		if r.ID == prefix {
			return r.ID, nil
		}
		if len(prefix) >= 4 && len(r.ID) >= len(prefix) && r.ID[:len(prefix)] == prefix {
			if match != "" {
				return "", fmt.Errorf("run ID prefix %q is ambiguous", prefix)
			}
			match = r.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no run matches %q", prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// File: cmd/fsdeploy/runs.go
// Brief: The `fsdeploy runs` commands: inspect the local run journal.

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/fsdeploy/internal/journal"
)

func newRunsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded deployment runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(".")
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			entries, err := store.ListRuns(cmd.Context(), 20)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCOMMAND\tSTATUS\tOK\tFAILED\tSKIPPED\tSTARTED")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					e.RunID, e.Command, e.Status, e.Succeeded, e.Failed, e.Skipped, e.StartedAt)
			}
			return w.Flush()
		},
	}
	cmd.AddCommand(newRunsShowCommand(opts))
	return cmd
}

func newRunsShowCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the step outcomes of one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := journal.Open(".")
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			steps, err := store.RunSteps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(steps) == 0 {
				return fmt.Errorf("no steps recorded for run %s", args[0])
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STEP\tSTATUS\tDURATION\tERROR")
			for _, s := range steps {
				duration := ""
				if !s.Started.IsZero() && !s.Finished.IsZero() {
					duration = s.Finished.Sub(s.Started).Round(10 * time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.StepID, s.Status, duration, s.Error)
			}
			return w.Flush()
		},
	}
}

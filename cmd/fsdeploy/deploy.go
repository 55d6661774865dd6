// File: cmd/fsdeploy/deploy.go
// Brief: The `fsdeploy deploy` command: run the full deployment plan.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/fsdeploy/internal/journal"
	"github.com/example/fsdeploy/internal/pipeline"
)

func newDeployCommand(opts *rootOptions) *cobra.Command {
	var credentialsFile string
	concurrency := 4
	var yes bool
	var nonInteractive bool
	pip := &pipOptions{}
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy every stack, artifact, and trigger",
		Long:  "deploy converges the whole application: the alert topic, tables, execution role, dependency layers, both functions, the alarm set, and the daily schedule trigger. Re-running against unchanged sources is a no-op.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log, err := newLogger(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ok, err := confirm(cmd, fmt.Sprintf("Deploy %s to %s?", cfg.App, cfg.Region), yes, nonInteractive)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
				return nil
			}

			d, err := newDeployer(cmd.Context(), cfg, log, credentialsFile, pip)
			if err != nil {
				return err
			}
			plan, err := d.Plan()
			if err != nil {
				return err
			}

			store, err := journal.Open(".")
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runner := &pipeline.Runner{
				Concurrency: concurrency,
				Observers: []pipeline.Observer{
					&journal.Recorder{Store: store, App: cfg.App, Region: cfg.Region, Command: "deploy", Log: log},
					newProgressPrinter(cmd.OutOrStdout()),
				},
				Log: log,
			}
			runID := "run-" + time.Now().UTC().Format("20060102-150405")
			rep, err := runner.Run(cmd.Context(), runID, plan)
			printReport(cmd.OutOrStdout(), rep)
			return err
		},
	}
	cmd.Flags().StringVar(&credentialsFile, "credentials-file", "", "Google service account JSON to store before provisioning (omit to keep the existing secret)")
	cmd.Flags().IntVar(&concurrency, "concurrency", concurrency, "Maximum steps to run in parallel within a wave")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting (requires --yes)")
	pip.bind(cmd.Flags())
	return cmd
}

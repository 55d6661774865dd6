// File: cmd/fsdeploy/plan.go
// Brief: The `fsdeploy plan` command: preview the step graph without deploying.

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/fsdeploy/internal/deploy"
)

func newPlanCommand(opts *rootOptions) *cobra.Command {
	var withCredentials bool
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the deployment waves without touching AWS",
		Long:  "plan compiles the full step graph from the manifest and prints the execution waves. Nothing is provisioned; reference errors in the manifest surface here instead of mid-deploy.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			d := &deploy.Deployer{Config: cfg, Log: zap.NewNop()}
			if withCredentials {
				// Placeholder value; plan never runs the step.
				d.SecretValue = []byte("{}")
			}
			p, err := d.Plan()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			fmt.Fprintf(out, "%s → %s (%s)\n", cfg.App, cfg.Region, cfg.Schedule)
			for i, wave := range p.Waves() {
				bold.Fprintf(out, "wave %d\n", i+1)
				for _, id := range wave {
					step, _ := p.StepByID(id)
					fmt.Fprintf(out, "  %-28s %s\n", id, step.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withCredentials, "with-credentials", false, "Include the Google credentials step in the preview")
	return cmd
}

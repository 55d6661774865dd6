// File: cmd/fsdeploy/main.go
// Brief: Root command, env/flag binding, and error reporting.

// main.go bootstraps fsdeploy: it builds the root Cobra command and executes
// it with a signal-aware context.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/fsdeploy/internal/bundle"
	"github.com/example/fsdeploy/internal/provision"
	"github.com/example/fsdeploy/internal/upload"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rootCmd := newRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	handleError(err)
	if err != nil {
		os.Exit(1)
	}
}

// rootOptions carries the persistent flags every subcommand reads.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
	Region     string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{LogLevel: "info"}
	cmd := &cobra.Command{
		Use:           "fsdeploy",
		Short:         "Deploy the football stats scraper to AWS",
		Long:          "fsdeploy packages, uploads, and provisions the football stats collection pipeline: its functions, tables, dependency layers, alarms, and schedule triggers.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the deployment manifest (default fsdeploy.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "Log level for fsdeploy output (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.Region, "region", "", "Override the manifest's AWS region")

	deployCmd := newDeployCommand(opts)
	planCmd := newPlanCommand(opts)
	layerCmd := newLayerCommand(opts)
	secretsCmd := newSecretsCommand(opts)
	runsCmd := newRunsCommand(opts)
	initCmd := newInitCommand()
	cmd.AddCommand(
		deployCmd,
		planCmd,
		layerCmd,
		secretsCmd,
		runsCmd,
		initCmd,
		newVersionCommand(),
	)
	bindViper(cmd, deployCmd, planCmd, layerCmd, secretsCmd, runsCmd)
	return cmd
}

// bindViper layers FSDEPLOY_* environment variables under any flag the user
// did not set explicitly.
func bindViper(commands ...*cobra.Command) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("FSDEPLOY")
	v.AutomaticEnv()

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				cobra.CheckErr(err)
			}
			if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
				cobra.CheckErr(err)
			}
		}
		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed {
						return
					}
					if !v.IsSet(f.Name) {
						return
					}
					val := fmt.Sprintf("%v", v.Get(f.Name))
					if val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	var provErr *provision.ProvisionError
	var xferErr *upload.TransferError
	var pkgErr *bundle.PackagingError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = fmt.Sprintf("%s\nHint: a stack did not settle in time. Check the CloudFormation console for the stuck resource.", err)
	case errors.As(err, &provErr):
		message = fmt.Sprintf("%s\nHint: inspect the stack's events in the CloudFormation console; a rolled-back stack must be deleted before redeploying.", err)
	case errors.As(err, &xferErr):
		message = fmt.Sprintf("%s\nHint: both the direct and staged upload paths failed. Verify the artifact bucket exists and credentials can write to it.", err)
	case errors.As(err, &pkgErr):
		message = fmt.Sprintf("%s\nHint: a dependency group no longer fits the layer budget. Split the group in the manifest.", err)
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

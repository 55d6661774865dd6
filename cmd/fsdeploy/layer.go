// File: cmd/fsdeploy/layer.go
// Brief: The `fsdeploy layer publish` command: rebuild the dependency layer.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/fsdeploy/internal/awsx"
)

func newLayerCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layer",
		Short: "Manage the shared dependency layer",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newLayerPublishCommand(opts))
	return cmd
}

func newLayerPublishCommand(opts *rootOptions) *cobra.Command {
	pip := &pipOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Resolve, package, and publish new layer versions",
		Long:  "publish resolves the pinned dependency groups with pip, packages them under the runtime's site-packages root, and publishes a new layer version. When the combined tree exceeds the size budget, each declared group becomes its own layer.",
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
			clients, err := awsx.NewClients(cmd.Context(), cfg.Region)
			if err != nil {
				return err
			}
			artifacts, err := newPackager(clients, cfg, log, pip).Publish(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, a := range artifacts {
				fmt.Fprintf(out, "%s\t%d bytes\t%s\n", a.Name, a.UncompressedSize, a.Identifier)
			}
			return nil
		},
	}
	pip.bind(cmd.Flags())
	return cmd
}

// File: cmd/fsdeploy/init.go
// Brief: The `fsdeploy init` command: write a starter manifest.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fsdeploy/internal/config"
)

func newInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter fsdeploy.yaml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(config.DefaultPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", config.DefaultPath)
			}
			data, err := config.Example()
			if err != nil {
				return err
			}
			if err := os.WriteFile(config.DefaultPath, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", config.DefaultPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing manifest")
	return cmd
}

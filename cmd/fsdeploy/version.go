// File: cmd/fsdeploy/version.go
// Brief: The `fsdeploy version` command.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/fsdeploy/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
			return nil
		},
	}
}

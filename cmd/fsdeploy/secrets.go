// File: cmd/fsdeploy/secrets.go
// Brief: The `fsdeploy secrets` command: store the Google credentials.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/fsdeploy/internal/awsx"
)

func newSecretsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the scraper's stored credentials",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newSecretsPutCommand(opts))
	return cmd
}

func newSecretsPutCommand(opts *rootOptions) *cobra.Command {
	var file string
	var yes bool
	var nonInteractive bool
	cmd := &cobra.Command{
		Use:   "put-google-credentials",
		Short: "Store the Google service account JSON in Secrets Manager",
		Long:  "put-google-credentials writes the service account key the functions use for Google Sheets access. The first write creates the secret; later writes add a new version.",
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

			value, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read credentials file: %w", err)
			}
			if !json.Valid(value) {
				return fmt.Errorf("%s is not valid JSON; expected a service account key file", file)
			}

			name := cfg.Secrets.GoogleCredentialsName
			ok, err := confirm(cmd, fmt.Sprintf("Write %s in %s?", name, cfg.Region), yes, nonInteractive)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
				return nil
			}

			clients, err := awsx.NewClients(cmd.Context(), cfg.Region)
			if err != nil {
				return err
			}
			store := &awsx.SecretStore{Client: clients.Secrets, Log: log}
			arn, err := store.Ensure(cmd.Context(), name, value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), arn)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the service account JSON key")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Fail instead of prompting (requires --yes)")
	return cmd
}

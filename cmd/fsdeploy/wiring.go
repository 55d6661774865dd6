// File: cmd/fsdeploy/wiring.go
// Brief: Shared construction of the deployer and its AWS-backed ports.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/example/fsdeploy/internal/awsx"
	"github.com/example/fsdeploy/internal/config"
	"github.com/example/fsdeploy/internal/deploy"
	"github.com/example/fsdeploy/internal/layer"
	"github.com/example/fsdeploy/internal/logging"
	"github.com/example/fsdeploy/internal/provision"
	"github.com/example/fsdeploy/internal/upload"
)

// pipOptions is shared by deploy and the standalone layer command.
type pipOptions struct {
	Binary   string
	Platform string
}

func (p *pipOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&p.Binary, "pip", "pip3", "pip executable used to resolve layer dependencies")
	fs.StringVar(&p.Platform, "pip-platform", "manylinux2014_x86_64", "wheel platform pin for layer dependencies (empty to use the host platform)")
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("FSDEPLOY_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if opts.Region != "" {
		cfg.Region = opts.Region
	}
	return cfg, nil
}

func newLogger(opts *rootOptions) (*zap.Logger, error) {
	return logging.New(opts.LogLevel)
}

func newUploader(clients *awsx.Clients, cfg *config.Config, log *zap.Logger) *upload.Uploader {
	return &upload.Uploader{
		Stager: awsx.NewS3Stager(clients.S3, cfg.ArtifactBucket),
		Log:    log,
	}
}

func newPackager(clients *awsx.Clients, cfg *config.Config, log *zap.Logger, pip *pipOptions) *layer.Packager {
	uploader := newUploader(clients, cfg, log)
	return &layer.Packager{
		Name:     cfg.Layer.Name,
		Groups:   cfg.Layer.Groups,
		Budget:   cfg.LayerBudget(),
		TreeRoot: cfg.Layer.TreeRoot,
		Resolver: &layer.PipResolver{Binary: pip.Binary, Platform: pip.Platform, Log: log},
		Publisher: &awsx.LayerPublisher{
			API:      clients.Lambda,
			Runtime:  cfg.Runtime,
			Uploader: uploader,
		},
		Log: log,
	}
}

// newDeployer wires every port to its AWS implementation. credentialsFile,
// when set, is read here so a missing file fails before any step runs.
func newDeployer(ctx context.Context, cfg *config.Config, log *zap.Logger, credentialsFile string, pip *pipOptions) (*deploy.Deployer, error) {
	clients, err := awsx.NewClients(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	var secretValue []byte
	if credentialsFile != "" {
		secretValue, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
	}
	uploader := newUploader(clients, cfg, log)
	d := &deploy.Deployer{
		Config: cfg,
		Stacks: &provision.Provisioner{API: clients.CloudFormation, Log: log},
		Layers: newPackager(clients, cfg, log, pip),
		Code: &awsx.CodeUploader{
			API:      clients.S3,
			Bucket:   cfg.ArtifactBucket,
			Uploader: uploader,
		},
		Triggers:    &awsx.TriggerRegistrar{Events: clients.EventBridge, Lambda: clients.Lambda, Log: log},
		Secrets:     &awsx.SecretStore{Client: clients.Secrets, Log: log},
		SecretValue: secretValue,
		Log:         log,
	}
	return d, nil
}

// File: internal/awsx/clients.go
// Brief: AWS SDK client construction and account discovery.

// Package awsx adapts the AWS SDK v2 service clients to the narrow ports the
// deployment pipeline consumes: stack provisioning, code and layer
// publication, schedule triggers, and secret writes.
package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Clients bundles every service client the pipeline touches, built from a
// single shared credential chain.
type Clients struct {
	Region         string
	AccountID      string
	CloudFormation *cloudformation.Client
	Lambda         *lambda.Client
	S3             *s3.Client
	EventBridge    *eventbridge.Client
	Secrets        *secretsmanager.Client
}

// NewClients resolves the default credential chain for region and verifies it
// by resolving the caller's account ID up front, so credential problems fail
// the run before any artifact work starts.
func NewClients(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws configuration: %w", err)
	}
	ident, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("resolve caller identity: %w", err)
	}
	return &Clients{
		Region:         region,
		AccountID:      aws.ToString(ident.Account),
		CloudFormation: cloudformation.NewFromConfig(cfg),
		Lambda:         lambda.NewFromConfig(cfg),
		S3:             s3.NewFromConfig(cfg),
		EventBridge:    eventbridge.NewFromConfig(cfg),
		Secrets:        secretsmanager.NewFromConfig(cfg),
	}, nil
}

// File: internal/awsx/secrets.go
// Brief: Idempotent Secrets Manager writes for the Google credentials.

package awsx

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"go.uber.org/zap"
)

// SecretsAPI is the slice of the Secrets Manager client the store uses.
type SecretsAPI interface {
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

// SecretStore writes named secrets, creating on first use and versioning on
// every write after that.
type SecretStore struct {
	Client SecretsAPI
	Log    *zap.Logger
}

// Ensure writes value under name and returns the secret ARN. An existing
// secret gets a new version rather than an error.
func (s *SecretStore) Ensure(ctx context.Context, name string, value []byte) (string, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	created, err := s.Client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(string(value)),
	})
	if err == nil {
		log.Info("secret created", zap.String("name", name))
		return aws.ToString(created.ARN), nil
	}
	var exists *smtypes.ResourceExistsException
	if !errors.As(err, &exists) {
		return "", fmt.Errorf("create secret %s: %w", name, err)
	}
	put, err := s.Client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(string(value)),
	})
	if err != nil {
		return "", fmt.Errorf("update secret %s: %w", name, err)
	}
	log.Info("secret updated", zap.String("name", name))
	return aws.ToString(put.ARN), nil
}

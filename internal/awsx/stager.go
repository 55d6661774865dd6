// File: internal/awsx/stager.go
// Brief: Multipart S3 stager used by the upload fallback path.

package awsx

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/fsdeploy/internal/bundle"
	"github.com/example/fsdeploy/internal/upload"
)

// S3Stager writes archives to the artifact bucket via the multipart upload
// manager, so a single flaky part is retried instead of the whole object.
type S3Stager struct {
	Bucket   string
	uploader *manager.Uploader
}

// NewS3Stager builds a stager over the given client and bucket. The client
// is the manager's multipart API surface, which *s3.Client satisfies.
func NewS3Stager(client manager.UploadAPIClient, bucket string) *S3Stager {
	return &S3Stager{
		Bucket:   bucket,
		uploader: manager.NewUploader(client),
	}
}

// Stage uploads the zipped bundle under key and returns its bucket location.
func (s *S3Stager) Stage(ctx context.Context, key string, b *bundle.Bundle) (upload.StagedLocation, error) {
	data, err := b.Zip()
	if err != nil {
		return upload.StagedLocation{}, err
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return upload.StagedLocation{}, fmt.Errorf("stage %s to s3://%s: %w", b.Name, s.Bucket, err)
	}
	return upload.StagedLocation{Bucket: s.Bucket, Key: key}, nil
}

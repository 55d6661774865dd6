// File: internal/awsx/targets.go
// Brief: Upload targets for layer versions and function code objects.

package awsx

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/fsdeploy/internal/bundle"
	"github.com/example/fsdeploy/internal/upload"
)

// LayerAPI is the slice of the Lambda client layer publication uses.
type LayerAPI interface {
	PublishLayerVersion(ctx context.Context, in *lambda.PublishLayerVersionInput, opts ...func(*lambda.Options)) (*lambda.PublishLayerVersionOutput, error)
}

// ObjectPutter is the slice of the S3 client code publication uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// LayerTarget publishes one layer version. The direct transport carries the
// archive inline in the PublishLayerVersion call; the staged transport points
// the same call at the staged S3 object instead.
type LayerTarget struct {
	API     LayerAPI
	Runtime string
	bundle  *bundle.Bundle
}

func (t *LayerTarget) Name() string { return t.bundle.Name }

func (t *LayerTarget) PublishDirect(ctx context.Context, b *bundle.Bundle) (string, error) {
	data, err := b.Zip()
	if err != nil {
		return "", err
	}
	return t.publish(ctx, b.Name, &lambdatypes.LayerVersionContentInput{ZipFile: data})
}

func (t *LayerTarget) PublishStaged(ctx context.Context, loc upload.StagedLocation) (string, error) {
	return t.publish(ctx, t.bundle.Name, &lambdatypes.LayerVersionContentInput{
		S3Bucket: aws.String(loc.Bucket),
		S3Key:    aws.String(loc.Key),
	})
}

func (t *LayerTarget) publish(ctx context.Context, name string, content *lambdatypes.LayerVersionContentInput) (string, error) {
	out, err := t.API.PublishLayerVersion(ctx, &lambda.PublishLayerVersionInput{
		LayerName:          aws.String(name),
		Content:            content,
		CompatibleRuntimes: []lambdatypes.Runtime{lambdatypes.Runtime(t.Runtime)},
		Description:        aws.String("fsdeploy dependency layer"),
	})
	if err != nil {
		return "", fmt.Errorf("publish layer %s: %w", name, err)
	}
	return aws.ToString(out.LayerVersionArn), nil
}

// LayerPublisher adapts the retrying uploader to the packager's publish port.
type LayerPublisher struct {
	API      LayerAPI
	Runtime  string
	Uploader *upload.Uploader
}

// PublishLayer pushes one layer bundle through the upload state machine and
// returns the published layer version ARN.
func (p *LayerPublisher) PublishLayer(ctx context.Context, b *bundle.Bundle) (string, error) {
	target := &LayerTarget{API: p.API, Runtime: p.Runtime, bundle: b}
	res, err := p.Uploader.Publish(ctx, target, b)
	if err != nil {
		return "", err
	}
	return res.Identifier, nil
}

// CodeTarget places a function code archive in the artifact bucket. The
// direct transport is a single PutObject to the final key; the staged
// transport reuses the multipart-staged copy as the final object. Either way
// the identifier is the object key the stack template receives.
type CodeTarget struct {
	API    ObjectPutter
	Bucket string
	Key    string
	name   string
}

// NewCodeTarget addresses the final code object for one function.
func NewCodeTarget(api ObjectPutter, bucket, key, artifact string) *CodeTarget {
	return &CodeTarget{API: api, Bucket: bucket, Key: key, name: artifact}
}

func (t *CodeTarget) Name() string { return t.name }

func (t *CodeTarget) PublishDirect(ctx context.Context, b *bundle.Bundle) (string, error) {
	data, err := b.Zip()
	if err != nil {
		return "", err
	}
	_, err = t.API.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.Bucket),
		Key:    aws.String(t.Key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("put code object s3://%s/%s: %w", t.Bucket, t.Key, err)
	}
	return t.Key, nil
}

func (t *CodeTarget) PublishStaged(ctx context.Context, loc upload.StagedLocation) (string, error) {
	// The staged copy already lives in the artifact bucket; point the stack
	// at it instead of copying the bytes again.
	return loc.Key, nil
}

// CodeUploader publishes function code bundles through the upload state
// machine into the artifact bucket.
type CodeUploader struct {
	API      ObjectPutter
	Bucket   string
	Uploader *upload.Uploader
}

// PublishCode uploads b under key and returns the object key the function
// stack should reference.
func (c *CodeUploader) PublishCode(ctx context.Context, key string, b *bundle.Bundle) (string, error) {
	target := NewCodeTarget(c.API, c.Bucket, key, b.Name)
	res, err := c.Uploader.Publish(ctx, target, b)
	if err != nil {
		return "", err
	}
	return res.Identifier, nil
}

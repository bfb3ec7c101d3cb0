// Package s3 reads the published entity lookup document from S3-compatible storage.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kailas-cloud/ragq/internal/domain"
)

var _ domain.LookupFetcher = (*Fetcher)(nil)

// MaxObjectBytes caps the size of a fetched lookup document.
const MaxObjectBytes = 8 << 20

// objectGetter is the slice of the S3 client the fetcher uses (ISP).
type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config holds S3 connection settings.
type Config struct {
	Region   string
	Endpoint string // optional, for MinIO/LocalStack
}

// Fetcher implements domain.LookupFetcher over S3 GetObject.
type Fetcher struct {
	client objectGetter
}

// NewFetcher loads AWS credentials from the default chain and builds a client.
func NewFetcher(ctx context.Context, cfg Config) (*Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Fetcher{client: client}, nil
}

// NewFetcherWithClient wraps an existing client.
func NewFetcherWithClient(c objectGetter) *Fetcher {
	return &Fetcher{client: c}
}

// FetchObject reads bucket/key in full.
func (f *Fetcher) FetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s not found: %w", bucket, key, domain.ErrObjectStore)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w: %w", bucket, key, domain.ErrObjectStore, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w: %w", bucket, key, domain.ErrObjectStore, err)
	}
	if len(data) > MaxObjectBytes {
		return nil, fmt.Errorf("s3://%s/%s exceeds %d bytes: %w", bucket, key, MaxObjectBytes, domain.ErrObjectStore)
	}
	return data, nil
}

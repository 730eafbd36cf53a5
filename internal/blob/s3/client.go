// Package s3blob is the cold-storage layer: settled market snapshots go to an
// S3 bucket (AWS or any path-style compatible store such as MinIO or R2).
package s3blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig selects the bucket and how to reach it. Endpoint is only
// needed for non-AWS providers; ForcePathStyle usually goes with it.
type ClientConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// Client pairs the SDK client with the bucket every operation targets.
type Client struct {
	api    *s3.Client
	bucket string
}

// New builds the S3 client. Bucket and region are mandatory; everything else
// has an AWS-shaped default.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: bucket and region are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(withScheme(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{api: api, bucket: cfg.Bucket}, nil
}

// Ping verifies the bucket is reachable and we may touch it.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close exists for the closer list; the SDK client holds no resources that
// need explicit teardown.
func (c *Client) Close() error { return nil }

// withScheme defaults a bare host:port endpoint to http or https per useSSL.
func withScheme(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

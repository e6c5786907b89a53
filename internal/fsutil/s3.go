package fsutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the connection settings of an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Enabled reports whether an endpoint is configured at all.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// objectStater is the subset of *minio.Client the checker needs.
type objectStater interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// S3Checker checks s3://bucket/key PFNs with a HEAD request.
type S3Checker struct {
	client objectStater
}

// NewS3Checker connects a checker to the configured endpoint.
func NewS3Checker(cfg S3Config) (*S3Checker, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Checker{client: client}, nil
}

// Exists implements Checker.
func (c *S3Checker) Exists(ctx context.Context, pfn string) (bool, error) {
	bucket, key, err := SplitS3(pfn)
	if err != nil {
		return false, err
	}
	_, err = c.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", pfn, err)
}

// SplitS3 splits s3://bucket/some/key into its bucket and object key.
func SplitS3(pfn string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(pfn, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", pfn)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs a bucket and a key: %s", pfn)
	}
	return bucket, key, nil
}

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gyeh/billcheck/internal/cache"
)

// S3Client wraps S3 operations for report upload and the S3 cache backend.
type S3Client struct {
	client cache.S3API
	bucket string
}

// NewS3Client creates an S3 client for the given bucket using the default
// AWS credential chain.
func NewS3Client(ctx context.Context, bucket, region string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &S3Client{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// NewS3ClientWithAPI wraps an existing S3 API implementation.
func NewS3ClientWithAPI(api cache.S3API, bucket string) *S3Client {
	return &S3Client{client: api, bucket: bucket}
}

// Bucket returns the bucket name.
func (c *S3Client) Bucket() string { return c.bucket }

// CacheStore returns a cache store keeping entries under prefix.
func (c *S3Client) CacheStore(prefix string, ttl time.Duration) *cache.S3Store {
	return &cache.S3Store{Client: c.client, Bucket: c.bucket, Prefix: prefix, TTL: ttl}
}

// ReportKey builds the object key for a batch run.
func ReportKey(prefix, runID string) string {
	return path.Join(prefix, runID+".json")
}

// UploadJSON uploads v as a JSON object.
func (c *S3Client) UploadJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}
	_, err = c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting s3://%s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// DownloadJSON reads a JSON object into v.
func (c *S3Client) DownloadJSON(ctx context.Context, key string, v any) error {
	resp, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("getting S3 object %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshaling %s: %w", key, err)
	}
	return nil
}

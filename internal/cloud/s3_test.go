package cloud

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemS3() *memS3 {
	return &memS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	now := time.Now()
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), LastModified: &now}, nil
}

func (m *memS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	m.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}, nil
}

func (m *memS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	return &s3.DeleteObjectsOutput{}, nil
}

func TestUploadDownloadJSON(t *testing.T) {
	api := newMemS3()
	c := NewS3ClientWithAPI(api, "reports")

	key := ReportKey("billcheck/runs", "abc")
	if key != "billcheck/runs/abc.json" {
		t.Fatalf("ReportKey = %q", key)
	}

	in := map[string]any{"overall_assessment": "fair", "items_assessed": 3.0}
	if err := c.UploadJSON(context.Background(), key, in); err != nil {
		t.Fatalf("UploadJSON failed: %v", err)
	}
	if api.types[key] != "application/json" {
		t.Errorf("content type = %q", api.types[key])
	}

	var out map[string]any
	if err := c.DownloadJSON(context.Background(), key, &out); err != nil {
		t.Fatalf("DownloadJSON failed: %v", err)
	}
	if out["overall_assessment"] != "fair" || out["items_assessed"] != 3.0 {
		t.Errorf("round trip = %v", out)
	}

	if err := c.DownloadJSON(context.Background(), "missing.json", &out); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestCacheStoreSharesClient(t *testing.T) {
	api := newMemS3()
	store := NewS3ClientWithAPI(api, "cache-bucket").CacheStore("billcheck-cache/", 24*time.Hour)
	if store.Bucket != "cache-bucket" || store.Prefix != "billcheck-cache/" {
		t.Fatalf("unexpected store: %+v", store)
	}
	if err := store.Put(context.Background(), "pfs_99213", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := store.Get(context.Background(), "pfs_99213")
	if err != nil || string(got) != `{"a":1}` {
		t.Errorf("Get = %q, %v", got, err)
	}
}

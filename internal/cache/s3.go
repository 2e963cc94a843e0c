package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// maxDeleteBatch is the most keys a single DeleteObjects call accepts.
const maxDeleteBatch = 1000

// S3Store keeps entries as objects under Prefix in Bucket. An object's
// LastModified is its write timestamp; S3 PUTs replace objects atomically.
type S3Store struct {
	Client S3API
	Bucket string
	Prefix string
	TTL    time.Duration

	now func() time.Time
}

func (s *S3Store) key(k string) string {
	return path.Join(s.Prefix, k+fileSuffix)
}

func (s *S3Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.Bucket, s.key(key), err)
	}
	defer resp.Body.Close()

	if resp.LastModified != nil && expired(*resp.LastModified, s.clock(), s.TTL) {
		return nil, ErrNotFound
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading cache object: %w", err)
	}
	return data, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.key(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting cache object: %w", err)
	}
	return nil
}

func (s *S3Store) Clear(ctx context.Context) (int, error) {
	var ids []types.ObjectIdentifier
	err := s.list(ctx, func(o types.Object) {
		ids = append(ids, types.ObjectIdentifier{Key: o.Key})
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(ids); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(ids))
		_, err := s.Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.Bucket),
			Delete: &types.Delete{Objects: ids[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, fmt.Errorf("deleting cache objects: %w", err)
		}
		deleted += end - start
	}
	return deleted, nil
}

func (s *S3Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Location: fmt.Sprintf("s3://%s/%s", s.Bucket, s.Prefix)}
	now := s.clock()
	err := s.list(ctx, func(o types.Object) {
		st.TotalFiles++
		st.SizeBytes += aws.ToInt64(o.Size)
		if o.LastModified != nil && expired(*o.LastModified, now, s.TTL) {
			st.ExpiredFiles++
		} else {
			st.ValidFiles++
		}
	})
	return st, err
}

func (s *S3Store) list(ctx context.Context, fn func(types.Object)) error {
	p := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(s.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("listing cache objects: %w", err)
		}
		for _, o := range page.Contents {
			fn(o)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

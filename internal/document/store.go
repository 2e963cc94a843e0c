package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store keeps uploaded documents under generated ids.
type Store interface {
	// Save stores the content and returns its id. The original filename
	// only contributes its extension.
	Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
	// Open returns the stored filename (id plus extension) and content.
	Open(ctx context.Context, id string) (string, []byte, error)
}

// NewID returns a fresh upload id.
func NewID() string { return uuid.NewString() }

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FileStore keeps uploads in a local directory as <id><ext>.
type FileStore struct {
	Dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	ext := Extension(filename)
	if ext == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	id := NewID()
	f, err := os.CreateTemp(s.Dir, id+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	tmp := f.Name()
	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, filepath.Join(s.Dir, id+ext))
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return id, nil
}

func (s *FileStore) Open(ctx context.Context, id string) (string, []byte, error) {
	if !validID(id) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, ext := range extensions {
		name := id + ext
		data, err := os.ReadFile(filepath.Join(s.Dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("reading upload: %w", err)
		}
		return name, data, nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// MinioConfig locates the upload bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// MinioStore keeps uploads in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioStore connects to MinIO. Call EnsureBucket before first use.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "uploads"
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: prefix}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (s *MinioStore) objectName(id, ext string) string {
	return path.Join(s.prefix, id+ext)
}

func (s *MinioStore) Save(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	ext := Extension(filename)
	if ext == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	id := NewID()
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(id, ext), r, size, minio.PutObjectOptions{
		ContentType: contentType(ext),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return id, nil
}

func (s *MinioStore) Open(ctx context.Context, id string) (string, []byte, error) {
	if !validID(id) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prefix := s.objectName(id, "")
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return "", nil, fmt.Errorf("listing uploads: %w", obj.Err)
		}
		name := path.Base(obj.Key)
		if Extension(name) == "" || !strings.HasPrefix(name, id) {
			continue
		}
		o, err := s.client.GetObject(ctx, s.bucket, obj.Key, minio.GetObjectOptions{})
		if err != nil {
			return "", nil, fmt.Errorf("fetching upload: %w", err)
		}
		var buf bytes.Buffer
		_, err = io.Copy(&buf, o)
		o.Close()
		if err != nil {
			return "", nil, fmt.Errorf("reading upload: %w", err)
		}
		return name, buf.Bytes(), nil
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func contentType(ext string) string {
	switch ext {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	case ".zip":
		return "application/zip"
	}
	return "application/gzip"
}

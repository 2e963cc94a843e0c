package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileSuffix = ".json"

// FileStore keeps one file per key in a directory. The file's modification
// time is the entry's write timestamp.
type FileStore struct {
	Dir string
	TTL time.Duration

	now func() time.Time
}

// NewFileStore creates the cache directory if needed.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	return &FileStore{Dir: dir, TTL: ttl, now: time.Now}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+fileSuffix)
}

func (s *FileStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Get returns the payload stored under key, or ErrNotFound when it is
// missing or older than the TTL.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	p := s.path(key)
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stat cache entry: %w", err)
	}
	if expired(info.ModTime(), s.clock(), s.TTL) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}
	return data, nil
}

// Put writes to a temp file in the same directory and renames it over the
// entry, so readers see either the old or the new payload.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry and returns how many were deleted.
func (s *FileStore) Clear(ctx context.Context) (int, error) {
	entries, err := s.entries()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.Dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return n, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		n++
	}
	return n, nil
}

// Stats counts valid and expired entries.
func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Location: s.Dir}
	entries, err := s.entries()
	if err != nil {
		return st, err
	}
	now := s.clock()
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		st.TotalFiles++
		st.SizeBytes += info.Size()
		if expired(info.ModTime(), now, s.TTL) {
			st.ExpiredFiles++
		} else {
			st.ValidFiles++
		}
	}
	return st, nil
}

func (s *FileStore) entries() ([]fs.DirEntry, error) {
	all, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache dir: %w", err)
	}
	var out []fs.DirEntry
	for _, e := range all {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fileSuffix) {
			out = append(out, e)
		}
	}
	return out, nil
}

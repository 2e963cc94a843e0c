// Package cache persists JSON payloads under deterministic keys with a
// fixed time-to-live measured from the last write.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// DefaultTTL is how long an entry stays readable after it was written.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by Get for missing and expired entries alike.
var ErrNotFound = errors.New("cache entry not found")

// Store is key→JSON blob persistence. Implementations must never expose a
// partially written value to a concurrent reader.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Stats summarizes a store's contents.
type Stats struct {
	TotalFiles   int    `json:"total_files"`
	ValidFiles   int    `json:"valid_files"`
	ExpiredFiles int    `json:"expired_files"`
	SizeBytes    int64  `json:"size_bytes"`
	Location     string `json:"cache_dir"`
}

// Key derives a cache key from an operation name and its arguments.
func Key(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

func expired(written, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return now.Sub(written) >= ttl
}

// Nop is a Store that holds nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }
func (Nop) Put(context.Context, string, []byte) error   { return nil }
func (Nop) Clear(context.Context) (int, error)          { return 0, nil }
func (Nop) Stats(context.Context) (Stats, error)        { return Stats{Location: "disabled"}, nil }

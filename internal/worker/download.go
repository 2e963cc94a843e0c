package worker

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxBytes caps a fetched document.
const DefaultMaxBytes = 64 << 20

var httpClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	},
	Timeout: 5 * time.Minute,
}

// IsURL reports whether source should be fetched over HTTP.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// DownloadHTTP performs an HTTP GET with retries and returns the response.
// Caller is responsible for closing resp.Body.
func DownloadHTTP(ctx context.Context, rawURL string) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * retryUnit
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if reqErr != nil {
			return nil, fmt.Errorf("creating request: %w", reqErr)
		}

		resp, err = httpClient.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		err = fmt.Errorf("HTTP %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, err
		}
	}

	return nil, fmt.Errorf("download failed after retries: %w", err)
}

// retryUnit scales the backoff; tests shrink it.
var retryUnit = time.Second

// Fetch reads a document from a local path or an http(s) URL. The returned
// name keeps the source's extension so the loader can pick a format.
// onProgress, when set, receives (bytesRead, total) during downloads.
func Fetch(ctx context.Context, source string, maxBytes int64, onProgress func(read, total int64)) (string, []byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if !IsURL(source) {
		info, err := os.Stat(source)
		if err != nil {
			return "", nil, err
		}
		if info.Size() > maxBytes {
			return "", nil, fmt.Errorf("%s is %d bytes, limit is %d", source, info.Size(), maxBytes)
		}
		data, err := os.ReadFile(source)
		if err != nil {
			return "", nil, err
		}
		return filepath.Base(source), data, nil
	}

	resp, err := DownloadHTTP(ctx, source)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	total := resp.ContentLength
	if total > maxBytes {
		return "", nil, fmt.Errorf("document is %d bytes, limit is %d", total, maxBytes)
	}

	var reader io.Reader = resp.Body
	if onProgress != nil {
		reader = &progressReader{reader: resp.Body, total: total, callback: onProgress}
	}
	counter := &countingReader{reader: reader}

	data, err := io.ReadAll(io.LimitReader(counter, maxBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", nil, fmt.Errorf("document exceeds %d bytes", maxBytes)
	}
	if total > 0 && counter.n != total {
		return "", nil, fmt.Errorf("download truncated: got %d of %d bytes", counter.n, total)
	}
	return FileNameFromURL(source), data, nil
}

// FileNameFromURL extracts a human-readable filename from a URL, ignoring
// the query string.
func FileNameFromURL(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return path.Base(rawURL)
}

type countingReader struct {
	reader io.Reader
	n      int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.n += int64(n)
	return n, err
}

type progressReader struct {
	reader   io.Reader
	read     int64
	total    int64
	callback func(read, total int64)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.callback(pr.read, pr.total)
	}
	return n, err
}

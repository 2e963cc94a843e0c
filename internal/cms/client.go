package cms

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 30 * time.Second

// Client queries the CMS Data API over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Retries is the number of attempts per request. Client errors (4xx)
	// are not retried.
	Retries int
	// Backoff is the delay before the second attempt; it doubles after.
	Backoff time.Duration
	Logger  zerolog.Logger
}

// NewClient returns a Client with a fixed request timeout.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: timeout,
		},
		Retries: 3,
		Backoff: time.Second,
		Logger:  logger,
	}
}

// QueryURL builds the request URL using the API's filter[FIELD]=value syntax.
func (c *Client) QueryURL(q Query) string {
	params := url.Values{}
	params.Set("size", strconv.Itoa(pageSize(q.Size)))
	params.Set("offset", strconv.Itoa(q.Offset))
	fields := make([]string, 0, len(q.Filters))
	for f := range q.Filters {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		params.Set("filter["+f+"]", q.Filters[f])
	}
	return fmt.Sprintf("%s/%s/data?%s", c.BaseURL, q.Dataset.ID, params.Encode())
}

// Query fetches one page of records.
func (c *Client) Query(ctx context.Context, q Query) ([]Record, error) {
	u := c.QueryURL(q)
	c.Logger.Debug().Str("url", u).Msg("fetching from CMS")

	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var records []Record
	err = decodeRecords(resp.Body, q.Dataset.Fields, func(r Record) bool {
		records = append(records, r)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("parsing CMS response: %w", err)
	}
	c.Logger.Debug().Str("dataset", q.Dataset.Name).Int("records", len(records)).Msg("CMS API returned records")
	return records, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	attempts := c.Retries
	if attempts < 1 {
		attempts = 1
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.Backoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if reqErr != nil {
			return nil, fmt.Errorf("creating request: %w", reqErr)
		}
		req.Header.Set("Accept", "application/json")

		var resp *http.Response
		resp, err = hc.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		resp.Body.Close()
		err = fmt.Errorf("CMS API returned HTTP %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, err
		}
	}
	return nil, fmt.Errorf("CMS request failed after %d attempts: %w", attempts, err)
}

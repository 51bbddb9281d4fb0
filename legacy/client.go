// Package legacy is the raw client for the pre-CMS content API that serves as
// the fallback source.
//
// The legacy API predates the CMS schema: documents come back as loose JSON
// objects whose field names vary between endpoints and vintages. Records are
// returned untyped and normalized by the content package.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jonwraymond/contentops/resilience"
)

var (
	// ErrMissingBaseURL is returned by New without a base URL.
	ErrMissingBaseURL = errors.New("legacy: base url is required")

	// ErrMalformedResponse is returned when a body is neither an array nor a
	// {"data": [...]} wrapper.
	ErrMalformedResponse = errors.New("legacy: malformed response")
)

// Record is one legacy document.
type Record map[string]any

// String returns the field as a string, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Filters narrows a listing.
type Filters struct {
	Category string
	Industry string
	Slug     string
	Limit    int
}

func (f Filters) values() map[string]string {
	v := make(map[string]string, 4)
	if f.Category != "" {
		v["category"] = f.Category
	}
	if f.Industry != "" {
		v["industry"] = f.Industry
	}
	if f.Slug != "" {
		v["slug"] = f.Slug
	}
	if f.Limit > 0 {
		v["limit"] = strconv.Itoa(f.Limit)
	}
	return v
}

// Config configures the legacy client.
type Config struct {
	BaseURL string

	// APIKey is sent as a bearer credential when set.
	APIKey string

	// Timeout bounds a single HTTP exchange.
	// Default: 30 seconds
	Timeout time.Duration

	// PostsPath defaults to /api/posts.
	PostsPath string

	// CaseStudiesPath defaults to /api/case-studies.
	CaseStudiesPath string
}

// Client reads posts and case studies from the legacy API.
type Client struct {
	http            *resty.Client
	postsPath       string
	caseStudiesPath string
}

// New creates a client. It performs no network I/O.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PostsPath == "" {
		cfg.PostsPath = "/api/posts"
	}
	if cfg.CaseStudiesPath == "" {
		cfg.CaseStudiesPath = "/api/case-studies"
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	if cfg.APIKey != "" {
		hc.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:            hc,
		postsPath:       cfg.PostsPath,
		caseStudiesPath: cfg.CaseStudiesPath,
	}, nil
}

// Posts lists blog posts.
func (c *Client) Posts(ctx context.Context, f Filters) ([]Record, error) {
	return c.list(ctx, c.postsPath, f)
}

// CaseStudies lists case studies.
func (c *Client) CaseStudies(ctx context.Context, f Filters) ([]Record, error) {
	return c.list(ctx, c.caseStudiesPath, f)
}

func (c *Client) list(ctx context.Context, path string, f Filters) ([]Record, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(f.values()).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("legacy: request %s: %w", path, err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, resilience.NewStatusError(resp.StatusCode(), resp.Header().Get("Retry-After"), strings.TrimSpace(resp.String()))
	}
	return DecodeRecords(resp.Body())
}

// DecodeRecords accepts a bare JSON array or an object wrapping the array in
// "data". A null body or null data yields no records.
func DecodeRecords(body []byte) ([]Record, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var records []Record
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return compact(records), nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	data, ok := wrapped["data"]
	if !ok {
		return nil, fmt.Errorf("%w: no data field", ErrMalformedResponse)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return compact(records), nil
}

// compact drops null array elements.
func compact(records []Record) []Record {
	out := records[:0]
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/jonwraymond/contentops/resilience"
)

var (
	// ErrMissingProject is returned when neither ProjectID nor BaseURL is set.
	ErrMissingProject = errors.New("cms: project id is required")

	// ErrMissingDataset is returned when Dataset is empty.
	ErrMissingDataset = errors.New("cms: dataset is required")

	// ErrMalformedResponse is returned when a 2xx body has no result field.
	ErrMalformedResponse = errors.New("cms: malformed query response")
)

// DefaultAPIVersion is the dated API version used when none is configured.
const DefaultAPIVersion = "2024-01-01"

// Config configures the Sanity client.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string

	// Token is an optional read token sent as a bearer credential.
	Token string

	// UseCDN routes queries through apicdn.sanity.io. Ignored for
	// authenticated requests.
	UseCDN bool

	// BaseURL overrides the project host, mainly for tests.
	BaseURL string

	// Timeout bounds a single HTTP exchange.
	// Default: 30 seconds
	Timeout time.Duration

	UserAgent string
}

// Client queries a Sanity dataset with GROQ.
type Client struct {
	http    *resty.Client
	path    string
	dataset string
}

// New creates a client. It performs no network I/O.
func New(cfg Config) (*Client, error) {
	if cfg.ProjectID == "" && cfg.BaseURL == "" {
		return nil, ErrMissingProject
	}
	if cfg.Dataset == "" {
		return nil, ErrMissingDataset
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "contentops"
	}

	base := cfg.BaseURL
	if base == "" {
		host := "api.sanity.io"
		if cfg.UseCDN && cfg.Token == "" {
			host = "apicdn.sanity.io"
		}
		base = fmt.Sprintf("https://%s.%s", cfg.ProjectID, host)
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	if cfg.Token != "" {
		hc.SetAuthToken(cfg.Token)
	}

	return &Client{
		http:    hc,
		path:    fmt.Sprintf("/v%s/data/query/%s", strings.TrimPrefix(cfg.APIVersion, "v"), cfg.Dataset),
		dataset: cfg.Dataset,
	}, nil
}

// Dataset returns the configured dataset name.
func (c *Client) Dataset() string {
	return c.dataset
}

// EncodeParams renders GROQ parameters as $-prefixed query values holding
// JSON literals.
func EncodeParams(params map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for k, v := range params {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cms: encode param %q: %w", k, err)
		}
		out["$"+strings.TrimPrefix(k, "$")] = string(b)
	}
	return out, nil
}

// Query runs a GROQ query and returns the raw "result" value. A query that
// matches nothing returns the JSON literal null.
func (c *Client) Query(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	values, err := EncodeParams(params)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("query", query).
		SetQueryParams(values).
		Get(c.path)
	if err != nil {
		return nil, fmt.Errorf("cms: query request: %w", err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, resilience.NewStatusError(resp.StatusCode(), resp.Header().Get("Retry-After"), errorDescription(resp.Body()))
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	result, ok := body["result"]
	if !ok {
		return nil, ErrMalformedResponse
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return result, nil
}

// errorDescription extracts Sanity's error description, falling back to the
// raw body.
func errorDescription(body []byte) string {
	var e struct {
		Error struct {
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Description != "" {
		return e.Error.Description
	}
	return strings.TrimSpace(string(body))
}

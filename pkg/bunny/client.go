// Package bunny is a minimal Bunny.net API client covering the DNS, CDN, and
// statistics surface whm2bunny provisions against.
package bunny

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mordenhost/whm2bunny/pkg/observability"
	"github.com/mordenhost/whm2bunny/pkg/retry"
)

const (
	// DefaultBaseURL is the default Bunny.net API base URL
	DefaultBaseURL = "https://api.bunny.net"
	// AccessKeyHeader is the header name for the API key
	AccessKeyHeader = "AccessKey"
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	// zoneCacheSize bounds the domain -> zone id lookup cache.
	zoneCacheSize = 512
)

// APIError represents an error response from the Bunny.net API
type APIError struct {
	StatusCode int
	Message    string   `json:"Message"`
	Errors     []string `json:"Errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("bunny API error (status %d): %s - %v", e.StatusCode, e.Message, e.Errors)
	}
	return fmt.Sprintf("bunny API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 Not Found
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if the error is a 409 Conflict
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// Client is a Bunny.net API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
	policy     *retry.Policy
	metrics    *observability.Metrics
	zoneCache  *lru.Cache[string, int64]
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryPolicy sets the retry policy for API calls
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithMetrics enables per-call metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// NewClient creates a new Bunny.net API client
func NewClient(apiKey string, opts ...Option) *Client {
	// Size is fixed, the constructor only fails on non-positive sizes.
	cache, _ := lru.New[string, int64](zoneCacheSize)

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:    observability.NewLogger(observability.InfoLevel, io.Discard),
		policy:    retry.NewPolicy(retry.DefaultConfig()),
		zoneCache: cache,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs one API call with retries. 4xx responses other than 429
// are terminal; 429, 5xx, and transport errors are retried under the policy.
func (c *Client) doRequest(ctx context.Context, operation, method, path string, body, result interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	return retry.Do(ctx, c.policy, func() error {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set(AccessKeyHeader, c.apiKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.logger.WithFields(map[string]interface{}{
			"method": method,
			"path":   path,
		}).Debug("bunny API request")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if c.metrics != nil {
				c.metrics.ObserveBunnyRequest(operation, 0, time.Since(start))
			}
			c.logger.WithError(err).Warnf("bunny API request failed: %s %s", method, path)
			return err
		}
		defer resp.Body.Close()

		if c.metrics != nil {
			c.metrics.ObserveBunnyRequest(operation, resp.StatusCode, time.Since(start))
		}

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{
				StatusCode: resp.StatusCode,
				Message:    http.StatusText(resp.StatusCode),
			}
			_ = json.Unmarshal(respBody, apiErr)
			return retry.NewHTTPError(resp.StatusCode, apiErr)
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}
		return nil
	})
}

func (c *Client) get(ctx context.Context, operation, path string, result interface{}) error {
	return c.doRequest(ctx, operation, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, operation, path string, body, result interface{}) error {
	return c.doRequest(ctx, operation, http.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, operation, path string, body, result interface{}) error {
	return c.doRequest(ctx, operation, http.MethodPut, path, body, result)
}

func (c *Client) delete(ctx context.Context, operation, path string) error {
	return c.doRequest(ctx, operation, http.MethodDelete, path, nil, nil)
}

// AsAPIError unwraps err to an *APIError if the failure came from the API.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

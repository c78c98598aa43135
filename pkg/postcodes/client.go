// Package postcodes geocodes UK postcodes against a postcodes.io-compatible API.
package postcodes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/sitesurvey-cli/internal/resilience"
)

// DefaultBaseURL is the public postcodes.io endpoint.
const DefaultBaseURL = "https://api.postcodes.io"

// ErrNotFound is returned when the API does not know the postcode or has no
// coordinates for it.
var ErrNotFound = errors.New("postcodes: postcode not found")

// Client looks up postcodes.
type Client interface {
	// Lookup returns the centroid of postcode, or ErrNotFound.
	Lookup(ctx context.Context, postcode string) (*Result, error)
}

// Result is the part of a postcode record an import needs.
type Result struct {
	Postcode      string
	Latitude      float64
	Longitude     float64
	AdminDistrict string
	Region        string
}

// Option configures the client.
type Option func(*client)

// WithBaseURL points the client at another postcodes.io-compatible server.
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps <= 0 {
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries sets the number of attempts for transient failures.
func WithRetries(attempts int) Option {
	return func(c *client) {
		if attempts > 0 {
			c.retry.MaxAttempts = attempts
		}
	}
}

// WithRetryConfig replaces the retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithCircuitBreaker fails lookups fast while the API keeps failing.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *client) {
		c.breaker = cb
	}
}

type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a postcode Client.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		retry:      resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("postcodes", "lookup")
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:       "postcodes",
			ShouldTrip: resilience.IsTransient,
		})
	}
	return c
}

// lookupResponse is the JSON envelope returned by /postcodes/{postcode}.
type lookupResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Result *struct {
		Postcode      string   `json:"postcode"`
		Latitude      *float64 `json:"latitude"`
		Longitude     *float64 `json:"longitude"`
		AdminDistrict string   `json:"admin_district"`
		Region        string   `json:"region"`
	} `json:"result"`
}

// Lookup fetches one postcode, retrying rate limiting and server errors.
func (c *client) Lookup(ctx context.Context, postcode string) (*Result, error) {
	pc := strings.TrimSpace(postcode)
	if pc == "" {
		return nil, ErrNotFound
	}
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Result, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*Result, error) {
			return c.lookupOnce(ctx, pc)
		})
	})
}

func (c *client) lookupOnce(ctx context.Context, pc string) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "postcodes: rate limit")
	}

	reqURL := c.baseURL + "/postcodes/" + url.PathEscape(pc)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("postcodes: status %d for %s", resp.StatusCode, pc), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("postcodes: status %d for %s", resp.StatusCode, pc)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "postcodes: read body")
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, eris.Wrap(err, "postcodes: parse response")
	}
	if lr.Result == nil || lr.Result.Latitude == nil || lr.Result.Longitude == nil {
		return nil, ErrNotFound
	}

	return &Result{
		Postcode:      lr.Result.Postcode,
		Latitude:      *lr.Result.Latitude,
		Longitude:     *lr.Result.Longitude,
		AdminDistrict: lr.Result.AdminDistrict,
		Region:        lr.Result.Region,
	}, nil
}

// Package enrich is a client for the company-enrichment API. Given a domain
// it returns best-guess company metadata; given a LinkedIn profile URL it
// returns best-guess person metadata. Callers treat every failure as soft.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/import-cli/internal/resilience"
)

// Client defines the enrichment API operations.
type Client interface {
	// FromDomain returns company metadata for a domain, or nil when the
	// provider has nothing.
	FromDomain(ctx context.Context, domain, existingName string) (*CompanyProfile, error)
	// FromLinkedIn returns person metadata for a LinkedIn profile URL, or
	// nil when the provider has nothing.
	FromLinkedIn(ctx context.Context, profileURL string) (*PersonProfile, error)
}

// CompanyProfile is the provider's best guess for a company.
type CompanyProfile struct {
	Name        string `json:"name"`
	Industry    string `json:"industry,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// PersonProfile is the provider's best guess for a person.
type PersonProfile struct {
	Company  string `json:"company,omitempty"`
	Industry string `json:"industry,omitempty"`
	Role     string `json:"role,omitempty"`
}

// APIError is returned when the provider responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("enrich: API error %d: %s", e.StatusCode, e.Body)
}

// HTTPClient implements Client over the provider's JSON API.
type HTTPClient struct {
	baseURL string
	key     string
	httpc   *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpc = c }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(h *HTTPClient) { h.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(h *HTTPClient) { h.retry = cfg }
}

// NewClient creates an enrichment client.
func NewClient(baseURL, key string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		key:     key,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) FromDomain(ctx context.Context, domain, existingName string) (*CompanyProfile, error) {
	if domain == "" {
		return nil, eris.New("enrich: domain is required")
	}
	q := url.Values{"domain": {domain}}
	if existingName != "" {
		q.Set("name", existingName)
	}

	var profile *CompanyProfile
	err := c.get(ctx, "/v1/company?"+q.Encode(), &profile)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (c *HTTPClient) FromLinkedIn(ctx context.Context, profileURL string) (*PersonProfile, error) {
	if profileURL == "" {
		return nil, eris.New("enrich: profile URL is required")
	}
	q := url.Values{"url": {profileURL}}

	var profile *PersonProfile
	err := c.get(ctx, "/v1/person?"+q.Encode(), &profile)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// get performs a rate-limited, retried GET and decodes the JSON body into
// out. A 404 leaves out nil without error: the provider simply has nothing.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return resilience.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "enrich: rate limit wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return eris.Wrap(err, "enrich: build request")
		}
		if c.key != "" {
			req.Header.Set("Authorization", "Bearer "+c.key)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "enrich: request"), 0)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return apiErr
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return eris.Wrap(err, "enrich: decode response")
		}
		return nil
	})
}

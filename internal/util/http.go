package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// StatusError reports a response whose status code was not 200 OK.
type StatusError struct {
	URL     string
	Code    int
	Status  string
	Snippet string // first bytes of the body, for context
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("bad status '%s' fetching %s", e.Status, e.URL)
	}
	return fmt.Sprintf("bad status '%s' fetching %s: %s", e.Status, e.URL, e.Snippet)
}

// Doer is the subset of *http.Client used by the downloaders.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DownloadFile executes a pre-built HTTP request and returns the body bytes.
// It handles response closing and non-200 status codes, which are returned as *StatusError.
// The caller is responsible for creating the request (including context and headers).
func DownloadFile(client Doer, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do request for %s: %w", req.URL.String(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		limitReader := io.LimitReader(resp.Body, 512)
		bodyBytes, _ := io.ReadAll(limitReader)
		return nil, &StatusError{
			URL:     req.URL.String(),
			Code:    resp.StatusCode,
			Status:  resp.Status,
			Snippet: string(bodyBytes),
		}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading body from %s: %w", req.URL.String(), err)
	}
	return bodyBytes, nil
}

// NewHTTPClient returns a client whose requests are bounded by timeout. Zero means no limit.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// RateLimitedClient paces requests so that automated access stays within the
// SEC's fair-access limit (10 requests per second).
type RateLimitedClient struct {
	client  Doer
	limiter *rate.Limiter
}

// NewRateLimitedClient wraps client with a limiter allowing perSecond requests.
// perSecond <= 0 disables pacing.
func NewRateLimitedClient(client Doer, perSecond float64) *RateLimitedClient {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(perSecond))
	}
	return &RateLimitedClient{client: client, limiter: rate.NewLimiter(limit, burst)}
}

func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}

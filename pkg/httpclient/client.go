package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ClientType represents the HTTP client identity used for a request
type ClientType string

const (
	// BrowserClient uses browser-like headers. Used for page fetches and
	// archive downloads where default Go user agents get blocked.
	BrowserClient ClientType = "browser"

	// FeedClient uses browser-like headers with RSS accept types. At least
	// one monitored feed host (Substack) blocks default user agents.
	FeedClient ClientType = "feed"

	// FallbackClient uses a simple compatible-bot agent. Some hosts 403
	// browser-alike agents but allow simple tool identities.
	FallbackClient ClientType = "fallback"
)

// HTTPClient wraps an http.Client with a fixed identity and transient-error
// retry.
type HTTPClient struct {
	client     *http.Client
	clientType ClientType
	maxRetries uint64
}

// NewClient creates a new HTTP client with the specified identity.
func NewClient(clientType ClientType) *HTTPClient {
	return NewClientTimeout(clientType, 30*time.Second)
}

// NewClientTimeout creates a client with an explicit request timeout.
// Audio downloads need far longer than page fetches.
func NewClientTimeout(clientType ClientType, timeout time.Duration) *HTTPClient {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPClient{
		client:     client,
		clientType: clientType,
		maxRetries: 2,
	}
}

// Do executes an HTTP request with the appropriate headers for the client
// identity, retrying transport-level failures with exponential backoff.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)

	var resp *http.Response
	op := func() error {
		var err error
		resp, err = c.client.Do(req)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), req.Context())
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// Get is a convenience method for GET requests.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// GetBody fetches a URL and returns the body bytes with the content type,
// failing on any non-200 status.
func (c *HTTPClient) GetBody(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, "", err
	}
	defer DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// setHeaders sets the appropriate headers based on client identity.
func (c *HTTPClient) setHeaders(req *http.Request) {
	switch c.clientType {
	case BrowserClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Upgrade-Insecure-Requests", "1")

	case FeedClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, */*")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Cache-Control", "no-cache")

	case FallbackClient:
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; PodwatchBot/1.0; +https://github.com)")

	default:
		// Default: use Go's default User-Agent
	}
}

// DrainAndClose fully consumes and closes a response body so the underlying
// connection can be reused.
func DrainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}

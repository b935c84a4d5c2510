package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultRequestTimeout = 30 * time.Second

// Client wraps an HTTP client with per-host rate limiting, randomized
// user-agent headers and explicit session rotation. Rotation discards the
// transport so the next request negotiates a fresh TLS session under a new
// identity.
type Client struct {
	mu         sync.Mutex
	httpClient *http.Client
	limiter    *rate.Limiter
	agents     *UserAgentProvider
	userAgent  string
	timeout    time.Duration
}

// NewClient builds a client that performs at most rps requests per second.
func NewClient(agents *UserAgentProvider, rps float64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: newTransport()},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		agents:     agents,
		userAgent:  agents.Get(),
		timeout:    timeout,
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// Get fetches url and returns the status code with the full body. The body is
// read even on non-200 responses so callers can classify the failure.
func (c *Client) Get(ctx context.Context, url, referer string) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	c.mu.Lock()
	client := c.httpClient
	agent := c.userAgent
	c.mu.Unlock()

	req.Header.Set("User-Agent", agent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.8")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Rotate tears down the current session and randomizes the user agent.
// Called after a block or server-side failure before the next attempt.
func (c *Client) Rotate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	c.httpClient = &http.Client{Timeout: c.timeout, Transport: newTransport()}
	c.userAgent = c.agents.Get()
}

// UserAgent exposes the current identity, mainly for tests.
func (c *Client) UserAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userAgent
}

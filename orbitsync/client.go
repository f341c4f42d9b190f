package orbitsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client wraps every outbound Orbit API call with the shared rate limiter,
// bearer-token injection and a bounded retry on 401/429.
type Client struct {
	baseURL     string
	apiKey      string
	pageSize    int
	maxAttempts int
	retryAfter  time.Duration

	http    *http.Client
	tokens  *tokenProvider
	limiter *rateLimiter
	sleep   func(time.Duration)
}

func NewClient() *Client {
	baseURL := strings.TrimRight(envOrDefault("ORBIT_API_BASE_URL", "https://api.orbithq.io"), "/")
	authURL := envOrDefault("ORBIT_AUTH_URL", baseURL+"/oauth/token")
	apiKey := strings.TrimSpace(os.Getenv("ORBIT_API_KEY"))
	httpClient := &http.Client{Timeout: 30 * time.Second}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		pageSize:    intFromEnv("ORBIT_PAGE_SIZE", 50),
		maxAttempts: 3,
		retryAfter:  durationFromEnvSeconds("ORBIT_RATE_LIMIT_BACKOFF_SECONDS", 75*time.Second),
		http:        httpClient,
		tokens: newTokenProvider(
			authURL,
			strings.TrimSpace(os.Getenv("ORBIT_CLIENT_ID")),
			strings.TrimSpace(os.Getenv("ORBIT_CLIENT_SECRET")),
			apiKey,
			httpClient,
		),
		limiter: newRateLimiter(intFromEnv("ORBIT_RATE_LIMIT_PER_MIN", 40)),
		sleep:   time.Sleep,
	}
}

func newClientForTest(baseURL, authURL string, httpClient *http.Client) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      "test-key",
		pageSize:    50,
		maxAttempts: 3,
		retryAfter:  0,
		http:        httpClient,
		tokens:      newTokenProvider(authURL, "test-id", "test-secret", "test-key", httpClient),
		limiter:     newRateLimiter(1000),
		sleep:       func(time.Duration) {},
	}
	return c
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		c.limiter.Wait()

		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-Api-Key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			// The token can be revoked server-side before its reported expiry.
			c.tokens.Invalidate()
			lastErr = fmt.Errorf("%w: status 401", ErrAuthenticationFailed)
			continue
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimitExceeded
			c.limiter.Reset()
			c.sleep(c.retryAfter)
			continue
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		if out == nil {
			return nil
		}
		return json.Unmarshal(body, out)
	}

	if errors.Is(lastErr, ErrRateLimitExceeded) {
		return fmt.Errorf("%w after %d attempts", ErrRateLimitExceeded, c.maxAttempts)
	}
	return lastErr
}

// ListPage fetches one page of a paged collection endpoint.
func (c *Client) ListPage(ctx context.Context, path string, params url.Values, page int) (ListEnvelope, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("pageNumber", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	var env ListEnvelope
	if err := c.getJSON(ctx, path, params, &env); err != nil {
		return ListEnvelope{}, err
	}
	return env, nil
}

// ListNested fetches a nested sub-resource that the API returns as a bare
// array rather than a paged envelope.
func (c *Client) ListNested(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := c.getJSON(ctx, path, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

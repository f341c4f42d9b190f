package orbitsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Refresh this long before the reported expiry so a token never dies mid-page.
const tokenExpiryMargin = 60 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenProvider caches the Orbit client-credentials token and refreshes it
// when missing or inside the expiry margin. Safe for concurrent fetchers.
type tokenProvider struct {
	authURL      string
	clientID     string
	clientSecret string
	apiKey       string
	http         *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func newTokenProvider(authURL, clientID, clientSecret, apiKey string, httpClient *http.Client) *tokenProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &tokenProvider{
		authURL:      authURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		apiKey:       apiKey,
		http:         httpClient,
		now:          time.Now,
	}
}

func (p *tokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Add(tokenExpiryMargin).Before(p.expiresAt) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.apiKey != "" {
		req.Header.Set("X-Api-Key", p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrAuthenticationFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthenticationFailed)
	}

	p.token = parsed.AccessToken
	p.expiresAt = p.now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return p.token, nil
}

// Invalidate drops the cached token so the next call refreshes. Used when the
// API answers 401 before the reported expiry.
func (p *tokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

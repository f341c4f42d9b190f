package orbitsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTokenStub(t *testing.T, expiresIn int) (*tokenProvider, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostFormValue("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostFormValue("grant_type"))
		}
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return newTokenProvider(srv.URL, "id", "secret", "key", srv.Client()), &calls
}

func TestTokenProvider_CachesUntilExpiry(t *testing.T) {
	provider, calls := newTokenStub(t, 3600)

	first, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	second, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached token, got %q then %q", first, second)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected 1 token fetch, got %d", *calls)
	}
}

func TestTokenProvider_RefreshesInsideExpiryMargin(t *testing.T) {
	provider, calls := newTokenStub(t, 3600)

	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token error: %v", err)
	}

	base := time.Now()
	provider.now = func() time.Time { return base.Add(3600*time.Second - 30*time.Second) }
	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected refresh inside expiry margin, fetches = %d", *calls)
	}
}

func TestTokenProvider_InvalidateForcesRefresh(t *testing.T) {
	provider, calls := newTokenStub(t, 3600)

	if _, err := provider.Token(context.Background()); err != nil {
		t.Fatalf("Token error: %v", err)
	}
	provider.Invalidate()
	tok, err := provider.Token(context.Background())
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if tok != "tok-2" {
		t.Fatalf("expected fresh token after Invalidate, got %q", tok)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected 2 fetches, got %d", *calls)
	}
}

func TestTokenProvider_AuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	provider := newTokenProvider(srv.URL, "id", "bad-secret", "key", srv.Client())
	_, err := provider.Token(context.Background())
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
}

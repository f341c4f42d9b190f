package orbitsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

// newOrbitStub serves a token endpoint at /oauth/token and delegates data
// requests to handler.
func newOrbitStub(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, newClientForTest(srv.URL, srv.URL+"/oauth/token", srv.Client())
}

func TestClient_ListPageSendsAuthAndPagination(t *testing.T) {
	var gotAuth, gotKey, gotPage, gotSize string
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-Api-Key")
		gotPage = r.URL.Query().Get("pageNumber")
		gotSize = r.URL.Query().Get("pageSize")
		json.NewEncoder(w).Encode(ListEnvelope{
			Succeeded:    true,
			Data:         []json.RawMessage{json.RawMessage(`{"id":"c1"}`)},
			TotalRecords: 1,
			TotalPages:   1,
			PageNumber:   1,
		})
	})

	env, err := client.ListPage(context.Background(), "/api/v1/clients", nil, 1)
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotKey != "test-key" {
		t.Fatalf("X-Api-Key = %q", gotKey)
	}
	if gotPage != "1" || gotSize != "50" {
		t.Fatalf("pagination params = page %q size %q", gotPage, gotSize)
	}
	if len(env.Data) != 1 || env.TotalPages != 1 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestClient_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(ListEnvelope{Succeeded: true, TotalPages: 1, PageNumber: 1})
	})

	_, err := client.ListPage(context.Background(), "/api/v1/employees", nil, 1)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 data calls, got %d", calls)
	}
}

func TestClient_GivesUpAfterRepeated429(t *testing.T) {
	var calls int32
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListPage(context.Background(), "/api/v1/employees", nil, 1)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("expected ErrRateLimitExceeded, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestClient_RefreshesTokenOn401(t *testing.T) {
	var tokenCalls, dataCalls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			n := atomic.AddInt32(&tokenCalls, 1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":3600}`, n)
			return
		}
		atomic.AddInt32(&dataCalls, 1)
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(ListEnvelope{Succeeded: true, TotalPages: 1, PageNumber: 1})
	}))
	defer srv.Close()
	client := newClientForTest(srv.URL, srv.URL+"/oauth/token", srv.Client())

	_, err := client.ListPage(context.Background(), "/api/v1/projects", nil, 1)
	if err != nil {
		t.Fatalf("expected 401 to trigger a token refresh, got %v", err)
	}
	if atomic.LoadInt32(&tokenCalls) != 2 {
		t.Fatalf("expected 2 token fetches, got %d", tokenCalls)
	}
	if atomic.LoadInt32(&dataCalls) != 2 {
		t.Fatalf("expected 2 data calls, got %d", dataCalls)
	}
}

func TestClient_NonRetryableStatusReturnsAPIError(t *testing.T) {
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	})

	_, err := client.ListPage(context.Background(), "/api/v1/clients", nil, 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadGateway || apiErr.Body != "upstream down" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestClient_ListNestedDecodesBareArray(t *testing.T) {
	_, client := newOrbitStub(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"t1"},{"id":"t2"}]`)
	})

	items, err := client.ListNested(context.Background(), "/api/v1/projects/p1/tasks", url.Values{})
	if err != nil {
		t.Fatalf("ListNested error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

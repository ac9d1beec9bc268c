package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomiceli/gistapi/internal/content"
	"github.com/thomiceli/gistapi/internal/search"
)

type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (h *hitCounter) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		if h.hits == nil {
			h.hits = map[string]int{}
		}
		h.hits[r.URL.Path]++
		h.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (h *hitCounter) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func newTestServer(t *testing.T, mux *http.ServeMux) (*httptest.Server, *hitCounter) {
	t.Helper()
	counter := &hitCounter{}
	srv := httptest.NewServer(counter.wrap(mux))
	t.Cleanup(srv.Close)
	return srv, counter
}

func newTestClient(t *testing.T, srv *httptest.Server, opts Options) *Client {
	t.Helper()
	opts.BaseURL = srv.URL
	if opts.RetryInterval == 0 {
		opts.RetryInterval = time.Millisecond
	}
	c, err := NewClient(opts)
	require.NoError(t, err, "Could not create client")
	return c
}

func gistList(r *http.Request, ids ...string) string {
	entries := make([]string, len(ids))
	for i, id := range ids {
		entries[i] = fmt.Sprintf(`{"id": %q, "url": "http://%s/gists/%s", "public": true, "description": "gist %s", "files": {}}`, id, r.Host, id, id)
	}
	return "[" + strings.Join(entries, ",") + "]"
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func TestListGists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		writeJSON(w, 200, gistList(r, "aa1", "bb2"))
	})
	srv, _ := newTestServer(t, mux)
	c := newTestClient(t, srv, Options{PerPage: 50})

	gists, err := c.ListGists(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []search.GistSummary{
		{ID: "aa1", URL: srv.URL + "/gists/aa1", Description: "gist aa1", Public: true},
		{ID: "bb2", URL: srv.URL + "/gists/bb2", Description: "gist bb2", Public: true},
	}, gists)
}

func TestListGistsEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `[]`)
	})
	srv, _ := newTestServer(t, mux)

	gists, err := newTestClient(t, srv, Options{}).ListGists(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, gists)
	require.Empty(t, gists)
}

func paginatedMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			writeJSON(w, 200, gistList(r, "3"))
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/users/alice/gists?page=2>; rel="next", <http://%s/users/alice/gists?page=2>; rel="last"`, r.Host, r.Host))
		writeJSON(w, 200, gistList(r, "1", "2"))
	})
	return mux
}

func TestListGistsFirstPageOnly(t *testing.T) {
	srv, counter := newTestServer(t, paginatedMux())

	gists, err := newTestClient(t, srv, Options{}).ListGists(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, gists, 2)
	require.Equal(t, 1, counter.count("/users/alice/gists"))
}

func TestListGistsFollowPagination(t *testing.T) {
	srv, counter := newTestServer(t, paginatedMux())

	gists, err := newTestClient(t, srv, Options{FollowPagination: true}).ListGists(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, gists, 3)
	require.Equal(t, srv.URL+"/gists/3", gists[2].URL)
	require.Equal(t, 2, counter.count("/users/alice/gists"))
}

func TestListGistsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/ghost/gists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, `{"message": "Not Found"}`)
	})
	srv, counter := newTestServer(t, mux)

	_, err := newTestClient(t, srv, Options{MaxRetries: 3}).ListGists(context.Background(), "ghost")
	require.Error(t, err)

	var upstreamErr *search.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.True(t, upstreamErr.NotFound())
	require.Equal(t, "list", upstreamErr.Op)
	require.Equal(t, srv.URL+"/users/ghost/gists", upstreamErr.URL)
	require.Equal(t, 1, counter.count("/users/ghost/gists"), "Client errors are not retried")
}

func TestListGistsRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeJSON(w, 403, `{"message": "API rate limit exceeded for 127.0.0.1."}`)
	})
	srv, counter := newTestServer(t, mux)

	_, err := newTestClient(t, srv, Options{MaxRetries: 3}).ListGists(context.Background(), "alice")

	var upstreamErr *search.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.True(t, upstreamErr.RateLimited)
	require.Equal(t, 403, upstreamErr.StatusCode)
	require.Equal(t, 1, counter.count("/users/alice/gists"))
}

func flakyMux(failures int) *http.ServeMux {
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			writeJSON(w, 502, `{"message": "Server Error"}`)
			return
		}
		writeJSON(w, 200, gistList(r, "1"))
	})
	return mux
}

func TestListGistsRetriesServerErrors(t *testing.T) {
	srv, counter := newTestServer(t, flakyMux(2))

	gists, err := newTestClient(t, srv, Options{MaxRetries: 3}).ListGists(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, gists, 1)
	require.Equal(t, 3, counter.count("/users/alice/gists"))
}

func TestListGistsNoRetryByDefault(t *testing.T) {
	srv, counter := newTestServer(t, flakyMux(1))

	_, err := newTestClient(t, srv, Options{}).ListGists(context.Background(), "alice")

	var upstreamErr *search.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.Equal(t, 502, upstreamErr.StatusCode)
	require.Equal(t, 1, counter.count("/users/alice/gists"))
}

func TestListGistsMalformed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `[{"url": `)
	})
	srv, counter := newTestServer(t, mux)

	_, err := newTestClient(t, srv, Options{MaxRetries: 2}).ListGists(context.Background(), "alice")
	var upstreamErr *search.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, 1, counter.count("/users/alice/gists"), "Truncated bodies are not retried")
}

func TestListGistsKeepsUpstreamURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `[
			{"id": "aa1", "url": "https://mirror.example.com/api/gists/aa1?v=2", "html_url": "https://gist.example.com/aa1", "public": false}
		]`)
	})
	srv, _ := newTestServer(t, mux)

	gists, err := newTestClient(t, srv, Options{}).ListGists(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []search.GistSummary{
		{ID: "aa1", URL: "https://mirror.example.com/api/gists/aa1?v=2", Public: false},
	}, gists)
}

func gistMux(body string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/gists/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, body)
	})
	return mux
}

func TestFetchGist(t *testing.T) {
	srv, _ := newTestServer(t, gistMux(`{"id": "1", "files": {"a.go": {"content": "package main"}}}`))

	v, err := newTestClient(t, srv, Options{}).FetchGist(context.Background(), srv.URL+"/gists/1")
	require.NoError(t, err)

	n, err := content.Count(v, "package")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFetchGistTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, gistMux(`{"content": "`+strings.Repeat("x", 4096)+`"}`))

	_, err := newTestClient(t, srv, Options{MaxContentSize: 1024}).FetchGist(context.Background(), srv.URL+"/gists/1")
	require.ErrorIs(t, err, search.ErrContentTooLarge)

	var upstreamErr *search.UpstreamError
	require.False(t, errors.As(err, &upstreamErr))
}

func TestFetchGistMalformed(t *testing.T) {
	srv, _ := newTestServer(t, gistMux(`not json`))

	_, err := newTestClient(t, srv, Options{}).FetchGist(context.Background(), srv.URL+"/gists/1")

	var upstreamErr *search.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.Equal(t, "fetch", upstreamErr.Op)
	require.Contains(t, err.Error(), "malformed gist content")
}

func TestFetchGistNotFound(t *testing.T) {
	srv, _ := newTestServer(t, http.NewServeMux())

	_, err := newTestClient(t, srv, Options{}).FetchGist(context.Background(), srv.URL+"/gists/404")

	var upstreamErr *search.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	require.Equal(t, 404, upstreamErr.StatusCode)
}

func TestFetchGistCached(t *testing.T) {
	srv, counter := newTestServer(t, gistMux(`{"content": "cached"}`))

	cache, err := NewCache(1<<20, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	c := newTestClient(t, srv, Options{Cache: cache})
	for i := 0; i < 3; i++ {
		v, err := c.FetchGist(context.Background(), srv.URL+"/gists/1")
		require.NoError(t, err)
		n, err := content.Count(v, "cached")
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	require.Equal(t, 1, counter.count("/gists/1"))
}

func TestAuthToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/alice/gists", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cr3t", r.Header.Get("Authorization"))
		writeJSON(w, 200, `[]`)
	})
	srv, _ := newTestServer(t, mux)

	_, err := newTestClient(t, srv, Options{Token: "s3cr3t"}).ListGists(context.Background(), "alice")
	require.NoError(t, err)
}

func TestCancelledContext(t *testing.T) {
	srv, counter := newTestServer(t, flakyMux(0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv, Options{MaxRetries: 3}).ListGists(ctx, "alice")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, counter.count("/users/alice/gists"))
}

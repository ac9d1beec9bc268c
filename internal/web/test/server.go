package test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/thomiceli/gistapi/internal/config"
	"github.com/thomiceli/gistapi/internal/search"
	"github.com/thomiceli/gistapi/internal/upstream"
	"github.com/thomiceli/gistapi/internal/web/server"
)

// fakeGitHub serves the two gist API endpoints used by a search.
type fakeGitHub struct {
	*httptest.Server

	mu    sync.Mutex
	users map[string][]string
	gists map[string]string
	fail  map[string]int
	hits  map[string]int
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()

	gh := &fakeGitHub{
		users: map[string][]string{},
		gists: map[string]string{},
		fail:  map[string]int{},
		hits:  map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{user}/gists", func(w http.ResponseWriter, r *http.Request) {
		user := r.PathValue("user")
		if user == "limited" {
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeJSON(w, 403, `{"message": "API rate limit exceeded for 127.0.0.1."}`)
			return
		}

		gh.mu.Lock()
		ids, ok := gh.users[user]
		gh.mu.Unlock()
		if !ok {
			writeJSON(w, 404, `{"message": "Not Found"}`)
			return
		}

		entries := make([]string, len(ids))
		for i, id := range ids {
			entries[i] = fmt.Sprintf(`{"id": %q, "url": "http://%s/gists/%s", "public": true, "files": {}}`, id, r.Host, id)
		}
		writeJSON(w, 200, "["+strings.Join(entries, ",")+"]")
	})
	mux.HandleFunc("GET /gists/{id}", func(w http.ResponseWriter, r *http.Request) {
		gh.mu.Lock()
		defer gh.mu.Unlock()

		id := r.PathValue("id")
		gh.hits[id]++
		if gh.fail[id] > 0 {
			writeJSON(w, gh.fail[id], `{"message": "Server Error"}`)
			return
		}
		doc, ok := gh.gists[id]
		if !ok {
			writeJSON(w, 404, `{"message": "Not Found"}`)
			return
		}
		writeJSON(w, 200, doc)
	})

	gh.Server = httptest.NewServer(mux)
	t.Cleanup(gh.Close)
	return gh
}

// addGist registers a gist holding a single file with the given text.
func (gh *fakeGitHub) addGist(user, id, text string) {
	gh.mu.Lock()
	defer gh.mu.Unlock()

	gh.users[user] = append(gh.users[user], id)
	gh.gists[id] = fmt.Sprintf(`{
		"id": %q,
		"description": "",
		"public": true,
		"files": {"file.txt": {"filename": "file.txt", "type": "text/plain", "size": %d, "content": %q}},
		"history": [{"version": "%s0000", "change_status": {"total": 1}}]
	}`, id, len(text), text, id)
}

func (gh *fakeGitHub) gistURL(id string) string {
	return gh.URL + "/gists/" + id
}

func (gh *fakeGitHub) hitCount(id string) int {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.hits[id]
}

func writeJSON(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

type testServer struct {
	server *server.Server
	github *fakeGitHub
}

// Setup starts a fake gist API and a server pointing to it. Extra lines of
// YAML configuration are appended to the generated one.
func Setup(t *testing.T, extraConfig ...string) *testServer {
	gh := newFakeGitHub(t)

	yaml := "github.api-url: " + gh.URL + "\ngithub.retry-interval: 1ms\nlog-level: error\n" + strings.Join(extraConfig, "\n")
	t.Setenv("CONFIG", yaml)

	cfg, err := config.Load("", io.Discard)
	require.NoError(t, err, "Could not load config")
	log.Logger = zerolog.New(io.Discard)

	client, err := upstream.NewClientFromConfig(cfg)
	require.NoError(t, err, "Could not create gist API client")
	t.Cleanup(client.Close)

	searcher := search.NewSearcher(client, search.Options{
		Accumulate:  cfg.SearchAccumulate,
		Concurrency: cfg.SearchConcurrency,
	})

	return &testServer{
		server: server.NewServer(cfg, searcher),
		github: gh,
	}
}

func (s *testServer) Request(t *testing.T, method, uri, body string, expectedCode int) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, "http://localhost:8000"+uri, bodyReader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.server.ServeHTTP(w, req)

	require.Equal(t, expectedCode, w.Code, "Unexpected status code, body: %s", w.Body.String())
	return w
}

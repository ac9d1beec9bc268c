package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/google/go-github/v64/github"
	"github.com/rs/zerolog/log"
	"github.com/thomiceli/gistapi/internal/config"
	"github.com/thomiceli/gistapi/internal/content"
	"github.com/thomiceli/gistapi/internal/metrics"
	"github.com/thomiceli/gistapi/internal/search"
)

const DefaultBaseURL = "https://api.github.com/"

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	PerPage          int
	FollowPagination bool

	MaxRetries    uint64
	RetryInterval time.Duration

	// MaxContentSize is the largest gist body accepted, 0 means no limit.
	MaxContentSize int64

	Cache      *Cache
	HTTPClient *http.Client
}

// Client talks to the GitHub gist API.
type Client struct {
	gh *github.Client

	perPage          int
	followPagination bool
	maxRetries       uint64
	retryInterval    time.Duration
	maxContentSize   int64
	cache            *Cache
}

func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	gh := github.NewClient(httpClient)
	if opts.Token != "" {
		gh = gh.WithAuthToken(opts.Token)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gist API URL %q: %w", baseURL, err)
	}
	gh.BaseURL = u

	if opts.RetryInterval <= 0 {
		opts.RetryInterval = backoff.DefaultInitialInterval
	}

	return &Client{
		gh:               gh,
		perPage:          opts.PerPage,
		followPagination: opts.FollowPagination,
		maxRetries:       opts.MaxRetries,
		retryInterval:    opts.RetryInterval,
		maxContentSize:   opts.MaxContentSize,
		cache:            opts.Cache,
	}, nil
}

// gistEntry is an element of the gist list. go-github's Gist type drops the
// API url of the gist, which is the document FetchGist reads.
type gistEntry struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// ListGists returns the public gists of a user. Only the first page is read
// unless pagination is enabled.
func (c *Client) ListGists(ctx context.Context, username string) ([]search.GistSummary, error) {
	listPath := "users/" + url.PathEscape(username) + "/gists"
	listURL := c.gh.BaseURL.String() + listPath

	summaries := make([]search.GistSummary, 0)
	page := 0
	for {
		var entries []gistEntry
		var resp *github.Response

		err := c.retry(ctx, "list", func() error {
			req, err := c.gh.NewRequest(http.MethodGet, listPath+c.pageQuery(page), nil)
			if err != nil {
				return backoff.Permanent(err)
			}

			entries = nil
			resp, err = c.gh.Do(ctx, req, &entries)
			return err
		})
		if err != nil {
			return nil, upstreamError("list", listURL, err)
		}

		for _, entry := range entries {
			summaries = append(summaries, search.GistSummary{
				ID:          entry.ID,
				URL:         entry.URL,
				Description: entry.Description,
				Public:      entry.Public,
			})
		}

		if !c.followPagination || resp == nil || resp.NextPage == 0 {
			if resp != nil && resp.NextPage != 0 {
				log.Debug().Str("username", username).Int("next-page", resp.NextPage).Msg("Gist list has more pages, not following them")
			}
			break
		}
		page = resp.NextPage
	}

	return summaries, nil
}

func (c *Client) pageQuery(page int) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if c.perPage > 0 {
		q.Set("per_page", strconv.Itoa(c.perPage))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// FetchGist retrieves the full JSON document of a gist.
func (c *Client) FetchGist(ctx context.Context, gistURL string) (content.Value, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(gistURL); ok {
			metrics.CacheHitsTotal.Inc()
			return content.Parse(body)
		}
	}

	var buf *limitedBuffer
	err := c.retry(ctx, "fetch", func() error {
		req, err := c.gh.NewRequest(http.MethodGet, gistURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		buf = &limitedBuffer{limit: c.maxContentSize}
		_, err = c.gh.Do(ctx, req, buf)
		return err
	})
	if errors.Is(err, search.ErrContentTooLarge) {
		return nil, fmt.Errorf("%s: %w", gistURL, err)
	}
	if err != nil {
		return nil, upstreamError("fetch", gistURL, err)
	}

	v, err := content.Parse(buf.Bytes())
	if err != nil {
		return nil, &search.UpstreamError{Op: "fetch", URL: gistURL, Err: fmt.Errorf("malformed gist content: %w", err)}
	}

	if c.cache != nil {
		c.cache.Set(gistURL, buf.Bytes())
	}
	return v, nil
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			metrics.UpstreamRequestsTotal.WithLabelValues(op, "success").Inc()
			return nil
		}

		metrics.UpstreamRequestsTotal.WithLabelValues(op, "error").Inc()
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		if uint64(attempt) <= c.maxRetries {
			log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("Upstream request failed, retrying")
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, search.ErrContentTooLarge) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return false
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return respErr.Response != nil && respErr.Response.StatusCode >= 500
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}

	return true
}

func upstreamError(op, u string, err error) *search.UpstreamError {
	ue := &search.UpstreamError{Op: op, URL: u, Err: err}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse
	switch {
	case errors.As(err, &rateErr):
		ue.RateLimited = true
		ue.StatusCode = statusCode(rateErr.Response)
	case errors.As(err, &abuseErr):
		ue.RateLimited = true
		ue.StatusCode = statusCode(abuseErr.Response)
	case errors.As(err, &respErr):
		ue.StatusCode = statusCode(respErr.Response)
	}

	return ue
}

func statusCode(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// limitedBuffer refuses writes past limit bytes. It must not implement
// io.ReaderFrom, io.Copy has to go through Write.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int64
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && int64(b.buf.Len()+len(p)) > b.limit {
		return 0, search.ErrContentTooLarge
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

// NewClientFromConfig builds the client and its optional cache from the
// service configuration.
func NewClientFromConfig(c *config.Config) (*Client, error) {
	var cache *Cache
	if c.CacheEnabled {
		var err error
		if cache, err = NewCache(c.CacheMaxSizeBytes(), c.CacheTTLDuration()); err != nil {
			return nil, fmt.Errorf("could not create gist cache: %w", err)
		}
		log.Info().Str("max-size", humanize.Bytes(uint64(c.CacheMaxSizeBytes()))).Str("ttl", c.CacheTTL).Msg("Gist content cache enabled")
	}

	client, err := NewClient(Options{
		BaseURL:          c.GithubApiUrl,
		Token:            c.GithubToken,
		Timeout:          c.GithubTimeoutDuration(),
		PerPage:          c.GithubPerPage,
		FollowPagination: c.GithubFollowPagination,
		MaxRetries:       c.GithubMaxRetries,
		RetryInterval:    c.GithubRetryIntervalDuration(),
		MaxContentSize:   c.SearchMaxContentSizeBytes(),
		Cache:            cache,
	})
	if err != nil && cache != nil {
		cache.Close()
	}
	return client, err
}

func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

package search

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/thomiceli/gistapi/internal/content"
	"github.com/thomiceli/gistapi/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const StatusSuccess = "success"

// GistSummary is an entry of a user's gist list. Only URL is needed to
// fetch the full gist.
type GistSummary struct {
	ID          string
	URL         string
	Description string
	Public      bool
}

// Source is the upstream gist API.
type Source interface {
	ListGists(ctx context.Context, username string) ([]GistSummary, error)
	FetchGist(ctx context.Context, url string) (content.Value, error)
}

type Request struct {
	Username string
	Pattern  string
}

type Result struct {
	Matches  []string
	Status   string
	Username string
	Pattern  string

	// Accumulated results always serialize matches as an array.
	Accumulated bool
}

func (r *Result) MarshalJSON() ([]byte, error) {
	var matches any = r.Matches
	switch {
	case len(r.Matches) == 0:
		matches = []string{}
	case !r.Accumulated && len(r.Matches) == 1:
		matches = r.Matches[0]
	}

	return json.Marshal(struct {
		Matches  any    `json:"matches"`
		Status   string `json:"status"`
		Username string `json:"username"`
		Pattern  string `json:"pattern"`
	}{matches, r.Status, r.Username, r.Pattern})
}

type Options struct {
	// Accumulate keeps every matching gist instead of only the last one.
	Accumulate  bool
	Concurrency int
}

type Searcher struct {
	source      Source
	accumulate  bool
	concurrency int
}

func NewSearcher(source Source, opts Options) *Searcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Searcher{source: source, accumulate: opts.Accumulate, concurrency: opts.Concurrency}
}

// Search lists the gists of a user, fetches each of them and reports those
// having at least one value matching the pattern.
//
// Without Accumulate, Matches only holds the last matching gist in list
// order, every hit overwrites the previous one.
func (s *Searcher) Search(ctx context.Context, req Request) (*Result, error) {
	res, err := s.search(ctx, req)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchesTotal.WithLabelValues("success").Inc()
	return res, nil
}

func (s *Searcher) search(ctx context.Context, req Request) (*Result, error) {
	matcher, err := content.Compile(req.Pattern)
	if err != nil {
		return nil, err
	}

	gists, err := s.source.ListGists(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("username", req.Username).Str("pattern", matcher.Pattern()).Int("gists", len(gists)).Msg("Listed gists")

	hits := make([]bool, len(gists))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, gist := range gists {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			v, err := s.source.FetchGist(gctx, gist.URL)
			if errors.Is(err, ErrContentTooLarge) {
				log.Warn().Str("url", gist.URL).Msg("Skipping gist, content is too large")
				return nil
			}
			if err != nil {
				return err
			}

			metrics.GistsScannedTotal.Inc()
			if matcher.Count(v) > 0 {
				metrics.GistsMatchedTotal.Inc()
				hits[i] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		Status:      StatusSuccess,
		Username:    req.Username,
		Pattern:     req.Pattern,
		Accumulated: s.accumulate,
	}
	for i, hit := range hits {
		if !hit {
			continue
		}
		if s.accumulate {
			res.Matches = append(res.Matches, gists[i].URL)
		} else {
			res.Matches = []string{gists[i].URL}
		}
	}

	return res, nil
}

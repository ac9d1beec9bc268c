package api

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/thomiceli/gistapi/internal/content"
	"github.com/thomiceli/gistapi/internal/search"
	"github.com/thomiceli/gistapi/internal/validator"
	"github.com/thomiceli/gistapi/internal/web/context"
)

// Pattern is a pointer so that an empty pattern, which matches everything,
// is told apart from a missing one.
type SearchDTO struct {
	Username string  `json:"username" form:"username" validate:"required,max=39,alphanumdash"`
	Pattern  *string `json:"pattern" form:"pattern" validate:"required,regexp"`
}

// Search returns the handler of POST /api/v1/search.
func Search(searcher *search.Searcher) func(ctx *context.Context) error {
	return func(ctx *context.Context) error {
		dto := new(SearchDTO)
		if err := ctx.Bind(dto); err != nil {
			return ctx.ErrorRes(400, "Malformed request body", err)
		}
		if err := ctx.Validate(dto); err != nil {
			return ctx.ErrorRes(400, validator.ValidationMessages(err), err)
		}

		res, err := searcher.Search(ctx.Request().Context(), search.Request{
			Username: dto.Username,
			Pattern:  *dto.Pattern,
		})
		if err != nil {
			return searchError(ctx, err)
		}

		log.Debug().Str("request-id", ctx.Response().Header().Get(echo.HeaderXRequestID)).
			Str("username", res.Username).Int("matches", len(res.Matches)).Msg("Search done")
		return ctx.Json(res)
	}
}

func searchError(ctx *context.Context, err error) error {
	var patternErr *content.InvalidPatternError
	if errors.As(err, &patternErr) {
		return ctx.ErrorRes(400, "Invalid pattern: "+patternErr.Err.Error(), err)
	}

	var upstreamErr *search.UpstreamError
	if errors.As(err, &upstreamErr) {
		switch {
		case upstreamErr.Op == "list" && upstreamErr.NotFound():
			return ctx.NotFound("User not found")
		case upstreamErr.RateLimited:
			return ctx.ErrorRes(503, "Gist API rate limit exceeded", err)
		default:
			return ctx.ErrorRes(502, "Gist API request failed", err)
		}
	}

	return ctx.ErrorRes(500, "Search failed", err)
}

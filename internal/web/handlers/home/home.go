package home

import "github.com/thomiceli/gistapi/internal/web/context"

func Index(ctx *context.Context) error {
	return ctx.Html("index.html")
}

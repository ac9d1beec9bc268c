package health

import "github.com/thomiceli/gistapi/internal/web/context"

// Ping answers "pong" to any method, whatever the request body.
func Ping(ctx *context.Context) error {
	return ctx.PlainText(200, "pong")
}

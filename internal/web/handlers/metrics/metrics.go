package metrics

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/thomiceli/gistapi/internal/web/context"
)

// Metrics handles prometheus metrics endpoint requests.
func Metrics(ctx *context.Context) error {
	return echoprometheus.NewHandler()(ctx)
}

package health

import (
	"time"

	"github.com/thomiceli/gistapi/internal/config"
	"github.com/thomiceli/gistapi/internal/web/context"
)

func Healthcheck(ctx *context.Context) error {
	return ctx.JSON(200, map[string]interface{}{
		"gistapi": "ok",
		"version": config.GistapiVersion,
		"time":    time.Now().Format(time.RFC3339),
	})
}

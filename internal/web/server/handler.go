package server

import (
	"github.com/labstack/echo/v4"
	"github.com/thomiceli/gistapi/internal/web/context"
)

type Handler func(ctx *context.Context) error
type Middleware func(next Handler) Handler

func (m Middleware) toEcho() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return m(func(c *context.Context) error {
			return next(c)
		}).toEchoHandler()
	}
}

func (h Handler) toEchoHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		if gc, ok := c.(*context.Context); ok {
			return h(gc)
		}
		return h(context.NewContext(c))
	}
}

func chain(h Handler, middleware ...Middleware) Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

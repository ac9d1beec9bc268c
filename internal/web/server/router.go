package server

import (
	"github.com/labstack/echo/v4"
	"github.com/thomiceli/gistapi/internal/web/context"
	"github.com/thomiceli/gistapi/internal/web/handlers/api"
	"github.com/thomiceli/gistapi/internal/web/handlers/health"
	"github.com/thomiceli/gistapi/internal/web/handlers/home"
	"github.com/thomiceli/gistapi/internal/web/handlers/metrics"
)

func (s *Server) registerRoutes() {
	r := NewRouter(s.echo.Group(""))

	{
		r.GET("/", home.Index)
		r.Any("/ping", health.Ping)
		r.GET("/healthcheck", health.Healthcheck)

		if s.config.MetricsEnabled {
			r.GET("/metrics", metrics.Metrics)
		}

		sA := r.SubGroup("/api/v1")
		{
			sA.Use(jsonApi)
			sA.POST("/search", api.Search(s.searcher))
		}
	}

	r.Any("/*", noRouteFound)
}

// Router wraps echo.Group to provide custom Handler support
type Router struct {
	*echo.Group
}

func NewRouter(g *echo.Group) *Router {
	return &Router{Group: g}
}

func (r *Router) SubGroup(prefix string, m ...Middleware) *Router {
	echoMiddleware := make([]echo.MiddlewareFunc, len(m))
	for i, mw := range m {
		echoMiddleware[i] = mw.toEcho()
	}
	return NewRouter(r.Group.Group(prefix, echoMiddleware...))
}

func (r *Router) GET(path string, h Handler, m ...Middleware) {
	r.Group.GET(path, chain(h, m...).toEchoHandler())
}

func (r *Router) POST(path string, h Handler, m ...Middleware) {
	r.Group.POST(path, chain(h, m...).toEchoHandler())
}

func (r *Router) Any(path string, h Handler, m ...Middleware) {
	r.Group.Any(path, chain(h, m...).toEchoHandler())
}

func (r *Router) Use(middleware ...Middleware) {
	for _, m := range middleware {
		r.Group.Use(m.toEcho())
	}
}

func noRouteFound(ctx *context.Context) error {
	return ctx.NotFound("Page not found")
}

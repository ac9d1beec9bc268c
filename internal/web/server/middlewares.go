package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/thomiceli/gistapi/internal/config"
	"github.com/thomiceli/gistapi/internal/web/context"
)

func (s *Server) useCustomContext() {
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := context.NewContext(c)
			return next(cc)
		}
	})
}

func (s *Server) registerMiddlewares() {
	s.echo.Use(Middleware(dataInit).toEcho())

	s.echo.Pre(middleware.RemoveTrailingSlash())
	s.echo.Pre(middleware.CORS())
	s.echo.Pre(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	s.echo.Pre(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI: true, LogStatus: true, LogMethod: true, LogRequestID: true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().Str("uri", v.URI).Int("status", v.Status).Str("method", v.Method).
				Str("ip", ctx.RealIP()).Str("request-id", v.RequestID).TimeDiff("duration", time.Now(), v.StartTime).
				Msg("HTTP")
			return nil
		},
	}))
	s.echo.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(ctx echo.Context, err error, stack []byte) error {
			log.Error().Err(err).Str("uri", ctx.Request().RequestURI).Bytes("stack", stack).Msg("Recovered from panic")
			return err
		},
	}))
	s.echo.Use(middleware.Secure())
	s.echo.Use(middleware.BodyLimit(strconv.FormatInt(s.config.HttpBodyLimitBytes(), 10)))
}

func (s *Server) errorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		log.Error().Err(err).Msg("Unhandled error")
		httpErr = &echo.HTTPError{Code: http.StatusInternalServerError, Message: http.StatusText(http.StatusInternalServerError), Internal: err}
	}

	message, ok := httpErr.Message.(string)
	if !ok {
		message = fmt.Sprint(httpErr.Message)
	}

	if ctx.Request().Method == http.MethodHead {
		err = ctx.NoContent(httpErr.Code)
	} else {
		err = ctx.JSON(httpErr.Code, echo.Map{
			"status":  "error",
			"message": message,
		})
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to write error response")
	}
}

func dataInit(next Handler) Handler {
	return func(ctx *context.Context) error {
		ctx.SetData("loadStartTime", time.Now())
		ctx.SetData("version", config.GistapiVersion)
		ctx.SetData("htmlTitle", "Gist search")

		return next(ctx)
	}
}

func jsonApi(next Handler) Handler {
	return func(ctx *context.Context) error {
		ctx.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		return next(ctx)
	}
}

package context

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type Context struct {
	echo.Context

	data echo.Map
	lock sync.RWMutex
}

func NewContext(c echo.Context) *Context {
	return &Context{
		Context: c,
		data:    make(echo.Map),
	}
}

func (ctx *Context) SetData(key string, value any) {
	ctx.lock.Lock()
	defer ctx.lock.Unlock()

	ctx.data[key] = value
}

func (ctx *Context) DataMap() echo.Map {
	return ctx.data
}

func (ctx *Context) ErrorRes(code int, message string, err error) error {
	if code >= 500 {
		var skipLogger = log.With().CallerWithSkipFrameCount(3).Logger()
		skipLogger.Error().Err(err).Str("request-id", ctx.Response().Header().Get(echo.HeaderXRequestID)).Msg(message)
	}

	return &echo.HTTPError{Code: code, Message: message, Internal: err}
}

func (ctx *Context) Html(template string) error {
	return ctx.HtmlWithCode(200, template)
}

func (ctx *Context) HtmlWithCode(code int, template string) error {
	return ctx.Render(code, template, ctx.DataMap())
}

func (ctx *Context) Json(data any) error {
	return ctx.JsonWithCode(200, data)
}

func (ctx *Context) JsonWithCode(code int, data any) error {
	return ctx.JSON(code, data)
}

func (ctx *Context) PlainText(code int, message string) error {
	return ctx.String(code, message)
}

func (ctx *Context) NotFound(message string) error {
	return ctx.ErrorRes(404, message, nil)
}
